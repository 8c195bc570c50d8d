package fastdb

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/beetlebugorg/fastdb/internal/format"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// stringTable deduplicates strings for one layer. Indices are assigned in
// first-insertion order.
type stringTable struct {
	wide  bool
	index map[string]uint32
	list  []string
}

func newStringTable(wide bool) *stringTable {
	return &stringTable{wide: wide, index: make(map[string]uint32)}
}

func (t *stringTable) add(s string) uint32 {
	if ix, ok := t.index[s]; ok {
		return ix
	}
	ix := uint32(len(t.list))
	t.index[s] = ix
	t.list = append(t.list, s)
	return ix
}

func (t *stringTable) len() int { return len(t.list) }

// encode appends the count followed by every NUL terminated entry.
func (t *stringTable) encode(w *format.Writer) error {
	w.PutU32(uint32(len(t.list)))
	var enc *encoding.Encoder
	if t.wide {
		enc = utf16le.NewEncoder()
	}
	for _, s := range t.list {
		if !t.wide {
			w.Write([]byte(s))
			w.PutU8(0)
			continue
		}
		b, err := enc.Bytes([]byte(s))
		if err != nil {
			return err
		}
		w.Write(b)
		w.PutU16(0)
	}
	return nil
}

// stripNUL cuts s at the first NUL, which would otherwise end the stored
// string early.
func stripNUL(s string) (string, bool) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i], true
	}
	return s, false
}

// stringIndex locates entries in an encoded string table.
type stringIndex struct {
	wide    bool
	data    []byte
	offsets []int // start of entry i; offsets[len] marks the end of data
}

// buildStringIndex scans a table written by stringTable.encode. Entries that
// run past the end of data are dropped.
func buildStringIndex(data []byte, wide bool) stringIndex {
	idx := stringIndex{wide: wide, data: data}
	r := format.NewReader(data, 0)
	count := int(r.U32())
	if r.Err() != nil {
		return idx
	}
	unit := 1
	if wide {
		unit = 2
	}
	off := 4
	for i := 0; i < count; i++ {
		end := findTerminator(data, off, unit)
		if end < 0 {
			break
		}
		idx.offsets = append(idx.offsets, off)
		off = end + unit
	}
	idx.offsets = append(idx.offsets, off)
	return idx
}

func findTerminator(data []byte, off, unit int) int {
	for i := off; i+unit <= len(data); i += unit {
		if data[i] == 0 && (unit == 1 || data[i+1] == 0) {
			return i
		}
	}
	return -1
}

func (s stringIndex) count() int {
	if len(s.offsets) == 0 {
		return 0
	}
	return len(s.offsets) - 1
}

func (s stringIndex) get(i int) (string, bool) {
	if i < 0 || i >= s.count() {
		return "", false
	}
	unit := 1
	if s.wide {
		unit = 2
	}
	start, next := s.offsets[i], s.offsets[i+1]
	raw := s.data[start : next-unit]
	if !s.wide {
		return string(raw), true
	}
	b, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(b), true
}
