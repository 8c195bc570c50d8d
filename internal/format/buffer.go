package format

import (
	"encoding/binary"
	"math"
)

// Reader decodes little-endian values from a byte slice. The first out of
// bounds read records an error; subsequent reads return zero values, so a
// decoder can read a whole structure and check Err once.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader positioned at off.
func NewReader(buf []byte, off int) *Reader {
	return &Reader{buf: buf, off: off}
}

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) {
	r.next(n)
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) []byte {
	return r.next(n)
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off < 0 || r.off > len(r.buf)-n {
		r.err = &ErrTruncated{Offset: r.off, Need: n, Len: len(r.buf)}
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U24() uint32 {
	b := r.next(3)
	if b == nil {
		return 0
	}
	return Uint24(b)
}

func (r *Reader) U32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

func (r *Reader) F64() float64 {
	return math.Float64frombits(r.U64())
}

// Uint24 decodes a 3 byte little-endian unsigned integer.
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// Writer accumulates little-endian values in a growable buffer.
type Writer struct {
	buf []byte
}

// Bytes returns the accumulated bytes. The slice aliases the writer's
// storage.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards the contents but keeps the storage.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) PutU24(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (w *Writer) PutU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) PutU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) PutF32(v float32) { w.PutU32(math.Float32bits(v)) }

func (w *Writer) PutF64(v float64) { w.PutU64(math.Float64bits(v)) }

// PutFixedString writes s into a NUL padded field of size n. s must be
// shorter than n; longer input is cut so the field stays NUL terminated.
func (w *Writer) PutFixedString(s string, n int) {
	field := make([]byte, n)
	copy(field[:n-1], s)
	w.buf = append(w.buf, field...)
}

// FixedString decodes a NUL padded name field.
func FixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
