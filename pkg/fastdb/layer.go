package fastdb

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// FieldDescriptor describes one attribute column of a layer.
type FieldDescriptor struct {
	Name   string
	Type   FieldType
	Min    float64 // Range of normalized fields
	Max    float64
	Size   int // Bytes per row
	Offset int // Byte offset within a row
}

// Layer gives read access to one layer of a Database.
//
// Features are addressed by index in [0, FeatureCount). Attribute access is
// constant time. Random geometry access uses an offset table that is built by
// one forward scan of the geometry stream the first time it is needed.
type Layer struct {
	db     *Database
	index  int
	header format.LayerHeader
	fields []FieldDescriptor
	codec  geometryCodec

	geometry []byte
	table    []byte
	rowSize  int

	offsetsOnce sync.Once
	offsets     []int // -1 marks a geometry past a damaged point in the stream

	stringsOnce sync.Once
	strings     stringIndex
	wideOnce    sync.Once
	wide        stringIndex
	narrowData  []byte
	wideData    []byte

	handles *xsync.MapOf[int, *Feature]
}

func parseLayer(db *Database, index, off int) (*Layer, error) {
	r := format.NewReader(db.buf, off)
	h, err := format.DecodeLayerHeader(r)
	if err != nil {
		return nil, err
	}
	end := uint64(off) + h.TotalSize
	if h.TotalSize < uint64(h.DataStart()) || end > uint64(len(db.buf)) {
		return nil, &format.ErrInvalidHeader{Layer: h.Name, Reason: fmt.Sprintf("layer size %d exceeds buffer", h.TotalSize)}
	}

	l := &Layer{
		db:     db,
		index:  index,
		header: h,
		fields: make([]FieldDescriptor, 0, h.FieldCount),
		codec: geometryCodec{
			kind: GeometryKind(h.GeometryKind),
			coords: format.CoordCodec{
				Format: h.CoordFormat,
				Extent: format.Extent{MinX: h.MinX, MinY: h.MinY, MaxX: h.MaxX, MaxY: h.MaxY},
			},
			bboxes: h.BBoxes && GeometryKind(h.GeometryKind).hasParts(),
		},
		handles: xsync.NewMapOf[int, *Feature](),
	}

	for i := 0; i < int(h.FieldCount); i++ {
		fd, err := format.DecodeFieldDesc(r)
		if err != nil {
			return nil, err
		}
		f := FieldDescriptor{
			Name:   fd.Name,
			Type:   FieldType(fd.Type),
			Min:    fd.Min,
			Max:    fd.Max,
			Size:   int(fd.Size),
			Offset: int(fd.Offset),
		}
		if want := format.FieldSize(fd.Type, fd.Size == 4); want == 0 || uint64(want) != fd.Size {
			return nil, &format.ErrInvalidHeader{Layer: h.Name, Reason: fmt.Sprintf("field %q: type %d with size %d", fd.Name, fd.Type, fd.Size)}
		}
		l.fields = append(l.fields, f)
		l.rowSize = max(l.rowSize, f.Offset+f.Size)
	}

	data := db.buf[off+h.DataStart() : end]
	l.geometry = data[:h.OffsetTable]
	l.table = data[h.OffsetTable:h.OffsetStrings]
	l.narrowData = data[h.OffsetStrings:h.OffsetWide]
	l.wideData = data[h.OffsetWide:]

	if uint64(len(l.table)) < uint64(l.rowSize)*uint64(h.FeatureCount) {
		return nil, &format.ErrInvalidHeader{Layer: h.Name, Reason: fmt.Sprintf("attribute table holds %d bytes, %d rows of %d need more", len(l.table), h.FeatureCount, l.rowSize)}
	}
	return l, nil
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.header.Name }

// Index returns the layer's position in its database.
func (l *Layer) Index() int { return l.index }

// Database returns the owning database.
func (l *Layer) Database() *Database { return l.db }

func (l *Layer) GeometryKind() GeometryKind { return l.codec.kind }

func (l *Layer) CoordinateFormat() CoordinateFormat { return CoordinateFormat(l.header.CoordFormat) }

// HasBoundingBoxes reports whether line and polygon features carry a
// stored bounding box.
func (l *Layer) HasBoundingBoxes() bool { return l.codec.bboxes }

// WideStringIndex reports whether the layer was built with 32 bit string
// indices.
func (l *Layer) WideStringIndex() bool { return l.header.WideIndex }

// Extent returns the declared coordinate extent.
func (l *Layer) Extent() Bounds { return boundsFromExtent(l.codec.coords.Extent) }

func (l *Layer) FeatureCount() int { return int(l.header.FeatureCount) }

func (l *Layer) FieldCount() int { return len(l.fields) }

// RowSize returns the byte width of one attribute row.
func (l *Layer) RowSize() int { return l.rowSize }

// Field returns descriptor i.
func (l *Layer) Field(i int) (FieldDescriptor, bool) {
	if i < 0 || i >= len(l.fields) {
		return FieldDescriptor{}, false
	}
	return l.fields[i], true
}

// Fields returns all field descriptors.
func (l *Layer) Fields() []FieldDescriptor { return l.fields }

// FieldIndex returns the index of the named field, or -1.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// cell returns the bytes of field j in row i.
func (l *Layer) cell(i, j int) ([]byte, FieldDescriptor, bool) {
	if i < 0 || i >= l.FeatureCount() || j < 0 || j >= len(l.fields) {
		return nil, FieldDescriptor{}, false
	}
	f := l.fields[j]
	start := i*l.rowSize + f.Offset
	return l.table[start : start+f.Size], f, true
}

// Float returns field j of feature i as a float. Every numeric type
// converts; normalized fields decode into their [Min, Max] range.
func (l *Layer) Float(i, j int) (float64, bool) {
	b, f, ok := l.cell(i, j)
	if !ok {
		return 0, false
	}
	switch f.Type {
	case FieldU8, FieldU16, FieldU32, FieldI32:
		v, _ := intValue(b, f.Type)
		return float64(v), true
	case FieldU8n:
		return format.Dequantize(uint32(b[0]), f.Min, f.Max, format.MaxRaw8), true
	case FieldU16n:
		return format.Dequantize(uint32(binary.LittleEndian.Uint16(b)), f.Min, f.Max, format.MaxRaw16), true
	case FieldF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case FieldF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
	}
	return math.NaN(), false
}

// Int returns integer field j of feature i.
func (l *Layer) Int(i, j int) (int64, bool) {
	b, f, ok := l.cell(i, j)
	if !ok {
		return 0, false
	}
	return intValue(b, f.Type)
}

func intValue(b []byte, t FieldType) (int64, bool) {
	switch t {
	case FieldU8:
		return int64(b[0]), true
	case FieldU16:
		return int64(binary.LittleEndian.Uint16(b)), true
	case FieldU32:
		return int64(binary.LittleEndian.Uint32(b)), true
	case FieldI32:
		return int64(int32(binary.LittleEndian.Uint32(b))), true
	}
	return 0, false
}

func stringRef(b []byte) int {
	if len(b) == 4 {
		return int(binary.LittleEndian.Uint32(b))
	}
	return int(binary.LittleEndian.Uint16(b))
}

// String returns field j of feature i from a String or WString field.
func (l *Layer) String(i, j int) (string, bool) {
	b, f, ok := l.cell(i, j)
	if !ok {
		return "", false
	}
	switch f.Type {
	case FieldString:
		l.stringsOnce.Do(func() { l.strings = buildStringIndex(l.narrowData, false) })
		return l.strings.get(stringRef(b))
	case FieldWString:
		l.wideOnce.Do(func() { l.wide = buildStringIndex(l.wideData, true) })
		return l.wide.get(stringRef(b))
	}
	return "", false
}

// WString returns WString field j of feature i.
func (l *Layer) WString(i, j int) (string, bool) {
	if _, f, ok := l.cell(i, j); !ok || f.Type != FieldWString {
		return "", false
	}
	return l.String(i, j)
}

// Ref returns FeatureRef field j of feature i.
func (l *Layer) Ref(i, j int) (FeatureRef, bool) {
	b, f, ok := l.cell(i, j)
	if !ok || f.Type != FieldFeatureRef {
		return FeatureRef{}, false
	}
	return FeatureRef{
		Layer:   binary.LittleEndian.Uint16(b),
		Feature: format.Uint24(b[2:]),
	}, true
}

// buildOffsets records where each feature's geometry starts.
func (l *Layer) buildOffsets() {
	n := l.FeatureCount()
	l.offsets = make([]int, n)
	if l.codec.kind == GeometryNone {
		return
	}
	r := format.NewReader(l.geometry, 0)
	for i := 0; i < n; i++ {
		if r.Err() != nil {
			l.offsets[i] = -1
			continue
		}
		l.offsets[i] = r.Offset()
		l.codec.skip(r)
		if r.Err() != nil {
			l.offsets[i] = -1
		}
	}
}

func (l *Layer) geometryOffset(i int) (int, bool) {
	if i < 0 || i >= l.FeatureCount() || l.codec.kind == GeometryNone {
		return 0, false
	}
	l.offsetsOnce.Do(l.buildOffsets)
	off := l.offsets[i]
	return off, off >= 0
}

// Geometry decodes the geometry of feature i into v. It returns false for
// an out of range index, a layer without decodable geometry, or a damaged
// stream.
func (l *Layer) Geometry(i int, v GeometryVisitor) bool {
	if l.codec.kind == GeometryAny {
		return false
	}
	off, ok := l.geometryOffset(i)
	if !ok {
		return false
	}
	return l.codec.visit(format.NewReader(l.geometry, off), v)
}

// GeometryChunk returns the encoded geometry of feature i without decoding
// it. For Any layers this is the stored blob.
func (l *Layer) GeometryChunk(i int) ([]byte, bool) {
	off, ok := l.geometryOffset(i)
	if !ok {
		return nil, false
	}
	b := l.codec.chunk(l.geometry, off)
	return b, b != nil
}

// OrbGeometry returns the geometry of feature i as an orb geometry. Blobs
// of Any layers are decoded as WKB.
func (l *Layer) OrbGeometry(i int) (orb.Geometry, bool) {
	if l.codec.kind == GeometryAny {
		blob, ok := l.GeometryChunk(i)
		if !ok {
			return nil, false
		}
		return decodeOrbBlob(blob)
	}
	var c GeometryCollector
	if !l.Geometry(i, &c) {
		return nil, false
	}
	g := c.Geometry()
	return g, g != nil
}

// Feature returns the handle for feature i. Handles are created on first
// request and the same handle is returned for the lifetime of the database.
func (l *Layer) Feature(i int) (*Feature, bool) {
	if i < 0 || i >= l.FeatureCount() {
		return nil, false
	}
	f, _ := l.handles.LoadOrCompute(i, func() *Feature {
		return &Feature{layer: l, index: i}
	})
	return f, true
}

// Cursor returns a new cursor positioned before the first feature.
func (l *Layer) Cursor() *Cursor {
	return &Cursor{layer: l, index: -1}
}
