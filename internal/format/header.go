package format

import (
	"fmt"
)

// LayerHeader is the fixed size record at the start of every layer.
//
// The four offsets are relative to the first byte after the field
// descriptors. TotalSize spans the header, the descriptors and the data.
type LayerHeader struct {
	Name          string
	FeatureCount  uint32
	GeometryKind  uint16
	FieldCount    uint16
	CoordFormat   uint16
	BBoxes        bool
	WideIndex     bool
	MinX, MinY    float64
	MaxX, MaxY    float64
	OffsetTable   uint64
	OffsetStrings uint64
	OffsetWide    uint64
	TotalSize     uint64
}

// FieldDesc describes one attribute column.
type FieldDesc struct {
	Name   string
	Type   uint16
	Min    float64
	Max    float64
	Size   uint64
	Offset uint64
}

// DataStart returns the offset of the data section relative to the layer
// start.
func (h *LayerHeader) DataStart() int {
	return LayerHeaderSize + int(h.FieldCount)*FieldDescSize
}

// Encode appends the header to w.
func (h *LayerHeader) Encode(w *Writer) {
	w.PutFixedString(h.Name, LayerNameSize)
	w.PutU32(h.FeatureCount)
	w.PutU16(h.GeometryKind)
	w.PutU16(h.FieldCount)
	w.PutU16(h.CoordFormat)
	w.PutU8(boolByte(h.BBoxes))
	w.PutU8(boolByte(h.WideIndex))
	w.PutF64(h.MinX)
	w.PutF64(h.MinY)
	w.PutF64(h.MaxX)
	w.PutF64(h.MaxY)
	w.PutU64(h.OffsetTable)
	w.PutU64(h.OffsetStrings)
	w.PutU64(h.OffsetWide)
	w.PutU64(h.TotalSize)
}

// DecodeLayerHeader reads a header at the reader's position.
func DecodeLayerHeader(r *Reader) (LayerHeader, error) {
	var h LayerHeader
	h.Name = FixedString(r.Bytes(LayerNameSize))
	h.FeatureCount = r.U32()
	h.GeometryKind = r.U16()
	h.FieldCount = r.U16()
	h.CoordFormat = r.U16()
	h.BBoxes = r.U8() != 0
	h.WideIndex = r.U8() != 0
	h.MinX = r.F64()
	h.MinY = r.F64()
	h.MaxX = r.F64()
	h.MaxY = r.F64()
	h.OffsetTable = r.U64()
	h.OffsetStrings = r.U64()
	h.OffsetWide = r.U64()
	h.TotalSize = r.U64()
	if err := r.Err(); err != nil {
		return h, err
	}
	return h, h.validate()
}

func (h *LayerHeader) validate() error {
	if !ValidKind(h.GeometryKind) {
		return &ErrInvalidHeader{Layer: h.Name, Reason: fmt.Sprintf("unknown geometry kind %d", h.GeometryKind)}
	}
	if h.GeometryKind != KindAny && h.GeometryKind != KindNone && CoordSize(h.CoordFormat) == 0 {
		return &ErrInvalidHeader{Layer: h.Name, Reason: fmt.Sprintf("unknown coordinate format %d", h.CoordFormat)}
	}
	if h.OffsetTable > h.OffsetStrings || h.OffsetStrings > h.OffsetWide {
		return &ErrInvalidHeader{Layer: h.Name, Reason: "section offsets out of order"}
	}
	if uint64(h.DataStart())+h.OffsetWide > h.TotalSize {
		return &ErrInvalidHeader{Layer: h.Name, Reason: "section offsets exceed layer size"}
	}
	return nil
}

// Encode appends the descriptor to w.
func (f *FieldDesc) Encode(w *Writer) {
	w.PutFixedString(f.Name, FieldNameSize)
	w.PutU16(f.Type)
	w.PutF64(f.Min)
	w.PutF64(f.Max)
	w.PutU64(f.Size)
	w.PutU64(f.Offset)
}

// DecodeFieldDesc reads a field descriptor at the reader's position.
func DecodeFieldDesc(r *Reader) (FieldDesc, error) {
	var f FieldDesc
	f.Name = FixedString(r.Bytes(FieldNameSize))
	f.Type = r.U16()
	f.Min = r.F64()
	f.Max = r.F64()
	f.Size = r.U64()
	f.Offset = r.U64()
	return f, r.Err()
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
