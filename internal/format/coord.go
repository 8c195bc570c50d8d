package format

import (
	"math"
)

const (
	MaxRaw8  = 0xFF
	MaxRaw16 = 0xFFFF
	MaxRaw24 = 0xFFFFFF
	MaxRaw32 = 0xFFFFFFFF
)

// Extent is the declared coordinate range of a layer.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Quantize maps v from [lo, hi] onto [0, maxRaw], rounding to nearest.
// Values outside the range clamp to the ends. A degenerate range yields 0.
func Quantize(v, lo, hi float64, maxRaw uint32) uint32 {
	return quantize(v, lo, hi, maxRaw, math.Round)
}

// QuantizeFloor is Quantize rounding toward lo.
func QuantizeFloor(v, lo, hi float64, maxRaw uint32) uint32 {
	return quantize(v, lo, hi, maxRaw, math.Floor)
}

// QuantizeCeil is Quantize rounding toward hi.
func QuantizeCeil(v, lo, hi float64, maxRaw uint32) uint32 {
	return quantize(v, lo, hi, maxRaw, math.Ceil)
}

func quantize(v, lo, hi float64, maxRaw uint32, round func(float64) float64) uint32 {
	if !(hi > lo) || math.IsNaN(v) {
		return 0
	}
	q := round(float64(maxRaw) * (v - lo) / (hi - lo))
	if q <= 0 {
		return 0
	}
	if q >= float64(maxRaw) {
		return maxRaw
	}
	return uint32(q)
}

// Dequantize is the inverse of Quantize.
func Dequantize(raw uint32, lo, hi float64, maxRaw uint32) float64 {
	if !(hi > lo) {
		return lo
	}
	return lo + (hi-lo)*float64(raw)/float64(maxRaw)
}

// Step returns the size of one 16 bit quantization step along each axis.
func (e Extent) Step() (dx, dy float64) {
	return (e.MaxX - e.MinX) / MaxRaw16, (e.MaxY - e.MinY) / MaxRaw16
}

// CoordCodec reads and writes coordinate pairs in one coordinate format.
type CoordCodec struct {
	Format uint16
	Extent Extent
}

// Size returns the encoded size of one pair.
func (c CoordCodec) Size() int { return CoordSize(c.Format) }

func (c CoordCodec) maxRaw() uint32 {
	switch c.Format {
	case CoordTx16:
		return MaxRaw16
	case CoordTx24:
		return MaxRaw24
	}
	return MaxRaw32
}

// Put appends one pair to w.
func (c CoordCodec) Put(w *Writer, x, y float64) {
	switch c.Format {
	case CoordF32:
		w.PutF32(float32(x))
		w.PutF32(float32(y))
	case CoordF64:
		w.PutF64(x)
		w.PutF64(y)
	case CoordTx16, CoordTx24, CoordTx32:
		m := c.maxRaw()
		qx := Quantize(x, c.Extent.MinX, c.Extent.MaxX, m)
		qy := Quantize(y, c.Extent.MinY, c.Extent.MaxY, m)
		switch c.Format {
		case CoordTx16:
			w.PutU16(uint16(qx))
			w.PutU16(uint16(qy))
		case CoordTx24:
			w.PutU24(qx)
			w.PutU24(qy)
		default:
			w.PutU32(qx)
			w.PutU32(qy)
		}
	}
}

// PutEmpty appends the placeholder pair used for a missing point.
func (c CoordCodec) PutEmpty(w *Writer) {
	switch c.Format {
	case CoordF32, CoordF64:
		c.Put(w, math.NaN(), math.NaN())
	default:
		w.Write(make([]byte, c.Size()))
	}
}

// Get decodes one pair from r.
func (c CoordCodec) Get(r *Reader) (x, y float64) {
	switch c.Format {
	case CoordF32:
		return float64(r.F32()), float64(r.F32())
	case CoordF64:
		return r.F64(), r.F64()
	case CoordTx16:
		qx, qy := uint32(r.U16()), uint32(r.U16())
		return c.dequantize(qx, qy)
	case CoordTx24:
		qx, qy := r.U24(), r.U24()
		return c.dequantize(qx, qy)
	case CoordTx32:
		qx, qy := r.U32(), r.U32()
		return c.dequantize(qx, qy)
	}
	return 0, 0
}

func (c CoordCodec) dequantize(qx, qy uint32) (float64, float64) {
	m := c.maxRaw()
	return Dequantize(qx, c.Extent.MinX, c.Extent.MaxX, m),
		Dequantize(qy, c.Extent.MinY, c.Extent.MaxY, m)
}

// PutBBox appends the 16 bit bounding box of b, grown outward by one
// quantization step so the stored box always contains the geometry.
func PutBBox(w *Writer, ext Extent, b Extent) {
	dx, dy := ext.Step()
	minx, maxx := bboxEdges(
		QuantizeFloor(b.MinX-dx, ext.MinX, ext.MaxX, MaxRaw16),
		QuantizeCeil(b.MaxX+dx, ext.MinX, ext.MaxX, MaxRaw16))
	miny, maxy := bboxEdges(
		QuantizeFloor(b.MinY-dy, ext.MinY, ext.MaxY, MaxRaw16),
		QuantizeCeil(b.MaxY+dy, ext.MinY, ext.MaxY, MaxRaw16))
	w.PutU16(uint16(minx))
	w.PutU16(uint16(miny))
	w.PutU16(uint16(maxx))
	w.PutU16(uint16(maxy))
}

// bboxEdges keeps a box at least one step wide when both edges clamped to
// the same side of the extent.
func bboxEdges(lo, hi uint32) (uint32, uint32) {
	if hi > lo {
		return lo, hi
	}
	if lo >= MaxRaw16 {
		return MaxRaw16 - 1, MaxRaw16
	}
	return lo, lo + 1
}

// GetBBox decodes a bounding box written by PutBBox.
func GetBBox(r *Reader, ext Extent) Extent {
	minx, miny := uint32(r.U16()), uint32(r.U16())
	maxx, maxy := uint32(r.U16()), uint32(r.U16())
	return Extent{
		MinX: Dequantize(minx, ext.MinX, ext.MaxX, MaxRaw16),
		MinY: Dequantize(miny, ext.MinY, ext.MaxY, MaxRaw16),
		MaxX: Dequantize(maxx, ext.MinX, ext.MaxX, MaxRaw16),
		MaxY: Dequantize(maxy, ext.MinY, ext.MaxY, MaxRaw16),
	}
}
