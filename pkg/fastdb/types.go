package fastdb

import (
	"fmt"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// GeometryKind is the geometry shape shared by every feature of a layer.
type GeometryKind uint16

const (
	GeometryAny        GeometryKind = GeometryKind(format.KindAny)        // Opaque blob per feature
	GeometryPoint      GeometryKind = GeometryKind(format.KindPoint)      // One coordinate pair
	GeometryLineString GeometryKind = GeometryKind(format.KindLineString) // One or more line parts
	GeometryPolygon    GeometryKind = GeometryKind(format.KindPolygon)    // Exterior and interior rings
	GeometryNone       GeometryKind = GeometryKind(format.KindNone)       // Attributes only
)

// String returns the geometry kind name.
func (k GeometryKind) String() string {
	switch k {
	case GeometryAny:
		return "Any"
	case GeometryPoint:
		return "Point"
	case GeometryLineString:
		return "LineString"
	case GeometryPolygon:
		return "Polygon"
	case GeometryNone:
		return "None"
	default:
		return fmt.Sprintf("GeometryKind(%d)", uint16(k))
	}
}

// hasParts reports whether geometries of this kind are stored as parts.
func (k GeometryKind) hasParts() bool {
	return k == GeometryLineString || k == GeometryPolygon
}

// CoordinateFormat selects how coordinate pairs are stored.
//
// The Tx formats store each axis as an unsigned integer scaled into the
// layer extent. They are compact but lose precision in proportion to the
// extent size: Tx16 resolves 1/65535 of the extent per axis.
type CoordinateFormat uint16

const (
	CoordF32  CoordinateFormat = CoordinateFormat(format.CoordF32)
	CoordF64  CoordinateFormat = CoordinateFormat(format.CoordF64)
	CoordTx16 CoordinateFormat = CoordinateFormat(format.CoordTx16)
	CoordTx24 CoordinateFormat = CoordinateFormat(format.CoordTx24)
	CoordTx32 CoordinateFormat = CoordinateFormat(format.CoordTx32)
)

func (f CoordinateFormat) String() string {
	switch f {
	case CoordF32:
		return "F32"
	case CoordF64:
		return "F64"
	case CoordTx16:
		return "Tx16"
	case CoordTx24:
		return "Tx24"
	case CoordTx32:
		return "Tx32"
	default:
		return fmt.Sprintf("CoordinateFormat(%d)", uint16(f))
	}
}

// Quantized reports whether the format depends on the layer extent.
func (f CoordinateFormat) Quantized() bool {
	return format.IsQuantized(uint16(f))
}

// FieldType is the storage type of an attribute field.
type FieldType uint16

const (
	FieldU8         FieldType = FieldType(format.FieldU8)
	FieldU16        FieldType = FieldType(format.FieldU16)
	FieldU32        FieldType = FieldType(format.FieldU32)
	FieldI32        FieldType = FieldType(format.FieldI32)
	FieldU8n        FieldType = FieldType(format.FieldU8n)  // 8 bit value normalized into [Min, Max]
	FieldU16n       FieldType = FieldType(format.FieldU16n) // 16 bit value normalized into [Min, Max]
	FieldF32        FieldType = FieldType(format.FieldF32)
	FieldF64        FieldType = FieldType(format.FieldF64)
	FieldString     FieldType = FieldType(format.FieldString)  // Index into the UTF-8 string table
	FieldWString    FieldType = FieldType(format.FieldWString) // Index into the UTF-16 string table
	FieldFeatureRef FieldType = FieldType(format.FieldFeatureRef)
)

func (t FieldType) String() string {
	switch t {
	case FieldU8:
		return "U8"
	case FieldU16:
		return "U16"
	case FieldU32:
		return "U32"
	case FieldI32:
		return "I32"
	case FieldU8n:
		return "U8n"
	case FieldU16n:
		return "U16n"
	case FieldF32:
		return "F32"
	case FieldF64:
		return "F64"
	case FieldString:
		return "String"
	case FieldWString:
		return "WString"
	case FieldFeatureRef:
		return "FeatureRef"
	default:
		return fmt.Sprintf("FieldType(%d)", uint16(t))
	}
}

func (t FieldType) isInteger() bool {
	return t == FieldU8 || t == FieldU16 || t == FieldU32 || t == FieldI32
}

func (t FieldType) isNumeric() bool {
	return t.isInteger() || t == FieldU8n || t == FieldU16n || t == FieldF32 || t == FieldF64
}

func (t FieldType) isString() bool {
	return t == FieldString || t == FieldWString
}

// GeometryFormat identifies the encoding of geometry passed to the builder.
type GeometryFormat int

const (
	FormatWKT        GeometryFormat = 1 // Well-known text
	FormatWKB        GeometryFormat = 2 // Well-known binary
	FormatPoint      GeometryFormat = 3 // Two little-endian float64 values: x, y
	FormatLineString GeometryFormat = 4 // N pairs of little-endian float64 values
	FormatRaw        GeometryFormat = 5 // Opaque bytes for Any layers
)

func (f GeometryFormat) String() string {
	switch f {
	case FormatWKT:
		return "WKT"
	case FormatWKB:
		return "WKB"
	case FormatPoint:
		return "Point"
	case FormatLineString:
		return "LineString"
	case FormatRaw:
		return "Raw"
	default:
		return fmt.Sprintf("GeometryFormat(%d)", int(f))
	}
}

// PartType tags each part delivered to a GeometryVisitor.
type PartType uint8

const (
	PartPoint        PartType = PartType(format.PartPoint)
	PartLineString   PartType = PartType(format.PartLineString)
	PartRingExternal PartType = PartType(format.PartRingExternal)
	PartRingInternal PartType = PartType(format.PartRingInternal)
)

func (p PartType) String() string {
	switch p {
	case PartPoint:
		return "Point"
	case PartLineString:
		return "LineString"
	case PartRingExternal:
		return "RingExternal"
	case PartRingInternal:
		return "RingInternal"
	default:
		return fmt.Sprintf("PartType(%d)", uint8(p))
	}
}

// Point is a coordinate pair.
type Point struct {
	X, Y float64
}

// FeatureRef names a feature in a database by layer and feature index.
//
// On disk a reference occupies 5 bytes: 16 bits of layer index followed by
// 24 bits of feature index.
type FeatureRef struct {
	Layer   uint16
	Feature uint32
}

// Value returns the packed 40 bit form of the reference.
func (r FeatureRef) Value() uint64 {
	return format.PackRef(uint32(r.Layer), r.Feature)
}

// FeatureRefFromValue unpacks a value produced by FeatureRef.Value.
func FeatureRefFromValue(v uint64) FeatureRef {
	layer, feature := format.UnpackRef(v)
	return FeatureRef{Layer: uint16(layer), Feature: feature}
}

func (r FeatureRef) String() string {
	return fmt.Sprintf("%d:%d", r.Layer, r.Feature)
}
