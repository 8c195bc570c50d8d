// Package format implements the on-disk layout of a fastdb database.
//
// A database is a 16 byte magic tag, a layer count, and that many layers laid
// out back to back. Every layer is self-describing: a fixed size header, one
// descriptor per attribute field, then four sections (geometry stream,
// attribute table, narrow string table, wide string table). All integers and
// floats are little-endian and no structure carries implicit padding.
//
// The package knows nothing about builders or readers; it only encodes and
// decodes the pieces and enforces bounds on every read.
package format

// Magic identifies a fastdb file. It includes the trailing NUL.
var Magic = [MagicSize]byte{'F', 'A', 'S', 'T', 'V', 'e', 'c', 't', 'o', 'r', 'D', 'B', '0', '.', '1', 0}

const (
	MagicSize       = 16
	FileHeaderSize  = MagicSize + 4 // magic + layer count
	LayerNameSize   = 64
	FieldNameSize   = 16
	LayerHeaderSize = LayerNameSize + 4 + 2 + 2 + 2 + 1 + 1 + 4*8 + 4*8
	FieldDescSize   = FieldNameSize + 2 + 8 + 8 + 8 + 8
	BBoxSize        = 4 * 2
)

// Geometry kinds.
const (
	KindAny        uint16 = 0
	KindPoint      uint16 = 1
	KindLineString uint16 = 2
	KindPolygon    uint16 = 3
	KindNone       uint16 = 0xFFFF
)

// Coordinate formats.
const (
	CoordF32  uint16 = 1
	CoordF64  uint16 = 2
	CoordTx16 uint16 = 3
	CoordTx24 uint16 = 4
	CoordTx32 uint16 = 5
)

// Field types.
const (
	FieldU8         uint16 = 1
	FieldU16        uint16 = 2
	FieldU32        uint16 = 3
	FieldI32        uint16 = 4
	FieldU8n        uint16 = 5
	FieldU16n       uint16 = 6
	FieldF32        uint16 = 7
	FieldF64        uint16 = 8
	FieldString     uint16 = 9
	FieldWString    uint16 = 10
	FieldFeatureRef uint16 = 11
)

// Part types inside a line or polygon geometry.
const (
	PartPoint        uint8 = 1
	PartLineString   uint8 = 2
	PartRingExternal uint8 = 3
	PartRingInternal uint8 = 4
)

const (
	// FeatureRefSize is the packed width of a feature reference field.
	FeatureRefSize = 5

	MaxLayers   = 1 << 16
	MaxFeatures = 1 << 24
	MaxParts    = 0xFFFF
	MaxPoints   = 0xFFFF
)

// CoordSize returns the encoded size of one (x, y) pair, or 0 for an unknown
// format.
func CoordSize(cf uint16) int {
	switch cf {
	case CoordF32:
		return 8
	case CoordF64:
		return 16
	case CoordTx16:
		return 4
	case CoordTx24:
		return 6
	case CoordTx32:
		return 8
	}
	return 0
}

// IsQuantized reports whether cf stores coordinates relative to the layer
// extent.
func IsQuantized(cf uint16) bool {
	return cf == CoordTx16 || cf == CoordTx24 || cf == CoordTx32
}

// ValidKind reports whether k is a known geometry kind.
func ValidKind(k uint16) bool {
	return k <= KindPolygon || k == KindNone
}

// FieldSize returns the row footprint of a field of type ft. String fields
// take 2 bytes, or 4 when wide is set. Unknown types return 0.
func FieldSize(ft uint16, wide bool) int {
	switch ft {
	case FieldU8, FieldU8n:
		return 1
	case FieldU16, FieldU16n:
		return 2
	case FieldU32, FieldI32, FieldF32:
		return 4
	case FieldF64:
		return 8
	case FieldString, FieldWString:
		if wide {
			return 4
		}
		return 2
	case FieldFeatureRef:
		return FeatureRefSize
	}
	return 0
}

// PackRef combines a layer and feature index into the 40 bit reference value.
func PackRef(layer, feature uint32) uint64 {
	return uint64(layer&0xFFFF) | uint64(feature&0xFFFFFF)<<16
}

// UnpackRef splits a reference value into layer and feature index.
func UnpackRef(v uint64) (layer, feature uint32) {
	return uint32(v & 0xFFFF), uint32((v >> 16) & 0xFFFFFF)
}
