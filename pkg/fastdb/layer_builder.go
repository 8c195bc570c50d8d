package fastdb

import (
	"encoding/binary"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// LayerBuilder accumulates the schema, rows and geometries of one layer.
// Obtain one from Builder.BeginLayer.
type LayerBuilder struct {
	b        *Builder
	index    int
	name     string
	settings layerSettings

	fields  []format.FieldDesc
	rowSize int

	rows       format.Writer
	geometries []pendingGeometry
	strings    *stringTable
	wstrings   *stringTable
	count      int

	inFeature bool
	row       []byte
	geom      pendingGeometry
	outside   bool // current feature already reported out of extent

	finished bool
	encoded  []byte
}

func newLayerBuilder(b *Builder, index int, name string, s layerSettings) *LayerBuilder {
	lb := &LayerBuilder{
		b:        b,
		index:    index,
		name:     name,
		settings: s,
		strings:  newStringTable(false),
		wstrings: newStringTable(true),
	}
	lb.geom.reset()
	return lb
}

func (lb *LayerBuilder) warn(err error, fields ...zap.Field) {
	lb.b.warn(err, append(fields, zap.String("layer", lb.name))...)
}

// Name returns the layer name.
func (lb *LayerBuilder) Name() string { return lb.name }

// Index returns the layer's position in the database.
func (lb *LayerBuilder) Index() int { return lb.index }

// FeatureCount returns the number of committed features.
func (lb *LayerBuilder) FeatureCount() int { return lb.count }

// FieldCount returns the number of fields.
func (lb *LayerBuilder) FieldCount() int { return len(lb.fields) }

// RowSize returns the byte width of one attribute row.
func (lb *LayerBuilder) RowSize() int { return lb.rowSize }

// checkSchemaChange reports a schema change made after features exist. The
// change is still applied.
func (lb *LayerBuilder) checkSchemaChange(what string) bool {
	if lb.finished {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "%s on finished layer", what))
		return false
	}
	if lb.count > 0 || lb.inFeature {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "%s after %d features", what, lb.count))
	}
	return true
}

// AddField appends a field to the schema and returns its index.
func (lb *LayerBuilder) AddField(name string, t FieldType, min, max float64) int {
	if !lb.checkSchemaChange("add field " + name) {
		return -1
	}
	size := format.FieldSize(uint16(t), lb.settings.wide)
	if size == 0 {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "field %q has unknown type %d", name, uint16(t)))
		return -1
	}
	if len(name) >= format.FieldNameSize {
		lb.warn(errors.Wrapf(ErrOutOfRange, "field name %q longer than %d bytes", name, format.FieldNameSize-1))
		name = truncateName(name, format.FieldNameSize-1)
	}
	if len(lb.fields) >= math.MaxUint16 {
		lb.warn(errors.Wrapf(ErrOutOfRange, "field %q: too many fields", name))
		return -1
	}

	if lb.count > 0 {
		lb.restride(lb.rowSize + size)
	}
	lb.fields = append(lb.fields, format.FieldDesc{
		Name:   name,
		Type:   uint16(t),
		Min:    min,
		Max:    max,
		Size:   uint64(size),
		Offset: uint64(lb.rowSize),
	})
	lb.rowSize += size
	return len(lb.fields) - 1
}

// restride widens every committed row to size, zero filling the new tail.
func (lb *LayerBuilder) restride(size int) {
	old := lb.rows.Bytes()
	pad := make([]byte, size-lb.rowSize)
	var rows format.Writer
	for i := 0; i < lb.count; i++ {
		rows.Write(old[i*lb.rowSize : (i+1)*lb.rowSize])
		rows.Write(pad)
	}
	lb.rows = rows
}

func (lb *LayerBuilder) SetGeometryKind(k GeometryKind) {
	if !format.ValidKind(uint16(k)) {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "unknown geometry kind %d", uint16(k)))
		return
	}
	if lb.checkSchemaChange("set geometry kind") {
		lb.settings.kind = k
		lb.checkExtent()
	}
}

func (lb *LayerBuilder) SetCoordinateFormat(f CoordinateFormat) {
	if format.CoordSize(uint16(f)) == 0 {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "unknown coordinate format %d", uint16(f)))
		return
	}
	if lb.checkSchemaChange("set coordinate format") {
		lb.settings.format = f
		lb.checkExtent()
	}
}

// EnableBoundingBox turns per-feature bounding boxes on or off. Boxes are
// only written for line and polygon layers.
func (lb *LayerBuilder) EnableBoundingBox(enable bool) {
	if lb.checkSchemaChange("enable bounding box") {
		lb.settings.bboxes = enable
		lb.checkExtent()
	}
}

func (lb *LayerBuilder) SetExtent(extent Bounds) {
	if lb.checkSchemaChange("set extent") {
		lb.settings.extent = extent
		lb.checkExtent()
	}
}

// EnableWideStringIndex selects 32 bit string indices for string fields
// added from now on.
func (lb *LayerBuilder) EnableWideStringIndex(enable bool) {
	if lb.finished {
		lb.warn(errors.Wrap(ErrSchemaMisuse, "enable wide string index on finished layer"))
		return
	}
	for _, f := range lb.fields {
		if enable != lb.settings.wide && FieldType(f.Type).isString() {
			lb.warn(errors.Wrapf(ErrSchemaMisuse, "string index width changed after string field %q", f.Name))
			break
		}
	}
	lb.settings.wide = enable
}

// checkExtent warns when the layer needs an extent it does not have.
func (lb *LayerBuilder) checkExtent() {
	s := lb.settings
	if !s.format.Quantized() && !s.effectiveBBoxes() {
		return
	}
	if !(s.extent.MaxX > s.extent.MinX) || !(s.extent.MaxY > s.extent.MinY) {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "%s coordinates need a non-empty extent", s.format))
	}
}

func (lb *LayerBuilder) codec() geometryCodec {
	return geometryCodec{
		kind: lb.settings.kind,
		coords: format.CoordCodec{
			Format: uint16(lb.settings.format),
			Extent: lb.settings.extent.extent(),
		},
		bboxes: lb.settings.effectiveBBoxes(),
	}
}

// BeginFeature starts a new feature with zeroed fields and no geometry.
func (lb *LayerBuilder) BeginFeature() {
	if lb.finished {
		lb.warn(errors.Wrap(ErrSchemaMisuse, "begin feature on finished layer"))
		return
	}
	if lb.inFeature {
		lb.warn(errors.Wrap(ErrSchemaMisuse, "begin feature while a feature is open"))
		lb.EndFeature()
	}
	if lb.count >= format.MaxFeatures {
		lb.warn(errors.Wrapf(ErrOutOfRange, "layer is full at %d features", lb.count))
		return
	}
	if cap(lb.row) < lb.rowSize {
		lb.row = make([]byte, lb.rowSize)
	}
	lb.row = lb.row[:lb.rowSize]
	clear(lb.row)
	lb.geom.reset()
	lb.outside = false
	lb.inFeature = true
}

// EndFeature commits the open feature's row and geometry. Geometries are
// encoded by EndLayer with the layer's final settings.
func (lb *LayerBuilder) EndFeature() {
	if !lb.inFeature {
		lb.warn(errors.Wrap(ErrNoFeature, "end feature"))
		return
	}
	// Fields added mid-feature widen the row.
	if len(lb.row) < lb.rowSize {
		lb.row = append(lb.row, make([]byte, lb.rowSize-len(lb.row))...)
	}
	lb.rows.Write(lb.row)
	lb.geometries = append(lb.geometries, lb.geom)
	lb.geom = pendingGeometry{}
	lb.geom.reset()
	lb.count++
	lb.inFeature = false
}

func (lb *LayerBuilder) feature(op string) bool {
	if !lb.inFeature {
		lb.warn(errors.Wrap(ErrNoFeature, op))
	}
	return lb.inFeature
}

// SetGeometry parses data in format f and stores it as the feature's
// geometry. Any layers store data unchanged whatever the format.
func (lb *LayerBuilder) SetGeometry(data []byte, f GeometryFormat) {
	if !lb.feature("set geometry") {
		return
	}
	switch lb.settings.kind {
	case GeometryNone:
		return
	case GeometryAny:
		lb.geom.reset()
		lb.geom.blob = append([]byte(nil), data...)
		lb.geomSet()
		return
	}

	switch f {
	case FormatWKT:
		g, err := wkt.Unmarshal(string(data))
		if err != nil {
			lb.unrepresentable(errors.Wrap(err, "parse wkt"))
			return
		}
		lb.SetOrbGeometry(g)
	case FormatWKB:
		g, err := wkb.Unmarshal(data)
		if err != nil {
			lb.unrepresentable(errors.Wrap(err, "parse wkb"))
			return
		}
		lb.SetOrbGeometry(g)
	case FormatPoint:
		if len(data) != 16 {
			lb.unrepresentable(errors.Errorf("raw point is %d bytes, want 16", len(data)))
			return
		}
		lb.SetPoint(rawPoints(data)[0])
	case FormatLineString:
		if len(data) == 0 || len(data)%16 != 0 {
			lb.unrepresentable(errors.Errorf("raw line string of %d bytes", len(data)))
			return
		}
		lb.SetLineString(rawPoints(data))
	default:
		lb.unrepresentable(errors.Errorf("%s input for %s layer", f, lb.settings.kind))
	}
}

func rawPoints(data []byte) []Point {
	pts := make([]Point, len(data)/16)
	for i := range pts {
		pts[i] = Point{
			X: math.Float64frombits(binary.LittleEndian.Uint64(data[i*16:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(data[i*16+8:])),
		}
	}
	return pts
}

func (lb *LayerBuilder) SetGeometryWKT(s string) { lb.SetGeometry([]byte(s), FormatWKT) }

func (lb *LayerBuilder) SetGeometryWKB(data []byte) { lb.SetGeometry(data, FormatWKB) }

// SetRaw stores an opaque blob. Only Any layers accept it.
func (lb *LayerBuilder) SetRaw(data []byte) { lb.SetGeometry(data, FormatRaw) }

func (lb *LayerBuilder) unrepresentable(err error) {
	lb.geom.reset()
	lb.warn(errors.Wrapf(ErrUnrepresentableGeometry, "feature %d: %v", lb.count, err))
}

// SetPoint stores a single point. Line layers take it as a one point line.
func (lb *LayerBuilder) SetPoint(p Point) {
	if !lb.feature("set point") {
		return
	}
	switch lb.settings.kind {
	case GeometryPoint:
		lb.geom.reset()
		lb.geom.point = p
		lb.geom.bounds = lb.geom.bounds.Extend(p)
		lb.geomSet()
		lb.checkCoords(p)
	case GeometryLineString:
		lb.setParts([]Part{{Type: PartLineString, Points: []Point{p}}})
	case GeometryAny:
		lb.SetOrbGeometry(orbPoint(p))
	case GeometryNone:
	default:
		lb.unrepresentable(errors.Errorf("point for %s layer", lb.settings.kind))
	}
}

// SetLineString stores one line part. Polygon layers take it as an
// exterior ring.
func (lb *LayerBuilder) SetLineString(points []Point) {
	if !lb.feature("set line string") {
		return
	}
	switch lb.settings.kind {
	case GeometryLineString:
		lb.setParts([]Part{{Type: PartLineString, Points: append([]Point(nil), points...)}})
	case GeometryPolygon:
		lb.setParts([]Part{{Type: PartRingExternal, Points: append([]Point(nil), points...)}})
	case GeometryAny:
		lb.SetOrbGeometry(orb.LineString(orbPoints(points)))
	case GeometryNone:
	default:
		lb.unrepresentable(errors.Errorf("line string for %s layer", lb.settings.kind))
	}
}

// SetOrbGeometry stores an orb geometry. Point layers accept Point and
// single point MultiPoint, line layers LineString and MultiLineString,
// polygon layers Ring, Polygon and MultiPolygon. Any layers store the
// geometry as WKB.
func (lb *LayerBuilder) SetOrbGeometry(g orb.Geometry) {
	if !lb.feature("set geometry") {
		return
	}
	if g == nil {
		lb.unrepresentable(errors.New("nil geometry"))
		return
	}

	switch lb.settings.kind {
	case GeometryNone:
		return
	case GeometryAny:
		blob, err := wkb.Marshal(g)
		if err != nil {
			lb.unrepresentable(errors.Wrap(err, "encode wkb"))
			return
		}
		lb.geom.reset()
		lb.geom.blob = blob
		lb.geomSet()
		return
	case GeometryPoint:
		switch v := g.(type) {
		case orb.Point:
			lb.SetPoint(Point{X: v[0], Y: v[1]})
			return
		case orb.MultiPoint:
			if len(v) == 1 {
				lb.SetPoint(Point{X: v[0][0], Y: v[0][1]})
				return
			}
		}
	case GeometryLineString:
		switch v := g.(type) {
		case orb.LineString:
			lb.setParts([]Part{linePart(PartLineString, v)})
			return
		case orb.MultiLineString:
			parts := make([]Part, 0, len(v))
			for _, ls := range v {
				parts = append(parts, linePart(PartLineString, ls))
			}
			lb.setParts(parts)
			return
		}
	case GeometryPolygon:
		switch v := g.(type) {
		case orb.Ring:
			lb.setParts([]Part{linePart(PartRingExternal, v)})
			return
		case orb.Polygon:
			lb.setParts(polygonParts(nil, v))
			return
		case orb.MultiPolygon:
			var parts []Part
			for _, p := range v {
				parts = polygonParts(parts, p)
			}
			lb.setParts(parts)
			return
		}
	}
	lb.unrepresentable(errors.Errorf("%s for %s layer", g.GeoJSONType(), lb.settings.kind))
}

func linePart(t PartType, pts []orb.Point) Part {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p[0], Y: p[1]}
	}
	return Part{Type: t, Points: out}
}

func polygonParts(parts []Part, p orb.Polygon) []Part {
	for i, ring := range p {
		t := PartRingInternal
		if i == 0 {
			t = PartRingExternal
		}
		parts = append(parts, linePart(t, ring))
	}
	return parts
}

func (lb *LayerBuilder) setParts(parts []Part) {
	if len(parts) > format.MaxParts {
		lb.unrepresentable(errors.Errorf("%d parts, at most %d fit", len(parts), format.MaxParts))
		return
	}
	for _, p := range parts {
		if len(p.Points) > format.MaxPoints {
			lb.unrepresentable(errors.Errorf("part with %d points, at most %d fit", len(p.Points), format.MaxPoints))
			return
		}
	}

	lb.geom.reset()
	lb.geom.parts = append(lb.geom.parts, parts...)
	for _, p := range parts {
		for _, pt := range p.Points {
			lb.geom.bounds = lb.geom.bounds.Extend(pt)
			lb.checkCoords(pt)
		}
	}
	lb.geomSet()
}

// geomSet marks the open feature's geometry as stored for the current kind.
func (lb *LayerBuilder) geomSet() {
	lb.geom.set = true
	lb.geom.kind = lb.settings.kind
}

// checkCoords reports the first coordinate of a feature that falls outside
// the layer extent. The coordinate is written regardless.
func (lb *LayerBuilder) checkCoords(p Point) {
	if lb.outside || lb.settings.extent.Contains(p.X, p.Y) {
		return
	}
	lb.outside = true
	lb.warn(errors.Wrapf(ErrOutOfRange, "feature %d: coordinate (%g, %g) outside layer extent", lb.count, p.X, p.Y))
}

func (lb *LayerBuilder) field(op string, i int) (format.FieldDesc, bool) {
	if !lb.feature(op) {
		return format.FieldDesc{}, false
	}
	if i < 0 || i >= len(lb.fields) {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "%s: field %d out of range", op, i))
		return format.FieldDesc{}, false
	}
	f := lb.fields[i]
	if int(f.Offset+f.Size) > len(lb.row) {
		lb.row = append(lb.row, make([]byte, lb.rowSize-len(lb.row))...)
	}
	return f, true
}

func (lb *LayerBuilder) mismatch(f format.FieldDesc, what string) {
	lb.warn(errors.Wrapf(ErrSchemaMisuse, "%s value for %s field %q", what, FieldType(f.Type), f.Name))
}

// SetFloat stores v in a numeric field. Integer fields round and clamp to
// their range; normalized fields quantize v within the field's [Min, Max].
func (lb *LayerBuilder) SetFloat(i int, v float64) {
	f, ok := lb.field("set float", i)
	if !ok {
		return
	}
	cell := lb.row[f.Offset : f.Offset+f.Size]
	switch FieldType(f.Type) {
	case FieldU8:
		cell[0] = uint8(clampRound(v, 0, math.MaxUint8))
	case FieldU16:
		binary.LittleEndian.PutUint16(cell, uint16(clampRound(v, 0, math.MaxUint16)))
	case FieldU32:
		binary.LittleEndian.PutUint32(cell, uint32(clampRound(v, 0, math.MaxUint32)))
	case FieldI32:
		binary.LittleEndian.PutUint32(cell, uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
	case FieldU8n:
		cell[0] = uint8(format.Quantize(v, f.Min, f.Max, format.MaxRaw8))
	case FieldU16n:
		binary.LittleEndian.PutUint16(cell, uint16(format.Quantize(v, f.Min, f.Max, format.MaxRaw16)))
	case FieldF32:
		binary.LittleEndian.PutUint32(cell, math.Float32bits(float32(v)))
	case FieldF64:
		binary.LittleEndian.PutUint64(cell, math.Float64bits(v))
	default:
		lb.mismatch(f, "numeric")
	}
}

// SetInt stores v in a numeric field.
func (lb *LayerBuilder) SetInt(i int, v int64) {
	f, ok := lb.field("set int", i)
	if !ok {
		return
	}
	cell := lb.row[f.Offset : f.Offset+f.Size]
	switch FieldType(f.Type) {
	case FieldU8:
		cell[0] = uint8(clampInt(v, 0, math.MaxUint8))
	case FieldU16:
		binary.LittleEndian.PutUint16(cell, uint16(clampInt(v, 0, math.MaxUint16)))
	case FieldU32:
		binary.LittleEndian.PutUint32(cell, uint32(clampInt(v, 0, math.MaxUint32)))
	case FieldI32:
		binary.LittleEndian.PutUint32(cell, uint32(int32(clampInt(v, math.MinInt32, math.MaxInt32))))
	default:
		if FieldType(f.Type).isNumeric() {
			lb.SetFloat(i, float64(v))
			return
		}
		lb.mismatch(f, "integer")
	}
}

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, math.Round(v)))
}

func clampInt(v, lo, hi int64) int64 {
	return max(lo, min(hi, v))
}

// SetString stores s in a String or WString field. The string is added to
// the matching table once per distinct value. A NUL in s ends the stored
// string.
func (lb *LayerBuilder) SetString(i int, s string) {
	f, ok := lb.field("set string", i)
	if !ok {
		return
	}
	var table *stringTable
	switch FieldType(f.Type) {
	case FieldString:
		table = lb.strings
	case FieldWString:
		table = lb.wstrings
	default:
		lb.mismatch(f, "string")
		return
	}
	if cut, found := stripNUL(s); found {
		lb.warn(errors.Wrapf(ErrOutOfRange, "field %q: string contains NUL", f.Name))
		s = cut
	}

	cell := lb.row[f.Offset : f.Offset+f.Size]
	if f.Size == 2 {
		if _, seen := table.index[s]; !seen && table.len() > math.MaxUint16 {
			lb.warn(errors.Wrapf(ErrOutOfRange, "field %q: more than %d strings need a wide string index", f.Name, math.MaxUint16+1))
			return
		}
		binary.LittleEndian.PutUint16(cell, uint16(table.add(s)))
		return
	}
	binary.LittleEndian.PutUint32(cell, table.add(s))
}

// SetWString stores s in a WString field.
func (lb *LayerBuilder) SetWString(i int, s string) {
	f, ok := lb.field("set wstring", i)
	if !ok {
		return
	}
	if FieldType(f.Type) != FieldWString {
		lb.mismatch(f, "wide string")
		return
	}
	lb.SetString(i, s)
}

// SetRef stores a feature reference in a FeatureRef field.
func (lb *LayerBuilder) SetRef(i int, ref FeatureRef) {
	f, ok := lb.field("set ref", i)
	if !ok {
		return
	}
	if FieldType(f.Type) != FieldFeatureRef {
		lb.mismatch(f, "feature ref")
		return
	}
	if _, live := lb.b.refs[ref]; !live {
		lb.warn(errors.Wrapf(ErrSchemaMisuse, "field %q: feature ref %s was not created by this builder or was freed", f.Name, ref))
	}
	cell := lb.row[f.Offset : f.Offset+f.Size]
	binary.LittleEndian.PutUint16(cell, ref.Layer)
	cell[2] = byte(ref.Feature)
	cell[3] = byte(ref.Feature >> 8)
	cell[4] = byte(ref.Feature >> 16)
}

// CreateFeatureRef returns a reference to the last committed feature.
func (lb *LayerBuilder) CreateFeatureRef() FeatureRef {
	return lb.FeatureRefAt(lb.count - 1)
}

// FeatureRefAt returns a reference to feature i of this layer.
func (lb *LayerBuilder) FeatureRefAt(i int) FeatureRef {
	if i < 0 || i >= format.MaxFeatures || lb.index >= format.MaxLayers {
		lb.warn(errors.Wrapf(ErrOutOfRange, "feature ref to feature %d of layer %d", i, lb.index))
		return FeatureRef{}
	}
	ref := FeatureRef{Layer: uint16(lb.index), Feature: uint32(i)}
	lb.b.refs[ref] = struct{}{}
	return ref
}

// EndLayer finishes the layer. Its encoded form is kept until the database
// is saved; rows, geometries and string tables are released.
func (lb *LayerBuilder) EndLayer() {
	if lb.finished {
		lb.warn(errors.Wrap(ErrSchemaMisuse, "layer already finished"))
		return
	}
	if lb.inFeature {
		lb.warn(errors.Wrap(ErrSchemaMisuse, "layer ended with an open feature"))
		lb.EndFeature()
	}

	var data format.Writer
	codec := lb.codec()
	for i := range lb.geometries {
		codec.encode(&data, &lb.geometries[i])
	}
	offsetTable := data.Len()
	data.Write(lb.rows.Bytes())
	offsetStrings := data.Len()
	if err := lb.strings.encode(&data); err != nil {
		lb.warn(errors.Wrap(err, "encode strings"))
	}
	offsetWide := data.Len()
	if err := lb.wstrings.encode(&data); err != nil {
		lb.warn(errors.Wrap(err, "encode wide strings"))
	}

	h := format.LayerHeader{
		Name:          lb.name,
		FeatureCount:  uint32(lb.count),
		GeometryKind:  uint16(lb.settings.kind),
		FieldCount:    uint16(len(lb.fields)),
		CoordFormat:   uint16(lb.settings.format),
		BBoxes:        lb.settings.effectiveBBoxes(),
		WideIndex:     lb.settings.wide,
		MinX:          lb.settings.extent.MinX,
		MinY:          lb.settings.extent.MinY,
		MaxX:          lb.settings.extent.MaxX,
		MaxY:          lb.settings.extent.MaxY,
		OffsetTable:   uint64(offsetTable),
		OffsetStrings: uint64(offsetStrings),
		OffsetWide:    uint64(offsetWide),
	}
	h.TotalSize = uint64(h.DataStart() + data.Len())

	var w format.Writer
	h.Encode(&w)
	for i := range lb.fields {
		lb.fields[i].Encode(&w)
	}
	w.Write(data.Bytes())
	lb.encoded = w.Bytes()

	lb.b.log.Info("fastdb layer finished",
		zap.String("layer", lb.name),
		zap.Stringer("kind", lb.settings.kind),
		zap.Stringer("format", lb.settings.format),
		zap.Int("features", lb.count),
		zap.Int("fields", len(lb.fields)),
		zap.Int("strings", lb.strings.len()),
		zap.Int("wstrings", lb.wstrings.len()),
		zap.Int("bytes", len(lb.encoded)),
	)

	lb.finished = true
	lb.rows = format.Writer{}
	lb.geometries = nil
	lb.strings = newStringTable(false)
	lb.wstrings = newStringTable(true)
	lb.row = nil
	if lb.b.current == lb {
		lb.b.current = nil
	}
}
