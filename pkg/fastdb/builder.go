package fastdb

import (
	"bytes"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// Builder writes a fastdb database one layer at a time.
//
// Builder methods that configure or fill a layer forward to the layer opened
// by the most recent BeginLayer. Configuration setters also change the
// defaults inherited by layers begun afterwards.
//
// Misuse never aborts a build. Calls made in the wrong state, values that do
// not fit and geometry that does not match the layer are logged, recorded in
// Warnings, and skipped.
//
// Example:
//
//	b := fastdb.NewBuilder(fastdb.DefaultBuilderOptions())
//	b.BeginLayer("cities")
//	name := b.AddField("name", fastdb.FieldString, 0, 0)
//	b.BeginFeature()
//	b.SetPoint(fastdb.Point{X: 2.35, Y: 48.86})
//	b.SetString(name, "Paris")
//	b.EndFeature()
//	b.EndLayer()
//	err := b.SaveFile("cities.fdb")
//
// A Builder is not safe for concurrent use.
type Builder struct {
	log      *zap.Logger
	defaults layerSettings

	layers   []*LayerBuilder
	current  *LayerBuilder // open layer, nil between layers
	last     *LayerBuilder // most recently begun layer
	refs     map[FeatureRef]struct{}
	warnings []error
}

// NewBuilder creates an empty database builder.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CoordinateFormat == 0 {
		opts.CoordinateFormat = CoordF32
	}
	return &Builder{
		log:      opts.Logger,
		defaults: opts.settings(),
		refs:     make(map[FeatureRef]struct{}),
	}
}

func (b *Builder) warn(err error, fields ...zap.Field) {
	b.warnings = append(b.warnings, err)
	b.log.Warn("fastdb builder", append(fields, zap.Error(err))...)
}

// Warnings returns every warning raised so far, oldest first.
func (b *Builder) Warnings() []error {
	return b.warnings
}

// BeginLayer starts a new layer with the current defaults. A layer that is
// still open is finished first.
func (b *Builder) BeginLayer(name string) *LayerBuilder {
	if b.current != nil {
		b.warn(errors.Wrapf(ErrSchemaMisuse, "layer %q still open when %q begun", b.current.name, name))
		b.current.EndLayer()
	}
	if len(name) >= format.LayerNameSize {
		b.warn(errors.Wrapf(ErrOutOfRange, "layer name %q longer than %d bytes", name, format.LayerNameSize-1))
		name = truncateName(name, format.LayerNameSize-1)
	}
	if len(b.layers) >= format.MaxLayers {
		b.warn(errors.Wrapf(ErrOutOfRange, "layer %q: more than %d layers cannot be referenced", name, format.MaxLayers))
	}

	lb := newLayerBuilder(b, len(b.layers), name, b.defaults)
	b.layers = append(b.layers, lb)
	b.current = lb
	b.last = lb
	lb.checkExtent()
	return lb
}

// EndLayer finishes the open layer.
func (b *Builder) EndLayer() {
	if b.current == nil {
		b.warn(errors.Wrap(ErrNoLayer, "end layer"))
		return
	}
	b.current.EndLayer()
}

// Layer returns the open layer, or nil.
func (b *Builder) Layer() *LayerBuilder {
	return b.current
}

// LayerCount returns the number of layers begun.
func (b *Builder) LayerCount() int {
	return len(b.layers)
}

func (b *Builder) open(op string) *LayerBuilder {
	if b.current == nil {
		b.warn(errors.Wrap(ErrNoLayer, op))
	}
	return b.current
}

// AddField adds a field to the open layer and returns its index, or -1 if
// no layer is open or the field cannot be added.
func (b *Builder) AddField(name string, t FieldType, min, max float64) int {
	if lb := b.open("add field"); lb != nil {
		return lb.AddField(name, t, min, max)
	}
	return -1
}

func (b *Builder) SetGeometryKind(k GeometryKind) {
	b.defaults.kind = k
	if b.current != nil {
		b.current.SetGeometryKind(k)
	}
}

func (b *Builder) SetCoordinateFormat(f CoordinateFormat) {
	b.defaults.format = f
	if b.current != nil {
		b.current.SetCoordinateFormat(f)
	}
}

func (b *Builder) EnableBoundingBox(enable bool) {
	b.defaults.bboxes = enable
	if b.current != nil {
		b.current.EnableBoundingBox(enable)
	}
}

func (b *Builder) SetExtent(extent Bounds) {
	b.defaults.extent = extent
	if b.current != nil {
		b.current.SetExtent(extent)
	}
}

func (b *Builder) EnableWideStringIndex(enable bool) {
	b.defaults.wide = enable
	if b.current != nil {
		b.current.EnableWideStringIndex(enable)
	}
}

func (b *Builder) BeginFeature() {
	if lb := b.open("begin feature"); lb != nil {
		lb.BeginFeature()
	}
}

func (b *Builder) EndFeature() {
	if lb := b.open("end feature"); lb != nil {
		lb.EndFeature()
	}
}

func (b *Builder) SetGeometry(data []byte, f GeometryFormat) {
	if lb := b.open("set geometry"); lb != nil {
		lb.SetGeometry(data, f)
	}
}

func (b *Builder) SetGeometryWKT(wkt string) {
	b.SetGeometry([]byte(wkt), FormatWKT)
}

func (b *Builder) SetGeometryWKB(data []byte) {
	b.SetGeometry(data, FormatWKB)
}

// SetRaw stores an opaque blob. Only Any layers accept it.
func (b *Builder) SetRaw(data []byte) {
	b.SetGeometry(data, FormatRaw)
}

func (b *Builder) SetOrbGeometry(g orb.Geometry) {
	if lb := b.open("set geometry"); lb != nil {
		lb.SetOrbGeometry(g)
	}
}

func (b *Builder) SetPoint(p Point) {
	if lb := b.open("set point"); lb != nil {
		lb.SetPoint(p)
	}
}

func (b *Builder) SetLineString(points []Point) {
	if lb := b.open("set line string"); lb != nil {
		lb.SetLineString(points)
	}
}

func (b *Builder) SetFloat(field int, v float64) {
	if lb := b.open("set field"); lb != nil {
		lb.SetFloat(field, v)
	}
}

func (b *Builder) SetInt(field int, v int64) {
	if lb := b.open("set field"); lb != nil {
		lb.SetInt(field, v)
	}
}

func (b *Builder) SetString(field int, s string) {
	if lb := b.open("set field"); lb != nil {
		lb.SetString(field, s)
	}
}

func (b *Builder) SetWString(field int, s string) {
	if lb := b.open("set field"); lb != nil {
		lb.SetWString(field, s)
	}
}

func (b *Builder) SetRef(field int, ref FeatureRef) {
	if lb := b.open("set field"); lb != nil {
		lb.SetRef(field, ref)
	}
}

// CreateFeatureRef returns a reference to the last feature committed in the
// most recently begun layer.
func (b *Builder) CreateFeatureRef() FeatureRef {
	if b.last == nil {
		b.warn(errors.Wrap(ErrNoLayer, "create feature ref"))
		return FeatureRef{}
	}
	return b.last.CreateFeatureRef()
}

// FeatureRefAt returns a reference to feature i of the most recently begun
// layer. i may name a feature that has not been written yet.
func (b *Builder) FeatureRefAt(i int) FeatureRef {
	if b.last == nil {
		b.warn(errors.Wrap(ErrNoLayer, "create feature ref"))
		return FeatureRef{}
	}
	return b.last.FeatureRefAt(i)
}

// FreeFeatureRef retires a reference. Writing it afterwards is reported.
func (b *Builder) FreeFeatureRef(ref FeatureRef) {
	if _, ok := b.refs[ref]; !ok {
		b.warn(errors.Wrapf(ErrSchemaMisuse, "free of unknown feature ref %s", ref))
		return
	}
	delete(b.refs, ref)
}

// Bytes finishes any open layer and returns the encoded database.
func (b *Builder) Bytes() []byte {
	if b.current != nil {
		b.warn(errors.Wrapf(ErrSchemaMisuse, "layer %q still open at save", b.current.name))
		b.current.EndLayer()
	}

	var w format.Writer
	w.Write(format.Magic[:])
	w.PutU32(uint32(len(b.layers)))
	for _, lb := range b.layers {
		w.Write(lb.encoded)
	}
	return w.Bytes()
}

// Save writes the database to w.
func (b *Builder) Save(w io.Writer) error {
	if _, err := io.Copy(w, bytes.NewReader(b.Bytes())); err != nil {
		return errors.Wrap(err, "write database")
	}
	return nil
}

// SaveFile writes the database to path, replacing any existing file.
func (b *Builder) SaveFile(path string) error {
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// truncateName cuts s to at most n bytes on a UTF-8 boundary.
func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
