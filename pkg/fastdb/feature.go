package fastdb

import (
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// Feature is a stable handle on one feature of a layer. Obtain handles from
// Layer.Feature or Database.Feature; they are cached per index.
type Feature struct {
	layer *Layer
	index int
}

func (f *Feature) Layer() *Layer { return f.layer }

func (f *Feature) Index() int { return f.index }

// FeatureRef returns the reference naming this feature.
func (f *Feature) FeatureRef() FeatureRef {
	return FeatureRef{Layer: uint16(f.layer.index), Feature: uint32(f.index)}
}

func (f *Feature) Float(field int) (float64, bool) { return f.layer.Float(f.index, field) }

func (f *Feature) Int(field int) (int64, bool) { return f.layer.Int(f.index, field) }

func (f *Feature) String(field int) (string, bool) { return f.layer.String(f.index, field) }

func (f *Feature) WString(field int) (string, bool) { return f.layer.WString(f.index, field) }

func (f *Feature) Ref(field int) (FeatureRef, bool) { return f.layer.Ref(f.index, field) }

func (f *Feature) Geometry(v GeometryVisitor) bool { return f.layer.Geometry(f.index, v) }

func (f *Feature) GeometryChunk() ([]byte, bool) { return f.layer.GeometryChunk(f.index) }

func (f *Feature) OrbGeometry() (orb.Geometry, bool) { return f.layer.OrbGeometry(f.index) }

// Cursor walks a layer's features in order. Geometry is decoded by
// sequential traversal, so a full pass never builds the layer's offset
// table. A Cursor is not safe for concurrent use; create one per goroutine.
type Cursor struct {
	layer   *Layer
	index   int
	geomOff int // start of the current geometry, -1 once the stream is damaged
}

// Rewind positions the cursor before the first feature.
func (c *Cursor) Rewind() {
	c.index = -1
	c.geomOff = 0
}

// Next advances to the next feature and reports whether there is one.
func (c *Cursor) Next() bool {
	if c.index+1 >= c.layer.FeatureCount() {
		c.index = c.layer.FeatureCount()
		return false
	}
	if c.index >= 0 && c.geomOff >= 0 && c.layer.codec.kind != GeometryNone {
		r := format.NewReader(c.layer.geometry, c.geomOff)
		c.layer.codec.skip(r)
		if r.Err() != nil {
			c.geomOff = -1
		} else {
			c.geomOff = r.Offset()
		}
	}
	c.index++
	return true
}

// Index returns the current feature index, -1 before the first Next.
func (c *Cursor) Index() int { return c.index }

func (c *Cursor) valid() bool {
	return c.index >= 0 && c.index < c.layer.FeatureCount()
}

func (c *Cursor) Float(field int) (float64, bool) { return c.layer.Float(c.index, field) }

func (c *Cursor) Int(field int) (int64, bool) { return c.layer.Int(c.index, field) }

func (c *Cursor) String(field int) (string, bool) { return c.layer.String(c.index, field) }

func (c *Cursor) WString(field int) (string, bool) { return c.layer.WString(c.index, field) }

func (c *Cursor) Ref(field int) (FeatureRef, bool) { return c.layer.Ref(c.index, field) }

// Feature returns the cached handle of the current feature.
func (c *Cursor) Feature() (*Feature, bool) { return c.layer.Feature(c.index) }

// Geometry decodes the current feature's geometry into v.
func (c *Cursor) Geometry(v GeometryVisitor) bool {
	k := c.layer.codec.kind
	if !c.valid() || c.geomOff < 0 || k == GeometryAny || k == GeometryNone {
		return false
	}
	return c.layer.codec.visit(format.NewReader(c.layer.geometry, c.geomOff), v)
}

// GeometryChunk returns the current feature's encoded geometry.
func (c *Cursor) GeometryChunk() ([]byte, bool) {
	if !c.valid() || c.geomOff < 0 || c.layer.codec.kind == GeometryNone {
		return nil, false
	}
	b := c.layer.codec.chunk(c.layer.geometry, c.geomOff)
	return b, b != nil
}
