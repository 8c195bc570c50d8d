package fastdb

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/beetlebugorg/fastdb/internal/format"
)

// GeometryVisitor receives a decoded geometry.
//
// For line and polygon layers Begin is called with the stored per-feature
// bounding box (nil when the layer has none). Returning false skips the
// parts and End. Point geometries call Begin(nil), deliver one PartPoint and
// call End. Any and None layers never call the visitor.
//
// The points slice passed to Part is owned by the visitor.
type GeometryVisitor interface {
	Begin(box *Bounds) bool
	Part(t PartType, points []Point)
	End()
}

// Part is one decoded geometry part.
type Part struct {
	Type   PartType
	Points []Point
}

// GeometryCollector is a GeometryVisitor that keeps everything it is given.
// It can be reused across features.
type GeometryCollector struct {
	Box   *Bounds
	Parts []Part
}

func (c *GeometryCollector) Begin(box *Bounds) bool {
	c.Box = nil
	if box != nil {
		b := *box
		c.Box = &b
	}
	c.Parts = c.Parts[:0]
	return true
}

func (c *GeometryCollector) Part(t PartType, points []Point) {
	c.Parts = append(c.Parts, Part{Type: t, Points: points})
}

func (c *GeometryCollector) End() {}

// Bounds returns the extent of the collected points.
func (c *GeometryCollector) Bounds() Bounds {
	b := EmptyBounds()
	for _, p := range c.Parts {
		for _, pt := range p.Points {
			b = b.Extend(pt)
		}
	}
	return b
}

// Geometry assembles the collected parts into an orb geometry: a Point, a
// LineString or MultiLineString, or a Polygon or MultiPolygon. Interior rings
// attach to the closest preceding exterior ring.
func (c *GeometryCollector) Geometry() orb.Geometry {
	var (
		lines orb.MultiLineString
		polys orb.MultiPolygon
	)
	for _, p := range c.Parts {
		switch p.Type {
		case PartPoint:
			if len(p.Points) > 0 {
				return orbPoint(p.Points[0])
			}
		case PartLineString:
			lines = append(lines, orb.LineString(orbPoints(p.Points)))
		case PartRingExternal:
			polys = append(polys, orb.Polygon{orb.Ring(orbPoints(p.Points))})
		case PartRingInternal:
			if len(polys) == 0 {
				polys = append(polys, orb.Polygon{})
			}
			last := len(polys) - 1
			polys[last] = append(polys[last], orb.Ring(orbPoints(p.Points)))
		}
	}

	switch {
	case len(polys) == 1:
		return polys[0]
	case len(polys) > 1:
		return polys
	case len(lines) == 1:
		return lines[0]
	case len(lines) > 1:
		return lines
	}
	return nil
}

func orbPoint(p Point) orb.Point { return orb.Point{p.X, p.Y} }

func orbPoints(pts []Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[i] = orbPoint(p)
	}
	return out
}

// decodeOrbBlob interprets an Any layer blob as WKB.
func decodeOrbBlob(blob []byte) (orb.Geometry, bool) {
	if len(blob) == 0 {
		return nil, false
	}
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil, false
	}
	return g, true
}

// geometryCodec encodes and decodes one layer's geometry stream.
type geometryCodec struct {
	kind   GeometryKind
	coords format.CoordCodec
	bboxes bool
}

// pendingGeometry is a feature geometry waiting to be encoded. kind is the
// layer kind it was stored under; a geometry whose kind no longer matches
// the layer is encoded as empty.
type pendingGeometry struct {
	set    bool
	kind   GeometryKind
	point  Point
	parts  []Part
	blob   []byte
	bounds Bounds
}

func (g *pendingGeometry) reset() {
	g.set = false
	g.point = Point{}
	g.parts = g.parts[:0]
	g.blob = nil
	g.bounds = EmptyBounds()
}

func (c geometryCodec) encode(w *format.Writer, g *pendingGeometry) {
	set := g.set && g.kind == c.kind
	switch c.kind {
	case GeometryPoint:
		if !set {
			c.coords.PutEmpty(w)
			return
		}
		c.coords.Put(w, g.point.X, g.point.Y)

	case GeometryLineString, GeometryPolygon:
		if c.bboxes {
			b := g.bounds
			if !set || b.IsEmpty() {
				b = boundsFromExtent(c.coords.Extent)
			}
			format.PutBBox(w, c.coords.Extent, b.extent())
		}
		if !set {
			w.PutU16(0)
			return
		}
		w.PutU16(uint16(len(g.parts)))
		for _, p := range g.parts {
			w.PutU8(uint8(p.Type))
			w.PutU16(uint16(len(p.Points)))
			for _, pt := range p.Points {
				c.coords.Put(w, pt.X, pt.Y)
			}
		}

	case GeometryAny:
		if !set {
			w.PutU32(0)
			return
		}
		w.PutU32(uint32(len(g.blob)))
		w.Write(g.blob)
	}
}

// skip advances r over one geometry.
func (c geometryCodec) skip(r *format.Reader) {
	switch c.kind {
	case GeometryPoint:
		r.Skip(c.coords.Size())
	case GeometryLineString, GeometryPolygon:
		if c.bboxes {
			r.Skip(format.BBoxSize)
		}
		parts := int(r.U16())
		for i := 0; i < parts && r.Err() == nil; i++ {
			r.Skip(1)
			r.Skip(int(r.U16()) * c.coords.Size())
		}
	case GeometryAny:
		r.Skip(int(r.U32()))
	}
}

// chunk returns the encoded bytes of the geometry starting at off in buf.
// For Any layers the size prefix is dropped.
func (c geometryCodec) chunk(buf []byte, off int) []byte {
	r := format.NewReader(buf, off)
	if c.kind == GeometryAny {
		return r.Bytes(int(r.U32()))
	}
	c.skip(r)
	if r.Err() != nil {
		return nil
	}
	return buf[off:r.Offset()]
}

// visit decodes the geometry at r and feeds it to v. It returns false if
// the stream is damaged.
func (c geometryCodec) visit(r *format.Reader, v GeometryVisitor) bool {
	switch c.kind {
	case GeometryPoint:
		x, y := c.coords.Get(r)
		if r.Err() != nil {
			return false
		}
		v.Begin(nil)
		v.Part(PartPoint, []Point{{X: x, Y: y}})
		v.End()

	case GeometryLineString, GeometryPolygon:
		var box *Bounds
		if c.bboxes {
			b := boundsFromExtent(format.GetBBox(r, c.coords.Extent))
			box = &b
		}
		parts := int(r.U16())
		if r.Err() != nil {
			return false
		}
		if !v.Begin(box) {
			return true
		}
		for i := 0; i < parts; i++ {
			t := PartType(r.U8())
			n := int(r.U16())
			if r.Err() != nil {
				break
			}
			pts := make([]Point, 0, n)
			for j := 0; j < n; j++ {
				x, y := c.coords.Get(r)
				pts = append(pts, Point{X: x, Y: y})
			}
			if r.Err() != nil {
				break
			}
			v.Part(t, pts)
		}
		v.End()
	}
	return r.Err() == nil
}
