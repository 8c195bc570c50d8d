package tilecache

import (
	"github.com/dhconnelly/rtreego"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// unionEpsilon grows every rectangle merged into a coverage so that tiles
// sharing an edge leave no sliver between them.
const unionEpsilon = 1e-7

// rtreeEpsilon is the minimum side length handed to the R-tree, which
// rejects zero-size rectangles.
const rtreeEpsilon = 1e-9

// toRect converts bounds to an R-tree rectangle, widening degenerate sides.
func toRect(b fastdb.Bounds) rtreego.Rect {
	point := rtreego.Point{b.MinX, b.MinY}
	lengths := []float64{
		max(b.Width(), rtreeEpsilon),
		max(b.Height(), rtreeEpsilon),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

type coverRect struct {
	bounds fastdb.Bounds
}

func (c *coverRect) Bounds() rtreego.Rect {
	return toRect(c.bounds)
}

// coverage is a union of axis-aligned rectangles. Containment is decided
// exactly by subtracting every overlapping member from the candidate.
type coverage struct {
	tree *rtreego.Rtree
	size int
}

func newCoverage() *coverage {
	return &coverage{tree: rtreego.NewTree(2, 25, 50)}
}

func (c *coverage) add(b fastdb.Bounds) {
	c.tree.Insert(&coverRect{bounds: b})
	c.size++
}

// covers reports whether b lies inside the union. Zero-area bounds are
// always covered.
func (c *coverage) covers(b fastdb.Bounds) bool {
	if !hasArea(b) {
		return true
	}
	if c.size == 0 {
		return false
	}

	pieces := []fastdb.Bounds{b}
	for _, s := range c.tree.SearchIntersect(toRect(b.Expand(rtreeEpsilon))) {
		cut := s.(*coverRect).bounds
		next := pieces[:0:0]
		for _, p := range pieces {
			next = subtract(next, p, cut)
		}
		pieces = next
		if len(pieces) == 0 {
			return true
		}
	}
	return false
}

func hasArea(b fastdb.Bounds) bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// subtract appends the parts of p outside cut to out. At most four
// rectangles result: full-height strips left and right of cut, then the
// strips below and above it between them.
func subtract(out []fastdb.Bounds, p, cut fastdb.Bounds) []fastdb.Bounds {
	if !p.Overlaps(cut) {
		return append(out, p)
	}
	if cut.MinX > p.MinX {
		out = append(out, fastdb.Bounds{MinX: p.MinX, MinY: p.MinY, MaxX: cut.MinX, MaxY: p.MaxY})
	}
	if cut.MaxX < p.MaxX {
		out = append(out, fastdb.Bounds{MinX: cut.MaxX, MinY: p.MinY, MaxX: p.MaxX, MaxY: p.MaxY})
	}
	minX, maxX := max(p.MinX, cut.MinX), min(p.MaxX, cut.MaxX)
	if cut.MinY > p.MinY {
		out = append(out, fastdb.Bounds{MinX: minX, MinY: p.MinY, MaxX: maxX, MaxY: cut.MinY})
	}
	if cut.MaxY < p.MaxY {
		out = append(out, fastdb.Bounds{MinX: minX, MinY: cut.MaxY, MaxX: maxX, MaxY: p.MaxY})
	}
	return out
}
