package tilecache

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/pkg/errors"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// DefaultLevels is the number of detail levels a Selector accepts when none
// is configured.
const DefaultLevels = 32

// TileBox describes one registered tile: its detail level, its timestamp
// and the area it covers. ID identifies the tile to the caller.
type TileBox struct {
	ID     int
	Level  int
	Time   float64
	Bounds fastdb.Bounds
}

// Area returns the area covered by the tile.
func (b TileBox) Area() float64 {
	return b.Bounds.Area()
}

// LoadOracle tells a Selector whether a tile's data is available. Tiles
// that are not loaded are still selected but do not hide the tiles beneath
// them.
type LoadOracle interface {
	IsTileLoaded(box TileBox) bool
}

// LoadOracleFunc adapts a function to the LoadOracle interface.
type LoadOracleFunc func(box TileBox) bool

// IsTileLoaded calls f(box).
func (f LoadOracleFunc) IsTileLoaded(box TileBox) bool {
	return f(box)
}

// rankedBox is an R-tree entry pointing back at a tile's position in its
// sorted level.
type rankedBox struct {
	box  TileBox
	rank int
}

func (r *rankedBox) Bounds() rtreego.Rect {
	return toRect(r.box.Bounds)
}

// Selector chooses, for a query rectangle, the minimal set of tiles that
// shows the most detailed data available.
//
// Tiles are grouped by level. Within a level, newer tiles come first and
// among equally recent tiles the smaller one wins. A query walks the levels
// from the requested one down to zero and accepts each overlapping tile that
// is not already hidden by loaded tiles accepted before it. It stops once
// loaded tiles cover the whole query.
//
// Selector is safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	levels  [][]TileBox
	indexes []*rtreego.Rtree
	extent  fastdb.Bounds

	// generation counts registrations; indexed is the generation the
	// per-level order and R-trees were last rebuilt at.
	generation uint64
	indexed    uint64
}

// NewSelector returns a selector accepting levels 0 through levels-1.
// A non-positive count selects DefaultLevels.
func NewSelector(levels int) *Selector {
	if levels <= 0 {
		levels = DefaultLevels
	}
	return &Selector{
		levels:  make([][]TileBox, levels),
		indexes: make([]*rtreego.Rtree, levels),
		extent:  fastdb.EmptyBounds(),
	}
}

// Levels returns the number of levels the selector accepts.
func (s *Selector) Levels() int {
	return len(s.levels)
}

// Register adds a tile. It fails with ErrLevelOutOfRange when the tile's
// level is outside the selector's range.
func (s *Selector) Register(box TileBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if box.Level < 0 || box.Level >= len(s.levels) {
		return errors.Wrapf(ErrLevelOutOfRange, "tile %d level %d", box.ID, box.Level)
	}
	s.levels[box.Level] = append(s.levels[box.Level], box)
	s.extent = s.extent.Union(box.Bounds)
	s.generation++
	return nil
}

// Count returns the number of registered tiles.
func (s *Selector) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.levels {
		n += len(l)
	}
	return n
}

// Extent returns the union of all registered tile bounds. It is empty when
// nothing is registered.
func (s *Selector) Extent() fastdb.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

// Take selects the tiles to display for query, considering levels maxLevel
// down to 0. A nil oracle treats every tile as loaded.
//
// The result is ordered for painting: coarse, background tiles first and the
// most detailed, most recent tiles last. An out of range maxLevel selects
// nothing.
func (s *Selector) Take(maxLevel int, query fastdb.Bounds, oracle LoadOracle) []TileBox {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxLevel < 0 || maxLevel >= len(s.levels) {
		return nil
	}
	s.reindex()

	covered := newCoverage()
	var taken []TileBox
	for level := maxLevel; level >= 0; level-- {
		for _, box := range s.candidates(level, query) {
			if covered.covers(box.Bounds) {
				continue
			}
			taken = append(taken, box)

			if oracle != nil && !oracle.IsTileLoaded(box) {
				continue
			}
			covered.add(box.Bounds.Expand(unionEpsilon))
			if covered.covers(query) {
				return reverse(taken)
			}
		}
	}
	return reverse(taken)
}

// reindex restores the per-level order and rebuilds the R-trees when tiles
// were registered since the last query. Must be called with s.mu locked.
func (s *Selector) reindex() {
	if s.indexed == s.generation {
		return
	}
	for level, boxes := range s.levels {
		sort.SliceStable(boxes, func(i, j int) bool {
			return ranksBefore(boxes[i], boxes[j])
		})

		tree := rtreego.NewTree(2, 25, 50)
		for rank, box := range boxes {
			tree.Insert(&rankedBox{box: box, rank: rank})
		}
		s.indexes[level] = tree
	}
	s.indexed = s.generation
}

// ranksBefore orders tiles within a level: newer first, then smaller.
func ranksBefore(a, b TileBox) bool {
	if a.Time != b.Time {
		return a.Time > b.Time
	}
	return a.Area() < b.Area()
}

// candidates returns the tiles of level whose interiors overlap query, in
// rank order. Must be called with s.mu locked.
func (s *Selector) candidates(level int, query fastdb.Bounds) []TileBox {
	tree := s.indexes[level]
	if tree == nil || tree.Size() == 0 {
		return nil
	}

	hits := tree.SearchIntersect(toRect(query.Expand(rtreeEpsilon)))
	ranked := make([]*rankedBox, 0, len(hits))
	for _, h := range hits {
		r := h.(*rankedBox)
		if r.box.Bounds.Overlaps(query) {
			ranked = append(ranked, r)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].rank < ranked[j].rank
	})

	boxes := make([]TileBox, len(ranked))
	for i, r := range ranked {
		boxes[i] = r.box
	}
	return boxes
}

func reverse(boxes []TileBox) []TileBox {
	for i, j := 0, len(boxes)-1; i < j; i, j = i+1, j-1 {
		boxes[i], boxes[j] = boxes[j], boxes[i]
	}
	return boxes
}
