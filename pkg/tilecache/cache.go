package tilecache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// Cache manages a set of tile databases stored on disk, loading them on
// demand and evicting the least recently used ones.
//
// Every registered tile keeps its path and metadata for the life of the
// cache; only the opened database comes and goes. Take selects the tiles
// covering a query with a Selector, using the cache itself as the oracle so
// that unloaded tiles never hide coarser loaded ones.
//
// At most one Result is outstanding at a time. A second Take blocks until
// the first Result is released.
//
// Example:
//
//	cache := tilecache.New(tilecache.DefaultOptions())
//	defer cache.Close()
//	cache.RegisterTile("tiles/world.fdb", 0, 1, world)
//	cache.RegisterTile("tiles/alps.fdb", 4, 1, alps)
//
//	res, err := cache.Take(ctx, 4, view)
//	if err != nil || res == nil {
//	    return err
//	}
//	defer res.Release()
//	for _, t := range res.Tiles {
//	    if db := t.Database(); db != nil {
//	        draw(db)
//	    }
//	}
type Cache struct {
	opts     Options
	log      *zap.Logger
	selector *Selector
	metrics  *cacheMetrics

	// query holds one token while a Result is outstanding.
	query chan struct{}
	frame atomic.Uint64

	mu      sync.Mutex
	tiles   []*entry
	pending []*entry
	claimed map[*entry]struct{} // pending or being loaded
	loaded  []*entry

	wake   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool
}

type entry struct {
	box      TileBox
	path     string
	db       atomic.Pointer[fastdb.Database]
	lastUsed atomic.Uint64
}

// New creates a cache. In threaded mode it starts the background loader,
// which runs until Close.
func New(opts Options) *Cache {
	opts = opts.withDefaults()
	c := &Cache{
		opts:     opts,
		log:      opts.Logger.With(zap.String("cache", opts.Name)),
		selector: NewSelector(opts.Levels),
		query:    make(chan struct{}, 1),
		claimed:  make(map[*entry]struct{}),
		wake:     make(chan struct{}, 1),
	}
	c.metrics = newCacheMetrics(opts.Metrics, opts.Name, func() float64 {
		c.mu.Lock()
		defer c.mu.Unlock()
		return float64(len(c.loaded))
	})

	if opts.Threaded {
		ctx, cancel := context.WithCancel(context.Background())
		g, ctx := errgroup.WithContext(ctx)
		c.cancel = cancel
		c.group = g
		g.Go(func() error {
			return c.runLoader(ctx)
		})
	}
	return c
}

// RegisterTile adds the tile stored at path and returns its ID. The file is
// not opened until the tile is first selected.
func (c *Cache) RegisterTile(path string, level int, time float64, bounds fastdb.Bounds) (int, error) {
	if c.closed.Load() {
		return -1, ErrClosed
	}

	if level < 0 || level >= c.selector.Levels() {
		return -1, errors.Wrapf(ErrLevelOutOfRange, "tile %s level %d", path, level)
	}

	// The selector calls back into the cache under its own lock, so the
	// entry is published before the selector learns about it.
	c.mu.Lock()
	e := &entry{
		box:  TileBox{ID: len(c.tiles), Level: level, Time: time, Bounds: bounds},
		path: path,
	}
	c.tiles = append(c.tiles, e)
	c.mu.Unlock()

	if err := c.selector.Register(e.box); err != nil {
		return -1, err
	}
	return e.box.ID, nil
}

// RegisterMapTile registers a web mercator tile. Its zoom is used as the
// level and its longitude/latitude bounds as the coverage.
func (c *Cache) RegisterMapTile(path string, tile maptile.Tile, time float64) (int, error) {
	return c.RegisterTile(path, int(tile.Z), time, fastdb.BoundsFromOrb(tile.Bound()))
}

// Extent returns the union of all registered tile bounds.
func (c *Cache) Extent() fastdb.Bounds {
	return c.selector.Extent()
}

func (c *Cache) lookup(id int) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < 0 || id >= len(c.tiles) {
		return nil
	}
	return c.tiles[id]
}

// IsTileLoaded reports whether the tile's database is open.
func (c *Cache) IsTileLoaded(box TileBox) bool {
	e := c.lookup(box.ID)
	return e != nil && e.db.Load() != nil
}

// Take selects the tiles covering query at levels maxLevel and below and
// returns them in painting order. Missing tiles are loaded before Take
// returns in synchronous mode and queued for the background loader in
// threaded mode; queued tiles appear in the result with a nil Database.
//
// Take waits while another Result is outstanding; ctx cancels the wait.
// When nothing is selected it returns a nil Result and a nil error.
func (c *Cache) Take(ctx context.Context, maxLevel int, query fastdb.Bounds) (*Result, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	frame := c.frame.Add(1)
	c.metrics.takes.Inc()

	boxes := c.selector.Take(maxLevel, query, c)
	if len(boxes) == 0 {
		c.release()
		return nil, nil
	}

	res := &Result{cache: c, Tiles: make([]Tile, 0, len(boxes))}
	queued := false
	for _, box := range boxes {
		e := c.lookup(box.ID)
		e.lastUsed.Store(frame)
		if e.db.Load() == nil {
			if c.opts.Threaded {
				queued = c.enqueue(e) || queued
			} else if c.claim(e) {
				_ = c.load(e)
			}
		}
		res.Tiles = append(res.Tiles, Tile{
			TileBox: e.box,
			Path:    e.path,
			entry:   e,
		})
	}
	if queued {
		c.signal()
	}
	return res, nil
}

// FreeResult releases r. It is equivalent to r.Release and accepts nil.
func (c *Cache) FreeResult(r *Result) {
	if r != nil {
		r.Release()
	}
}

func (c *Cache) acquire(ctx context.Context) error {
	select {
	case c.query <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) release() {
	<-c.query
}

// Shrink closes loaded tiles, least recently used first, until at most
// maxTiles remain open, and returns how many were evicted. Evicted tiles
// stay registered and are loaded again when next selected.
//
// Shrink waits for any outstanding Result to be released; ctx cancels the
// wait.
func (c *Cache) Shrink(ctx context.Context, maxTiles int) (int, error) {
	if maxTiles < 0 {
		maxTiles = 0
	}
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.release()

	c.mu.Lock()
	if len(c.loaded) <= maxTiles {
		c.mu.Unlock()
		return 0, nil
	}
	sort.SliceStable(c.loaded, func(i, j int) bool {
		return c.loaded[i].lastUsed.Load() < c.loaded[j].lastUsed.Load()
	})
	n := len(c.loaded) - maxTiles
	evicted := append([]*entry(nil), c.loaded[:n]...)
	c.loaded = append(c.loaded[:0], c.loaded[n:]...)

	dbs := make([]*fastdb.Database, n)
	for i, e := range evicted {
		dbs[i] = e.db.Swap(nil)
	}
	c.mu.Unlock()

	for i, db := range dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			c.log.Warn("close evicted tile", zap.String("path", evicted[i].path), zap.Error(err))
		}
	}
	c.metrics.evictions.Add(n)
	c.log.Debug("shrink", zap.Int("evicted", n), zap.Int("remaining", maxTiles))
	return n, nil
}

// Close stops the background loader and closes every loaded database. No
// Result may be outstanding.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if c.group != nil {
		c.cancel()
		err = c.group.Wait()
	}

	c.mu.Lock()
	loaded := c.loaded
	c.loaded = nil
	c.pending = nil
	c.mu.Unlock()

	for _, e := range loaded {
		if db := e.db.Swap(nil); db != nil {
			db.Close()
		}
	}
	return err
}

// Stats describes the cache's current state.
type Stats struct {
	Registered int    // Number of registered tiles
	Loaded     int    // Number of open tile databases
	Pending    int    // Number of tiles waiting for the background loader
	Frame      uint64 // Number of Take calls so far
}

// Stats returns a snapshot of the cache's state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Registered: len(c.tiles),
		Loaded:     len(c.loaded),
		Pending:    len(c.pending),
		Frame:      c.frame.Load(),
	}
}

// Tile is one selected tile in a Result.
type Tile struct {
	TileBox
	Path string

	entry *entry
}

// Database returns the tile's open database, or nil if it is not loaded.
// The database stays valid until the Result is released.
func (t Tile) Database() *fastdb.Database {
	if t.entry == nil {
		return nil
	}
	return t.entry.db.Load()
}

// Loaded reports whether the tile's database is open.
func (t Tile) Loaded() bool {
	return t.Database() != nil
}

// Result is the outcome of Cache.Take. It must be released before the next
// Take can proceed.
type Result struct {
	Tiles []Tile

	cache *Cache
	once  sync.Once
}

// Release ends the result's lifetime. Calling it more than once is a no-op.
func (r *Result) Release() {
	r.once.Do(r.cache.release)
}
