package tilecache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// tileBytes builds a one-feature point database whose only layer is named
// after the tile.
func tileBytes(t *testing.T, name string) []byte {
	t.Helper()
	b := fastdb.NewBuilder(fastdb.DefaultBuilderOptions())
	b.BeginLayer(name)
	b.BeginFeature()
	b.SetPoint(fastdb.Point{X: 1, Y: 2})
	b.EndFeature()
	b.EndLayer()
	require.Empty(t, b.Warnings())
	return b.Bytes()
}

// memStore serves tile databases from memory and counts loads and closes.
type memStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	fail   map[string]int
	loads  map[string]int
	closed int
	gate   chan struct{}
}

func newMemStore(t *testing.T, names ...string) *memStore {
	s := &memStore{
		files: make(map[string][]byte),
		fail:  make(map[string]int),
		loads: make(map[string]int),
	}
	for _, n := range names {
		s.files[n] = tileBytes(t, n)
	}
	return s
}

func (s *memStore) load(path string) (*fastdb.Database, error) {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[path]++
	if s.fail[path] > 0 {
		s.fail[path]--
		return nil, errors.Errorf("%s: unavailable", path)
	}
	buf, ok := s.files[path]
	if !ok {
		return nil, errors.Errorf("%s: no such tile", path)
	}
	return fastdb.Load(buf, func([]byte) {
		s.mu.Lock()
		s.closed++
		s.mu.Unlock()
	})
}

func (s *memStore) loadCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[path]
}

func (s *memStore) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestCache(t *testing.T, store *memStore, threaded bool) *Cache {
	t.Helper()
	opts := DefaultOptions()
	opts.Name = "test"
	opts.Threaded = threaded
	opts.PollInterval = time.Millisecond
	opts.Loader = store.load
	c := New(opts)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func mustRegister(t *testing.T, c *Cache, path string, level int, tm float64, b fastdb.Bounds) int {
	t.Helper()
	id, err := c.RegisterTile(path, level, tm, b)
	require.NoError(t, err)
	return id
}

func tilePaths(res *Result) []string {
	var out []string
	for _, t := range res.Tiles {
		out = append(out, t.Path)
	}
	return out
}

func TestCacheTakeLoadsSynchronously(t *testing.T) {
	store := newMemStore(t, "world", "detail")
	c := newTestCache(t, store, false)
	mustRegister(t, c, "world", 0, 1, rect(-180, -90, 180, 90))
	mustRegister(t, c, "detail", 3, 1, rect(0, 0, 10, 10))

	ctx := context.Background()
	res, err := c.Take(ctx, 3, rect(-5, -5, 5, 5))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"world", "detail"}, tilePaths(res))
	for _, tile := range res.Tiles {
		require.True(t, tile.Loaded())
		assert.NotNil(t, tile.Database().LayerByName(tile.Path))
	}
	assert.Equal(t, 3, res.Tiles[1].Level)
	assert.Equal(t, 100.0, res.Tiles[1].Area())
	res.Release()
	res.Release()

	res, err = c.Take(ctx, 3, rect(1, 1, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"detail"}, tilePaths(res))
	c.FreeResult(res)
	c.FreeResult(nil)

	assert.Equal(t, 1, store.loadCount("world"))
	assert.Equal(t, 1, store.loadCount("detail"))
	assert.Equal(t, Stats{Registered: 2, Loaded: 2, Frame: 2}, c.Stats())
}

func TestCacheSingleOutstandingResult(t *testing.T) {
	store := newMemStore(t, "a")
	c := newTestCache(t, store, false)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 1, 1))

	res, err := c.Take(context.Background(), 0, rect(0, 0, 1, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Take(ctx, 0, rect(0, 0, 1, 1))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = c.Shrink(ctx, 0)
	assert.Error(t, err)

	done := make(chan *Result)
	go func() {
		r, _ := c.Take(context.Background(), 0, rect(0, 0, 1, 1))
		done <- r
	}()
	res.Release()

	select {
	case r := <-done:
		require.NotNil(t, r)
		r.Release()
	case <-time.After(time.Second):
		t.Fatal("second Take did not proceed after release")
	}
}

func TestCacheEmptySelection(t *testing.T) {
	store := newMemStore(t, "a")
	c := newTestCache(t, store, false)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 1, 1))

	res, err := c.Take(context.Background(), 0, rect(5, 5, 6, 6))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = c.Take(context.Background(), 0, rect(0, 0, 1, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	res.Release()
}

func TestCacheShrinkEvictsLeastRecentlyUsed(t *testing.T) {
	names := []string{"t0", "t1", "t2", "t3", "t4"}
	store := newMemStore(t, names...)
	c := newTestCache(t, store, false)
	ctx := context.Background()

	for i, n := range names {
		x := float64(i * 10)
		mustRegister(t, c, n, 0, 0, rect(x, 0, x+10, 10))
	}
	// Touch t3 again so t4 is no longer the most recent.
	order := []int{0, 1, 2, 4, 3}
	for _, i := range order {
		x := float64(i * 10)
		res, err := c.Take(ctx, 0, rect(x+1, 1, x+9, 9))
		require.NoError(t, err)
		res.Release()
	}
	require.Equal(t, 5, c.Stats().Loaded)

	n, err := c.Shrink(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, c.Stats().Loaded)
	assert.Equal(t, 3, store.closeCount())

	for i := range names {
		want := i == 3 || i == 4
		assert.Equal(t, want, c.IsTileLoaded(TileBox{ID: i}), "tile %d", i)
	}

	n, err = c.Shrink(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Evicted tiles are reloaded on demand.
	res, err := c.Take(ctx, 0, rect(1, 1, 9, 9))
	require.NoError(t, err)
	require.True(t, res.Tiles[0].Loaded())
	res.Release()
	assert.Equal(t, 2, store.loadCount("t0"))
}

func TestCacheFailedLoadIsRetried(t *testing.T) {
	store := newMemStore(t, "coarse", "fine")
	store.fail["fine"] = 1
	c := newTestCache(t, store, false)
	mustRegister(t, c, "coarse", 0, 0, rect(0, 0, 100, 100))
	mustRegister(t, c, "fine", 1, 0, rect(0, 0, 10, 10))
	ctx := context.Background()

	res, err := c.Take(ctx, 1, rect(1, 1, 9, 9))
	require.NoError(t, err)
	require.Equal(t, []string{"coarse", "fine"}, tilePaths(res))
	assert.True(t, res.Tiles[0].Loaded())
	assert.False(t, res.Tiles[1].Loaded())
	assert.Nil(t, res.Tiles[1].Database())
	res.Release()

	res, err = c.Take(ctx, 1, rect(1, 1, 9, 9))
	require.NoError(t, err)
	assert.True(t, res.Tiles[len(res.Tiles)-1].Loaded())
	res.Release()

	res, err = c.Take(ctx, 1, rect(1, 1, 9, 9))
	require.NoError(t, err)
	assert.Equal(t, []string{"fine"}, tilePaths(res))
	res.Release()
	assert.Equal(t, 2, store.loadCount("fine"))
}

func TestCacheThreadedLoadsInBackground(t *testing.T) {
	store := newMemStore(t, "a", "b")
	c := newTestCache(t, store, true)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 10, 10))
	mustRegister(t, c, "b", 0, 0, rect(10, 0, 20, 10))

	res, err := c.Take(context.Background(), 0, rect(0, 0, 20, 10))
	require.NoError(t, err)
	require.Len(t, res.Tiles, 2)
	res.Release()

	require.Eventually(t, func() bool {
		return c.Stats().Loaded == 2
	}, 2*time.Second, time.Millisecond)
	assert.Zero(t, c.Stats().Pending)
}

func TestCacheThreadedDeduplicatesQueue(t *testing.T) {
	store := newMemStore(t, "a")
	store.gate = make(chan struct{})
	c := newTestCache(t, store, true)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 10, 10))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.Take(ctx, 0, rect(1, 1, 2, 2))
		require.NoError(t, err)
		assert.False(t, res.Tiles[0].Loaded())
		res.Release()
	}
	close(store.gate)

	require.Eventually(t, func() bool {
		return c.IsTileLoaded(TileBox{ID: 0})
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, store.loadCount("a"))
}

func TestCacheRegisterErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.Levels = 4
	c := New(opts)

	_, err := c.RegisterTile("x", 4, 0, rect(0, 0, 1, 1))
	assert.True(t, errors.Is(err, ErrLevelOutOfRange))
	assert.Zero(t, c.Stats().Registered)

	id, err := c.RegisterMapTile("z2", maptile.New(1, 1, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, c.Stats().Registered)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.RegisterTile("y", 0, 0, rect(0, 0, 1, 1))
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = c.Take(context.Background(), 0, rect(0, 0, 1, 1))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestCacheRegisterMapTile(t *testing.T) {
	c := New(DefaultOptions())
	defer c.Close()

	tile := maptile.New(1, 1, 2)
	id, err := c.RegisterMapTile("z2.fdb", tile, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	assert.Equal(t, fastdb.BoundsFromOrb(tile.Bound()), c.Extent())

	got := c.Extent()
	assert.InDelta(t, -90, got.MinX, 1e-9)
	assert.InDelta(t, 0, got.MaxX, 1e-9)
	assert.InDelta(t, 0, got.MinY, 1e-9)
	assert.Greater(t, got.MaxY, 60.0)
}

func TestCacheCloseReleasesDatabases(t *testing.T) {
	store := newMemStore(t, "a", "b")
	opts := DefaultOptions()
	opts.Loader = store.load
	c := New(opts)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 10, 10))
	mustRegister(t, c, "b", 0, 0, rect(10, 0, 20, 10))

	res, err := c.Take(context.Background(), 0, rect(0, 0, 20, 10))
	require.NoError(t, err)
	res.Release()

	require.NoError(t, c.Close())
	assert.Equal(t, 2, store.closeCount())
	assert.Zero(t, c.Stats().Loaded)
}

func TestCachePreload(t *testing.T) {
	names := []string{"p0", "p1", "p2", "p3"}
	store := newMemStore(t, names...)
	c := newTestCache(t, store, false)
	for i, n := range names {
		x := float64(i * 10)
		mustRegister(t, c, n, 1, 0, rect(x, 0, x+10, 10))
	}
	mustRegister(t, c, "missing", 1, 0, rect(40, 0, 50, 10))

	var mu sync.Mutex
	var progress []int
	errs := c.Preload(context.Background(), 1, rect(0, 0, 50, 10), PreloadOptions{
		Workers: 2,
		Progress: func(loaded, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 5, total)
			progress = append(progress, loaded)
		},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing")
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	assert.Equal(t, 4, c.Stats().Loaded)

	// Already loaded tiles are not loaded again.
	assert.Empty(t, c.Preload(context.Background(), 1, rect(0, 0, 40, 10), DefaultPreloadOptions()))
	for _, n := range names {
		assert.Equal(t, 1, store.loadCount(n))
	}
}

func TestCachePreloadCancelled(t *testing.T) {
	store := newMemStore(t, "a")
	c := newTestCache(t, store, false)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 10, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs := c.Preload(ctx, 0, rect(0, 0, 10, 10), PreloadOptions{Workers: 1})
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], context.Canceled))
	assert.False(t, c.IsTileLoaded(TileBox{ID: 0}))

	assert.Empty(t, c.Preload(context.Background(), 0, rect(0, 0, 10, 10), PreloadOptions{Workers: 1}))
	assert.True(t, c.IsTileLoaded(TileBox{ID: 0}))
}

func TestCacheManifest(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"world", "z3"} {
		b := fastdb.NewBuilder(fastdb.DefaultBuilderOptions())
		b.BeginLayer(n)
		b.EndLayer()
		require.NoError(t, b.SaveFile(filepath.Join(dir, n+".fdb")))
	}
	manifest := `
tiles:
  - path: world.fdb
    level: 0
    time: 1
    bounds: [-180, -90, 180, 90]
  - path: z3.fdb
    xyz: [3, 4, 3]
    time: 2
`
	path := filepath.Join(dir, "tiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	c := New(DefaultOptions())
	defer c.Close()
	n, err := c.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := c.Take(context.Background(), 3, rect(-1, -1, 1, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	defer res.Release()
	require.Len(t, res.Tiles, 2)
	assert.Equal(t, 3, res.Tiles[1].Level)
	assert.NotNil(t, res.Tiles[0].Database().LayerByName("world"))
	assert.NotNil(t, res.Tiles[1].Database().LayerByName("z3"))
}

func TestCacheManifestErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		n    int
	}{
		{"missing file", filepath.Join(dir, "none.yaml"), 0},
		{"no path", write("nopath.yaml", "tiles:\n  - level: 0\n    bounds: [0, 0, 1, 1]\n"), 0},
		{"no placement", write("noplace.yaml", "tiles:\n  - path: a.fdb\n"), 0},
		{"bad level", write("level.yaml", "tiles:\n  - path: a.fdb\n    bounds: [0, 0, 1, 1]\n  - path: b.fdb\n    level: 99\n    bounds: [0, 0, 1, 1]\n"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultOptions())
			defer c.Close()
			n, err := c.LoadManifest(tt.path)
			assert.Error(t, err)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestCacheMetrics(t *testing.T) {
	store := newMemStore(t, "a")
	store.fail["a"] = 1
	c := newTestCache(t, store, false)
	mustRegister(t, c, "a", 0, 0, rect(0, 0, 10, 10))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.Take(ctx, 0, rect(1, 1, 2, 2))
		require.NoError(t, err)
		res.Release()
	}
	_, err := c.Shrink(ctx, 0)
	require.NoError(t, err)

	var w bytes.Buffer
	c.WriteMetrics(&w)
	out := w.String()
	assert.Contains(t, out, `fastdb_tilecache_loads_total{cache="test"} 1`)
	assert.Contains(t, out, `fastdb_tilecache_load_failures_total{cache="test"} 1`)
	assert.Contains(t, out, `fastdb_tilecache_evictions_total{cache="test"} 1`)
	assert.Contains(t, out, `fastdb_tilecache_takes_total{cache="test"} 2`)
	assert.Contains(t, out, `fastdb_tilecache_loaded_tiles{cache="test"} 0`)
}

func TestCacheLogsFailedLoads(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opts := DefaultOptions()
	opts.Logger = zap.New(core)
	opts.Loader = newMemStore(t).load
	c := New(opts)
	defer c.Close()
	mustRegister(t, c, "gone", 0, 0, rect(0, 0, 1, 1))

	res, err := c.Take(context.Background(), 0, rect(0, 0, 1, 1))
	require.NoError(t, err)
	res.Release()

	entries := logs.FilterMessage("tile load failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gone", entries[0].ContextMap()["path"])
	assert.Equal(t, "default", entries[0].ContextMap()["cache"])
}

func TestLoadOptions(t *testing.T) {
	assert.Equal(t, DefaultOptions().Levels, LoadOptions(nil).Levels)

	v := viper.New()
	v.Set("name", "charts")
	v.Set("threaded", true)
	v.Set("levels", 8)
	v.Set("poll_interval", "5ms")

	opts := LoadOptions(v)
	assert.Equal(t, "charts", opts.Name)
	assert.True(t, opts.Threaded)
	assert.Equal(t, 8, opts.Levels)
	assert.Equal(t, 5*time.Millisecond, opts.PollInterval)
	assert.NotNil(t, opts.Loader)
}
