package tilecache

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// Preload opens every tile a fully loaded cache would select for query, so
// that later Take calls find them ready. Tiles are loaded concurrently by a
// bounded pool of workers.
//
// Failed tiles are skipped and their errors returned; a cancelled ctx stops
// scheduling further loads and adds ctx.Err() to the errors. Preload does not
// wait for an outstanding Result.
//
// Example:
//
//	errs := cache.Preload(ctx, 6, region, tilecache.PreloadOptions{
//	    Workers: 8,
//	    Progress: func(loaded, total int) {
//	        fmt.Printf("\rLoading: %d/%d", loaded, total)
//	    },
//	})
//	if len(errs) > 0 {
//	    fmt.Printf("\nSkipped %d tiles due to errors\n", len(errs))
//	}
func (c *Cache) Preload(ctx context.Context, maxLevel int, query fastdb.Bounds, opts PreloadOptions) []error {
	if c.closed.Load() {
		return []error{ErrClosed}
	}

	var todo []*entry
	for _, box := range c.selector.Take(maxLevel, query, nil) {
		if e := c.lookup(box.ID); e != nil && c.claim(e) {
			todo = append(todo, e)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu   sync.Mutex
		errs []error
		done int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, e := range todo {
		if ctx.Err() != nil {
			c.unclaim(todo[i:])
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			break
		}
		e := e
		g.Go(func() error {
			err := c.load(e)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				errs = append(errs, err)
			}
			if opts.Progress != nil {
				opts.Progress(done, len(todo))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (c *Cache) unclaim(entries []*entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		delete(c.claimed, e)
	}
}
