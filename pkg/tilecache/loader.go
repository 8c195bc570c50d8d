package tilecache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// claim marks e as being loaded. It fails when e is already open, queued or
// in flight. Claims are dropped by load.
func (c *Cache) claim(e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimLocked(e)
}

func (c *Cache) claimLocked(e *entry) bool {
	if e.db.Load() != nil {
		return false
	}
	if _, ok := c.claimed[e]; ok {
		return false
	}
	c.claimed[e] = struct{}{}
	return true
}

// enqueue hands e to the background loader and reports whether it was
// newly queued.
func (c *Cache) enqueue(e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.claimLocked(e) {
		return false
	}
	c.pending = append(c.pending, e)
	return true
}

func (c *Cache) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Cache) nextPending() *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	e := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return e
}

// load opens a claimed tile and publishes it. A failed load releases the
// claim so the tile is tried again the next time it is selected.
func (c *Cache) load(e *entry) error {
	start := time.Now()
	db, err := c.opts.Loader(e.path)

	c.mu.Lock()
	delete(c.claimed, e)
	installed := err == nil && !c.closed.Load()
	if installed {
		e.db.Store(db)
		c.loaded = append(c.loaded, e)
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.failures.Inc()
		c.log.Warn("tile load failed",
			zap.Int("tile", e.box.ID),
			zap.String("path", e.path),
			zap.Error(err))
		return errors.Wrapf(err, "load tile %d", e.box.ID)
	}
	if !installed {
		db.Close()
		return ErrClosed
	}

	c.metrics.loads.Inc()
	c.log.Debug("tile loaded",
		zap.Int("tile", e.box.ID),
		zap.Int("level", e.box.Level),
		zap.String("path", e.path),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runLoader loads queued tiles one at a time until ctx is cancelled.
func (c *Cache) runLoader(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e := c.nextPending(); e != nil {
			_ = c.load(e)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
		case <-ticker.C:
		}
	}
}
