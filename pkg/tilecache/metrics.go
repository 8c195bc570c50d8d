package tilecache

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

type cacheMetrics struct {
	set       *metrics.Set
	loads     *metrics.Counter
	failures  *metrics.Counter
	evictions *metrics.Counter
	takes     *metrics.Counter
}

func newCacheMetrics(set *metrics.Set, name string, loaded func() float64) *cacheMetrics {
	label := func(metric string) string {
		return fmt.Sprintf(`%s{cache=%q}`, metric, name)
	}
	set.NewGauge(label("fastdb_tilecache_loaded_tiles"), loaded)
	return &cacheMetrics{
		set:       set,
		loads:     set.NewCounter(label("fastdb_tilecache_loads_total")),
		failures:  set.NewCounter(label("fastdb_tilecache_load_failures_total")),
		evictions: set.NewCounter(label("fastdb_tilecache_evictions_total")),
		takes:     set.NewCounter(label("fastdb_tilecache_takes_total")),
	}
}

// WriteMetrics writes the cache's metrics in Prometheus text format.
func (c *Cache) WriteMetrics(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}
