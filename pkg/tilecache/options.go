package tilecache

import (
	"runtime"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/beetlebugorg/fastdb/pkg/fastdb"
)

// LoaderFunc opens the database stored at path.
type LoaderFunc func(path string) (*fastdb.Database, error)

// Options configures a Cache.
type Options struct {
	// Name labels the cache's metrics. Caches sharing a metrics set need
	// distinct names.
	Name string

	// Threaded loads tiles on a background goroutine. When false, Take loads
	// missing tiles before it returns.
	Threaded bool

	// Levels is the number of detail levels tiles may be registered at.
	Levels int

	// PollInterval bounds how long the background loader sleeps when it
	// misses a wakeup.
	PollInterval time.Duration

	// Loader opens tile files. Defaults to fastdb.Open.
	Loader LoaderFunc

	Logger *zap.Logger

	// Metrics receives the cache's counters. A private set is created when
	// nil.
	Metrics *metrics.Set
}

// DefaultOptions returns synchronous cache options.
func DefaultOptions() Options {
	return Options{
		Name:         "default",
		Levels:       DefaultLevels,
		PollInterval: 10 * time.Millisecond,
		Loader:       fastdb.Open,
		Logger:       zap.NewNop(),
	}
}

// LoadOptions reads cache options from v, starting from DefaultOptions.
// Recognized keys are name, threaded, levels and poll_interval.
func LoadOptions(v *viper.Viper) Options {
	opts := DefaultOptions()
	if v == nil {
		return opts
	}
	if v.IsSet("name") {
		opts.Name = v.GetString("name")
	}
	if v.IsSet("threaded") {
		opts.Threaded = v.GetBool("threaded")
	}
	if v.IsSet("levels") {
		opts.Levels = v.GetInt("levels")
	}
	if v.IsSet("poll_interval") {
		opts.PollInterval = v.GetDuration("poll_interval")
	}
	return opts
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Name == "" {
		o.Name = d.Name
	}
	if o.Levels <= 0 {
		o.Levels = d.Levels
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.Loader == nil {
		o.Loader = d.Loader
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewSet()
	}
	return o
}

// PreloadOptions controls Cache.Preload.
type PreloadOptions struct {
	// Workers is the number of concurrent loads. If 0, defaults to
	// runtime.NumCPU().
	Workers int

	// Progress, if set, is called after each tile is processed with the
	// number processed so far and the total.
	Progress func(loaded, total int)
}

// DefaultPreloadOptions returns preload options using one worker per CPU.
func DefaultPreloadOptions() PreloadOptions {
	return PreloadOptions{Workers: runtime.NumCPU()}
}
