package kvengine

import (
	"log"
	"time"
)

// options holds the engine's construction-time configuration. There is no
// config file and no environment variable surface (per spec.md §6) -- the
// functional-options pattern below, adapted from the teacher's own
// options.go, is the entire configuration story.
type options struct {
	threadPoolSize   int
	cacheCapacity    int
	cacheNumSegments int
	cleanStart       bool
	compactInterval  time.Duration
	logger           *log.Logger
}

func defaultOptions() options {
	return options{
		threadPoolSize:   4,
		cacheCapacity:    100,
		cacheNumSegments: 8,
		cleanStart:       false,
		compactInterval:  0, // resolved to logstore.DefaultCompactInterval if left zero
		logger:           log.Default(),
	}
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithThreadPoolSize sets the number of executor worker goroutines.
func WithThreadPoolSize(n int) Option {
	return func(o *options) { o.threadPoolSize = n }
}

// WithCacheCapacity sets the total cache capacity, in entries, shared
// across all shards.
func WithCacheCapacity(n int) Option {
	return func(o *options) { o.cacheCapacity = n }
}

// WithCacheSegments sets the number of independent LRU shards the cache is
// split into.
func WithCacheSegments(n int) Option {
	return func(o *options) { o.cacheNumSegments = n }
}

// WithCleanStart removes any pre-existing data and index-snapshot files
// before opening, instead of rebuilding the index from them.
func WithCleanStart() Option {
	return func(o *options) { o.cleanStart = true }
}

// WithCompactInterval overrides the background compactor's sleep interval
// (default ~2 hours, matching the original implementation's compile-time
// constant).
func WithCompactInterval(d time.Duration) Option {
	return func(o *options) { o.compactInterval = d }
}

// WithLogger overrides the logger used for diagnostics that the boolean/
// empty-sentinel public API has no other way to surface (failed writes,
// failed reads, failed background compactions).
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}
