// Package woffle subsets WOFF2 fonts down to the glyphs a document actually
// uses, running the CPU-heavy transform on background workers. Subsetting
// is an optimization that must never break correctness: on any worker
// failure the package permanently falls back to inline execution, and on a
// transform failure it returns the original font unchanged. The public
// operation therefore always yields a usable data-url.
package woffle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glyphlab/woffle/internal/pipeline"
	"github.com/glyphlab/woffle/internal/pool"
	"github.com/glyphlab/woffle/internal/worker"
)

// Routes a subset request can resolve through.
const (
	// RouteWorker: transformed on a background worker.
	RouteWorker = "worker"
	// RouteInline: transformed inline on the calling goroutine.
	RouteInline = "inline"
	// RouteOriginal: transform failed; the original bytes were returned.
	RouteOriginal = "original"
)

// Result describes how a subset request was served.
type Result struct {
	DataURL string
	Route   string
}

// Subsetter coordinates background subsetting with transparent degradation.
// The zero value is not usable; create one with New. A single Subsetter is
// intended to live for the whole process; see Default.
type Subsetter struct {
	codec    pipeline.Codec
	launcher pool.Launcher
	ttl      time.Duration
	logger   *slog.Logger

	// newPool memoizes pool construction so concurrent first callers
	// converge on a single instance.
	newPool func() *pool.Pool

	// disabled flips to true at most once per Subsetter lifetime and never
	// back: after any worker-path failure, every call runs inline.
	disabled atomic.Bool
}

// Option configures a Subsetter.
type Option func(*Subsetter)

// WithCodec replaces the default WOFF2/TrueType codec.
func WithCodec(c pipeline.Codec) Option {
	return func(s *Subsetter) { s.codec = c }
}

// WithLauncher replaces the default in-process worker launcher.
func WithLauncher(l pool.Launcher) Option {
	return func(s *Subsetter) { s.launcher = l }
}

// WithTTL overrides the worker time-to-live. Intended for tests.
func WithTTL(d time.Duration) Option {
	return func(s *Subsetter) { s.ttl = d }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Subsetter) { s.logger = l }
}

// New creates a Subsetter. By default it transforms with the WOFF2/TrueType
// codec and runs workers as in-process goroutines.
func New(opts ...Option) *Subsetter {
	s := &Subsetter{
		codec:  pipeline.DefaultCodec(),
		ttl:    pool.DefaultTTL,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.launcher == nil {
		s.launcher = worker.NewLauncher(s.codec, s.logger)
	}
	s.newPool = sync.OnceValue(func() *pool.Pool {
		return pool.New(pool.Options{
			Launcher: s.launcher,
			TTL:      s.ttl,
			Logger:   s.logger,
		})
	})
	return s
}

// Subset returns data subsetted to codePoints as a font/woff2 data-url.
// It never fails: any internal error degrades to a larger but correct
// result, worst case the original bytes re-encoded.
//
// A background worker caches the codepoint set it was first dispatched
// with and keeps it for its whole lifetime. Callers whose codepoint set
// changes between calls should ClearPool first, or use a separate
// Subsetter per set.
func (s *Subsetter) Subset(ctx context.Context, data []byte, codePoints []rune) string {
	return s.SubsetFont(ctx, data, codePoints).DataURL
}

// SubsetFont is Subset plus routing detail, for callers that record how the
// request was served.
func (s *Subsetter) SubsetFont(ctx context.Context, data []byte, codePoints []rune) Result {
	start := time.Now()

	if !s.disabled.Load() {
		out, err := s.newPool().Dispatch(ctx, pool.Task{CodePoints: codePoints, Data: data})
		if err == nil {
			subsetDuration.WithLabelValues(RouteWorker).Observe(time.Since(start).Seconds())
			return Result{DataURL: ToDataURL(out), Route: RouteWorker}
		}

		// One-way switch: background execution is never retried after a
		// failure of any kind. The current call is retried inline below.
		if s.disabled.CompareAndSwap(false, true) {
			fallbackEngaged.Set(1)
			s.logger.Warn("background subsetting disabled, falling back to inline", "error", err)
		}
	}

	out, err := pipeline.Transform(ctx, s.codec, data, codePoints)
	if err != nil {
		s.logger.Warn("inline subsetting failed, returning original font", "error", err)
		subsetDuration.WithLabelValues(RouteOriginal).Observe(time.Since(start).Seconds())
		return Result{DataURL: ToDataURL(data), Route: RouteOriginal}
	}
	subsetDuration.WithLabelValues(RouteInline).Observe(time.Since(start).Seconds())
	return Result{DataURL: ToDataURL(out), Route: RouteInline}
}

// FallbackEngaged reports whether background execution has been disabled
// for the remainder of this Subsetter's lifetime.
func (s *Subsetter) FallbackEngaged() bool {
	return s.disabled.Load()
}

// PoolStats returns the worker pool counters.
func (s *Subsetter) PoolStats() pool.Stats {
	return s.newPool().Stats()
}

// ClearPool destroys all idle workers. Active workers are untouched.
func (s *Subsetter) ClearPool() {
	s.newPool().Clear()
}
