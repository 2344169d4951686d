// Package pool manages a set of reusable background workers with idle-time
// reclamation. Workers are acquired oldest-idle-first, created on demand
// with no upper bound, and carry a single timer that doubles as the idle
// eviction deadline and the active response timeout. A worker that fails
// in any way is abandoned rather than returned to circulation.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glyphlab/woffle/internal/protocol"
)

// DefaultTTL is the fixed worker time-to-live: how long an idle worker
// survives untouched, and how long an active worker may take to respond.
const DefaultTTL = 30 * time.Second

// ErrTimeout is returned when an active worker fails to respond within the
// TTL window. This is the pool's only cancellation mechanism.
var ErrTimeout = errors.New("worker response timed out")

// Task is one unit of work: the codepoint set a fresh worker is initialized
// with, and the font binary whose ownership transfers to the worker.
type Task struct {
	CodePoints []rune
	Data       []byte
}

// Transport is one worker's message channel. Send and Recv may be used
// concurrently with each other but not with themselves; Close tears the
// worker down.
type Transport interface {
	Send(*protocol.Request) error
	Recv() (*protocol.Response, error)
	Close() error
}

// Launcher creates fresh workers.
type Launcher interface {
	Launch(ctx context.Context) (Transport, error)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Launched      int `json:"launched"`       // workers created
	Reused        int `json:"reused"`         // acquisitions served from the idle set
	Dispatches    int `json:"dispatches"`     // tasks sent to a worker
	Completions   int `json:"completions"`    // tasks that returned a result
	Timeouts      int `json:"timeouts"`       // active workers reclaimed by the TTL timer
	Failures      int `json:"failures"`       // dispatches that failed for any other reason
	IdleEvictions int `json:"idle_evictions"` // idle workers reclaimed by the TTL timer
	Idle          int `json:"idle"`           // current idle set size
}

// Options configures a Pool. The zero value of TTL and Logger fall back to
// DefaultTTL and a discard logger; Launcher is required.
type Options struct {
	Launcher Launcher
	TTL      time.Duration
	Logger   *slog.Logger
}

// Pool is a set of idle workers plus the bookkeeping for active ones.
// All methods are safe for concurrent use.
type Pool struct {
	launcher Launcher
	ttl      time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	idle  []*handle // insertion-ordered: idle[0] is the oldest
	stats Stats
}

// New creates a Pool.
func New(opts Options) *Pool {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		launcher: opts.Launcher,
		ttl:      opts.TTL,
		logger:   opts.Logger,
	}
}

// Dispatch sends one task to a worker and waits for its result. A fresh
// worker is initialized with the task's codepoint set exactly once; reused
// workers keep the set they were created with, so callers that vary the
// set across dispatches must Clear the pool between them. Ownership of
// task.Data conceptually transfers to the worker on send.
//
// On success the worker returns to the idle set. On any failure the worker
// is abandoned and the error is returned; ErrTimeout marks TTL expiry.
func (p *Pool) Dispatch(ctx context.Context, task Task) ([]byte, error) {
	h, fresh, err := p.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire worker: %w", err)
	}

	if fresh {
		init := &protocol.Request{Command: protocol.CommandInit, CodePoints: task.CodePoints}
		if err := h.transport.Send(init); err != nil {
			p.abandon(h, &p.stats.Failures)
			return nil, fmt.Errorf("initialize worker %s: %w", h.id, err)
		}
	}

	p.mu.Lock()
	p.stats.Dispatches++
	p.armTimerLocked(h)
	p.mu.Unlock()

	req := &protocol.Request{Command: protocol.CommandSubset, Data: task.Data}
	if err := h.transport.Send(req); err != nil {
		p.abandon(h, &p.stats.Failures)
		return nil, fmt.Errorf("dispatch to worker %s: %w", h.id, err)
	}
	dispatchesTotal.WithLabelValues(dispatchSent).Inc()

	select {
	case rr := <-h.recv:
		return p.settle(h, rr)
	case <-ctx.Done():
		p.abandon(h, &p.stats.Failures)
		dispatchesTotal.WithLabelValues(dispatchFailed).Inc()
		return nil, ctx.Err()
	}
}

// settle classifies a worker's reply (or read error) for an active handle.
func (p *Pool) settle(h *handle, rr recvResult) ([]byte, error) {
	if rr.err != nil {
		if h.timedOut.Load() {
			p.mu.Lock()
			p.stats.Timeouts++
			p.mu.Unlock()
			dispatchesTotal.WithLabelValues(dispatchTimeout).Inc()
			return nil, fmt.Errorf("worker %s: %w", h.id, ErrTimeout)
		}
		p.abandon(h, &p.stats.Failures)
		dispatchesTotal.WithLabelValues(dispatchFailed).Inc()
		return nil, fmt.Errorf("worker %s: %w", h.id, rr.err)
	}

	if err := rr.resp.Err(); err != nil {
		p.abandon(h, &p.stats.Failures)
		dispatchesTotal.WithLabelValues(dispatchFailed).Inc()
		return nil, fmt.Errorf("worker %s: %w", h.id, err)
	}

	p.release(h)
	p.mu.Lock()
	p.stats.Completions++
	p.mu.Unlock()
	dispatchesTotal.WithLabelValues(dispatchOK).Inc()
	return rr.resp.Data, nil
}

// acquire pops the oldest idle worker, or launches a fresh one.
func (p *Pool) acquire(ctx context.Context) (h *handle, fresh bool, err error) {
	p.mu.Lock()
	if len(p.idle) > 0 {
		h = p.idle[0]
		p.idle = p.idle[1:]
		h.state = stateActive
		p.disarmTimerLocked(h)
		p.stats.Reused++
		p.mu.Unlock()
		return h, false, nil
	}
	p.mu.Unlock()

	transport, err := p.launcher.Launch(ctx)
	if err != nil {
		return nil, false, err
	}

	h = newHandle(transport)
	go h.readLoop()

	p.mu.Lock()
	p.stats.Launched++
	p.mu.Unlock()
	workersActive.Inc()
	workersLaunchedTotal.Inc()
	p.logger.Debug("worker launched", "worker_id", h.id)
	return h, true, nil
}

// release returns a worker to the idle set and rearms its timer.
func (p *Pool) release(h *handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.destroyed {
		return
	}
	h.state = stateIdle
	p.idle = append(p.idle, h)
	p.armTimerLocked(h)
}

// abandon destroys a worker that will not return to circulation,
// incrementing the given counter.
func (p *Pool) abandon(h *handle, counter *int) {
	p.mu.Lock()
	if h.destroyed {
		*counter++
		p.mu.Unlock()
		return
	}
	h.destroyed = true
	p.disarmTimerLocked(h)
	*counter++
	p.mu.Unlock()

	h.transport.Close()
	workersActive.Dec()
	workersEvictedTotal.WithLabelValues(evictError).Inc()
}

// Clear destroys every idle worker and cancels its timer, emptying the
// pool. Active workers are untouched.
func (p *Pool) Clear() {
	p.mu.Lock()
	drained := p.idle
	p.idle = nil
	for _, h := range drained {
		h.destroyed = true
		p.disarmTimerLocked(h)
	}
	p.mu.Unlock()

	for _, h := range drained {
		h.transport.Close()
		workersActive.Dec()
	}
	if len(drained) > 0 {
		p.logger.Info("pool cleared", "workers", len(drained))
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Idle = len(p.idle)
	return s
}

// armTimerLocked (re)starts h's TTL timer. Each arming invalidates earlier
// firings via the generation counter, so a stale timer can never reclaim a
// handle that has since been reused.
func (p *Pool) armTimerLocked(h *handle) {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	h.timer = time.AfterFunc(p.ttl, func() { p.expire(h, gen) })
}

func (p *Pool) disarmTimerLocked(h *handle) {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
}

// expire handles a TTL firing: an idle worker is evicted silently, an
// active one is terminated so its pending request fails with ErrTimeout.
func (p *Pool) expire(h *handle, gen uint64) {
	p.mu.Lock()
	if h.destroyed || h.gen != gen {
		p.mu.Unlock()
		return
	}
	h.destroyed = true

	switch h.state {
	case stateIdle:
		for i, cand := range p.idle {
			if cand == h {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
		p.stats.IdleEvictions++
		p.mu.Unlock()

		h.transport.Close()
		workersActive.Dec()
		workersEvictedTotal.WithLabelValues(evictIdle).Inc()
		p.logger.Info("idle worker evicted", "worker_id", h.id, "ttl", p.ttl)

	case stateActive:
		h.timedOut.Store(true)
		p.mu.Unlock()

		// Closing the transport fails the in-flight Recv, which Dispatch
		// then reports as ErrTimeout.
		h.transport.Close()
		workersActive.Dec()
		workersEvictedTotal.WithLabelValues(evictTimeout).Inc()
		p.logger.Warn("active worker timed out", "worker_id", h.id, "ttl", p.ttl)
	}
}
