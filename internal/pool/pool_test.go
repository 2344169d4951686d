package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glyphlab/woffle/internal/pool"
	"github.com/glyphlab/woffle/internal/protocol"
	"github.com/glyphlab/woffle/internal/worker"
)

// echoCodec is a minimal transform: identity decompress/compress, subset
// tags the data. delay simulates a slow transform.
type echoCodec struct {
	delay     time.Duration
	subsetErr error
}

func (c *echoCodec) Decompress(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

func (c *echoCodec) Subset(_ context.Context, font []byte, _ []rune) ([]byte, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.subsetErr != nil {
		return nil, c.subsetErr
	}
	return append([]byte("subset:"), font...), nil
}

func (c *echoCodec) Compress(_ context.Context, font []byte) ([]byte, error) {
	return font, nil
}

// countingLauncher wraps an inner launcher and counts INIT frames across
// all transports it hands out.
type countingLauncher struct {
	inner pool.Launcher
	inits atomic.Int32
}

func (l *countingLauncher) Launch(ctx context.Context) (pool.Transport, error) {
	tr, err := l.inner.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return &countingTransport{Transport: tr, inits: &l.inits}, nil
}

type countingTransport struct {
	pool.Transport
	inits *atomic.Int32
}

func (t *countingTransport) Send(req *protocol.Request) error {
	if req.Command == protocol.CommandInit {
		t.inits.Add(1)
	}
	return t.Transport.Send(req)
}

// failingLauncher cannot create workers at all.
type failingLauncher struct{}

func (failingLauncher) Launch(context.Context) (pool.Transport, error) {
	return nil, errors.New("no workers here")
}

func newTestPool(t *testing.T, codec *echoCodec, ttl time.Duration) *pool.Pool {
	t.Helper()
	p := pool.New(pool.Options{
		Launcher: worker.NewLauncher(codec, nil),
		TTL:      ttl,
	})
	t.Cleanup(p.Clear)
	return p
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestDispatchRoundTrip(t *testing.T) {
	p := newTestPool(t, &echoCodec{}, 0)

	out, err := p.Dispatch(context.Background(), pool.Task{CodePoints: []rune{'A'}, Data: []byte("font")})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(out) != "subset:font" {
		t.Errorf("result = %q, want %q", out, "subset:font")
	}

	s := p.Stats()
	if s.Launched != 1 || s.Dispatches != 1 || s.Completions != 1 || s.Idle != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDispatchReusesIdleWorker(t *testing.T) {
	p := newTestPool(t, &echoCodec{}, 0)

	for i := range 5 {
		if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err != nil {
			t.Fatalf("Dispatch %d: %v", i, err)
		}
	}

	s := p.Stats()
	if s.Launched != 1 {
		t.Errorf("Launched = %d, want 1", s.Launched)
	}
	if s.Reused != 4 {
		t.Errorf("Reused = %d, want 4", s.Reused)
	}
	if s.Completions != 5 {
		t.Errorf("Completions = %d, want 5", s.Completions)
	}
	if s.Idle != 1 {
		t.Errorf("Idle = %d, want 1", s.Idle)
	}
}

func TestDispatchInitializesWorkerOnce(t *testing.T) {
	cl := &countingLauncher{inner: worker.NewLauncher(&echoCodec{}, nil)}
	p := pool.New(pool.Options{Launcher: cl})
	t.Cleanup(p.Clear)

	for i := range 3 {
		if _, err := p.Dispatch(context.Background(), pool.Task{CodePoints: []rune{'A'}, Data: []byte("x")}); err != nil {
			t.Fatalf("Dispatch %d: %v", i, err)
		}
	}
	if n := cl.inits.Load(); n != 1 {
		t.Errorf("worker received %d INITs, want 1", n)
	}
}

func TestDispatchConcurrent(t *testing.T) {
	p := newTestPool(t, &echoCodec{delay: 20 * time.Millisecond}, 0)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = p.Dispatch(context.Background(), pool.Task{Data: []byte("x")})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Dispatch %d: %v", i, err)
		}
	}

	s := p.Stats()
	if s.Completions != n {
		t.Errorf("Completions = %d, want %d", s.Completions, n)
	}
	if s.Launched < 1 || s.Launched > n {
		t.Errorf("Launched = %d, want 1..%d", s.Launched, n)
	}
	if s.Idle != s.Launched {
		t.Errorf("Idle = %d, want %d (all workers back in the pool)", s.Idle, s.Launched)
	}
}

func TestIdleWorkerEvictedAfterTTL(t *testing.T) {
	p := newTestPool(t, &echoCodec{}, 30*time.Millisecond)

	if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s := p.Stats(); s.Idle != 1 {
		t.Fatalf("Idle = %d, want 1", s.Idle)
	}

	waitFor(t, 2*time.Second, func() bool {
		s := p.Stats()
		return s.IdleEvictions == 1 && s.Idle == 0
	})

	// The next dispatch has to launch a fresh worker.
	if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err != nil {
		t.Fatalf("Dispatch after eviction: %v", err)
	}
	if s := p.Stats(); s.Launched != 2 {
		t.Errorf("Launched = %d, want 2", s.Launched)
	}
}

func TestActiveWorkerTimesOut(t *testing.T) {
	p := newTestPool(t, &echoCodec{delay: 2 * time.Second}, 40*time.Millisecond)

	start := time.Now()
	_, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")})
	if !errors.Is(err, pool.ErrTimeout) {
		t.Fatalf("Dispatch error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, TTL was 40ms", elapsed)
	}

	s := p.Stats()
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
	if s.Idle != 0 {
		t.Errorf("Idle = %d, want 0 (timed out worker must not return)", s.Idle)
	}
}

func TestFailedWorkerIsAbandoned(t *testing.T) {
	p := newTestPool(t, &echoCodec{subsetErr: errors.New("corrupt font")}, 0)

	if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err == nil {
		t.Fatal("Dispatch succeeded, want worker error")
	}

	s := p.Stats()
	if s.Failures != 1 {
		t.Errorf("Failures = %d, want 1", s.Failures)
	}
	if s.Idle != 0 {
		t.Errorf("Idle = %d, want 0 (failed worker must not return)", s.Idle)
	}

	// The pool recovers by launching a replacement on the next dispatch.
	if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err == nil {
		t.Fatal("second Dispatch succeeded, want worker error")
	}
	if s := p.Stats(); s.Launched != 2 {
		t.Errorf("Launched = %d, want 2", s.Launched)
	}
}

func TestDispatchHonorsContext(t *testing.T) {
	p := newTestPool(t, &echoCodec{delay: 2 * time.Second}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Dispatch(ctx, pool.Task{Data: []byte("x")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dispatch error = %v, want DeadlineExceeded", err)
	}
	if s := p.Stats(); s.Idle != 0 {
		t.Errorf("Idle = %d, want 0 (canceled worker must not return)", s.Idle)
	}
}

func TestDispatchLaunchFailure(t *testing.T) {
	p := pool.New(pool.Options{Launcher: failingLauncher{}})

	_, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")})
	if err == nil {
		t.Fatal("Dispatch succeeded with a failing launcher")
	}
	if s := p.Stats(); s.Launched != 0 || s.Dispatches != 0 {
		t.Errorf("stats = %+v, want no launches or dispatches", s)
	}
}

func TestClearDrainsIdleWorkers(t *testing.T) {
	p := newTestPool(t, &echoCodec{delay: 20 * time.Millisecond}, 0)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Dispatch(context.Background(), pool.Task{Data: []byte("x")})
		}()
	}
	wg.Wait()

	if s := p.Stats(); s.Idle == 0 {
		t.Fatal("no idle workers to clear")
	}
	p.Clear()
	if s := p.Stats(); s.Idle != 0 {
		t.Errorf("Idle = %d after Clear, want 0", s.Idle)
	}

	// The pool stays usable after a clear.
	if _, err := p.Dispatch(context.Background(), pool.Task{Data: []byte("x")}); err != nil {
		t.Fatalf("Dispatch after Clear: %v", err)
	}
}
