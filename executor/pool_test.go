package executor_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/task"
)

func setupTestPool(t *testing.T, threads int, opts ...executor.Option) *executor.Pool {
	t.Helper()
	opts = append([]executor.Option{
		executor.WithThreads(threads),
		executor.WithLogger(slog.Default()),
	}, opts...)
	pool := executor.NewPool(opts...)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

// blockingTask runs until its context is cancelled or release is closed.
func blockingTask(name string, started chan<- struct{}, release <-chan struct{}) task.Task {
	return task.NewSimple(name, func(ctx context.Context) (any, error) {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return "released", nil
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPool_StartStop(t *testing.T) {
	pool := executor.NewPool(executor.WithThreads(2))

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}

	_, err := pool.Submit(context.Background(), blockingTask("late", nil, nil))
	if !errors.Is(err, distask.ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_SubmitReturnsResult(t *testing.T) {
	pool := setupTestPool(t, 1)

	f, err := pool.Submit(context.Background(), task.NewSimple("answer", func(context.Context) (any, error) {
		return 42, nil
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %v, want 42", got)
	}
}

func TestPool_OccupiedCarriesTask(t *testing.T) {
	pool := setupTestPool(t, 2, executor.WithThreadPrefix("node-a-worker"))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	tk := blockingTask("blocker", started, release)

	f, err := pool.Submit(context.Background(), tk)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	slots := pool.Occupied()
	if len(slots) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(slots))
	}
	if slots[0].Work.Task() != tk {
		t.Error("slot does not carry the submitted task")
	}
	if !strings.HasPrefix(slots[0].Thread, "node-a-worker-") {
		t.Errorf("thread = %q, want node-a-worker- prefix", slots[0].Thread)
	}

	close(release)
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitFor(t, func() bool { return len(pool.Occupied()) == 0 })
}

func TestPool_InterruptRunning(t *testing.T) {
	pool := setupTestPool(t, 1)

	started := make(chan struct{}, 1)
	f, err := pool.Submit(context.Background(), blockingTask("blocker", started, nil))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	slots := pool.Occupied()
	if len(slots) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(slots))
	}
	if !pool.Interrupt(slots[0].Work) {
		t.Fatal("expected interrupt to be accepted")
	}

	_, err = f.Wait(context.Background())
	if !errors.Is(err, distask.ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled, got %v", err)
	}
	if pool.Interrupt(slots[0].Work) {
		t.Error("interrupting a finished submission should be rejected")
	}
}

func TestPool_CancelQueued(t *testing.T) {
	pool := setupTestPool(t, 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	first, err := pool.Submit(context.Background(), blockingTask("first", started, release))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	var ran atomic.Bool
	second, err := pool.Submit(context.Background(), task.NewSimple("second", func(context.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !second.Cancel() {
		t.Fatal("expected queued cancel to be accepted")
	}
	close(release)

	if _, err := first.Wait(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := second.Wait(context.Background()); !errors.Is(err, distask.ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled, got %v", err)
	}
	if ran.Load() {
		t.Error("cancelled queued task should not run")
	}
}

func TestPool_GoIsPlainWork(t *testing.T) {
	pool := setupTestPool(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	f, err := pool.Go(context.Background(), "housekeeping", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Go: %v", err)
	}
	<-started

	slots := pool.Occupied()
	if len(slots) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(slots))
	}
	if slots[0].Work.Task() != nil {
		t.Error("plain work should carry no task")
	}
	if slots[0].Work.Name() != "housekeeping" {
		t.Errorf("Name = %q, want %q", slots[0].Work.Name(), "housekeeping")
	}

	close(release)
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPool_PanicBecomesError(t *testing.T) {
	pool := setupTestPool(t, 1)

	f, err := pool.Submit(context.Background(), task.NewSimple("panicky", func(context.Context) (any, error) {
		panic("boom")
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.Wait(context.Background()); err == nil {
		t.Fatal("expected error from panicking task")
	}
}

func TestPool_ZeroThreadsRejectsWork(t *testing.T) {
	pool := setupTestPool(t, 0)
	if _, err := pool.Submit(context.Background(), blockingTask("x", nil, nil)); !errors.Is(err, distask.ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_StopInterruptsOnDeadline(t *testing.T) {
	pool := executor.NewPool(executor.WithThreads(1))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	started := make(chan struct{}, 1)
	f, err := pool.Submit(context.Background(), blockingTask("stuck", started, nil))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-f.Done():
	default:
		t.Fatal("running task should be finished after Stop returns")
	}
}

// recordingExt records lifecycle hook names.
type recordingExt struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingExt) Name() string { return "recording" }

func (e *recordingExt) record(name string) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
}

func (e *recordingExt) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *recordingExt) OnTaskSubmitted(context.Context, task.Task) error {
	e.record("submitted")
	return nil
}

func (e *recordingExt) OnTaskStarted(context.Context, task.Task, string) error {
	e.record("started")
	return nil
}

func (e *recordingExt) OnTaskCompleted(context.Context, task.Task, time.Duration) error {
	e.record("completed")
	return nil
}

func (e *recordingExt) OnTaskFailed(context.Context, task.Task, error) error {
	e.record("failed")
	return nil
}

func (e *recordingExt) OnTaskCancelled(context.Context, task.Task) error {
	e.record("cancelled")
	return nil
}

func TestPool_EmitsLifecycleHooks(t *testing.T) {
	rec := &recordingExt{}
	registry := ext.NewRegistry(slog.Default())
	registry.Register(rec)
	pool := setupTestPool(t, 1, executor.WithExtensions(registry))

	ok, err := pool.Submit(context.Background(), task.NewSimple("ok", func(context.Context) (any, error) {
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, _ = ok.Wait(context.Background())

	bad, err := pool.Submit(context.Background(), task.NewSimple("bad", func(context.Context) (any, error) {
		return nil, errors.New("fail")
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, _ = bad.Wait(context.Background())

	waitFor(t, func() bool { return len(rec.snapshot()) >= 6 })
	calls := rec.snapshot()
	expected := []string{"submitted", "started", "completed", "submitted", "started", "failed"}
	for _, want := range expected {
		found := false
		for _, got := range calls {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing hook %q in %v", want, calls)
		}
	}
}

func TestPool_StopSettlesEveryAcceptedSubmission(t *testing.T) {
	for round := range 50 {
		pool := executor.NewPool(executor.WithThreads(2), executor.WithQueueSize(64))
		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		var (
			mu      sync.Mutex
			futures []*executor.Future
			wg      sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 16 {
					f, err := pool.Submit(context.Background(), task.NewSimple("quick", func(context.Context) (any, error) {
						return nil, nil
					}))
					if err != nil {
						return
					}
					mu.Lock()
					futures = append(futures, f)
					mu.Unlock()
				}
			}()
		}

		if err := pool.Stop(context.Background()); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		wg.Wait()

		for i, f := range futures {
			select {
			case <-f.Done():
			case <-time.After(time.Second):
				t.Fatalf("round %d: future %d never completed after Stop", round, i)
			}
		}
	}
}
