package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/middleware"
	"github.com/xraph/distask/task"
)

// Slot pairs a busy worker thread with the work item occupying it.
type Slot struct {
	Thread string
	Work   *Submission
}

// Pool manages a fixed set of worker goroutines fed by a bounded queue.
type Pool struct {
	threads    int
	queueSize  int
	prefix     string
	mws        []middleware.Middleware
	mw         middleware.Middleware
	extensions *ext.Registry
	logger     *slog.Logger

	queue  chan *Submission
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	state  poolState

	// senders counts Submit calls between the state check and the send.
	// Stop waits for them before draining the queue.
	senders sync.WaitGroup

	// slots[i] is the submission running on thread i, or nil.
	slots   []*Submission
	slotsMu sync.RWMutex
}

type poolState int

const (
	poolIdle poolState = iota
	poolRunning
	poolStopped
)

// NewPool creates a worker pool. Call Start before submitting work.
func NewPool(opts ...Option) *Pool {
	cfg := distask.DefaultConfig()
	p := &Pool{
		threads:   cfg.ExecutionThreads,
		queueSize: cfg.QueueSize,
		prefix:    "distask-worker",
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.extensions == nil {
		p.extensions = ext.NewRegistry(p.logger)
	}
	if p.threads < 0 {
		p.threads = 0
	}
	if p.queueSize < 0 {
		p.queueSize = 0
	}
	// Recover sits innermost so outer middleware observe panics as errors.
	p.mw = middleware.Chain(append(p.mws, middleware.Recover(p.logger))...)
	p.queue = make(chan *Submission, p.queueSize)
	p.slots = make([]*Submission, p.threads)
	return p
}

// Threads returns the configured number of worker threads.
func (p *Pool) Threads() int { return p.threads }

// Extensions returns the pool's lifecycle hook registry.
func (p *Pool) Extensions() *ext.Registry { return p.extensions }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case poolRunning:
		return nil
	case poolStopped:
		return distask.ErrPoolStopped
	}
	p.state = poolRunning

	p.logger.Info("executor pool starting",
		slog.Int("threads", p.threads),
		slog.Int("queue_size", p.queueSize),
	)

	for i := range p.threads {
		p.wg.Add(1)
		go p.workLoop(i, p.threadName(i))
	}
	return nil
}

// Stop stops accepting work and waits for running work to finish. Work
// still queued is failed with ErrPoolStopped. If ctx is done first,
// running work is interrupted.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != poolRunning {
		p.state = poolStopped
		p.mu.Unlock()
		return nil
	}
	p.state = poolStopped
	close(p.stopCh)
	p.mu.Unlock()

	p.logger.Info("executor pool stopping")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("executor pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("executor pool shutdown timed out, interrupting active work")
		for _, slot := range p.Occupied() {
			slot.Work.interrupt()
		}
		<-done
	}

	// A sender racing Stop may still land in the queue; wait for it so
	// drain sees the submission.
	p.senders.Wait()
	p.drain()
	return nil
}

// Submit queues t for execution. ctx bounds only the wait for queue space;
// the task runs under its own context, cancelled through Interrupt or
// Future.Cancel.
func (p *Pool) Submit(ctx context.Context, t task.Task) (*Future, error) {
	sub := p.newSubmission(t, t.Name(), t.Run)
	if err := p.enqueue(ctx, sub); err != nil {
		return nil, err
	}
	p.extensions.EmitTaskSubmitted(ctx, t)
	return sub.future, nil
}

// Go queues plain work that is not a task. It shares the worker threads
// but is invisible to the running task registry.
func (p *Pool) Go(ctx context.Context, name string, fn func(ctx context.Context) error) (*Future, error) {
	sub := p.newSubmission(nil, name, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	if err := p.enqueue(ctx, sub); err != nil {
		return nil, err
	}
	return sub.future, nil
}

// Occupied returns a snapshot of the threads currently running work.
func (p *Pool) Occupied() []Slot {
	p.slotsMu.RLock()
	defer p.slotsMu.RUnlock()

	slots := make([]Slot, 0, len(p.slots))
	for i, sub := range p.slots {
		if sub != nil {
			slots = append(slots, Slot{Thread: p.threadName(i), Work: sub})
		}
	}
	return slots
}

// Interrupt requests cooperative interruption of sub. It reports whether
// the request was accepted, which is false once sub has finished.
func (p *Pool) Interrupt(sub *Submission) bool {
	if sub == nil {
		return false
	}
	return sub.interrupt()
}

func (p *Pool) newSubmission(t task.Task, name string, run func(context.Context) (any, error)) *Submission {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Submission{
		task:     t,
		name:     name,
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
		future:   newFuture(),
		enqueued: time.Now(),
	}
	sub.future.sub = sub
	return sub
}

func (p *Pool) enqueue(ctx context.Context, sub *Submission) error {
	p.mu.Lock()
	if p.state != poolRunning {
		p.mu.Unlock()
		return distask.ErrPoolStopped
	}
	if p.threads == 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: pool has no worker threads", distask.ErrPoolStopped)
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	select {
	case p.queue <- sub:
		return nil
	case <-p.stopCh:
		return distask.ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) workLoop(index int, thread string) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case sub := <-p.queue:
			p.execute(index, thread, sub)
		}
	}
}

func (p *Pool) execute(index int, thread string, sub *Submission) {
	if !sub.claim(thread) {
		sub.future.complete(nil, distask.ErrTaskCancelled)
		if sub.task != nil {
			p.extensions.EmitTaskCancelled(context.Background(), sub.task)
		}
		return
	}

	p.setSlot(index, sub)
	defer p.setSlot(index, nil)

	ctx := sub.ctx
	if sub.task == nil {
		result, err := p.safeRun(ctx, sub)
		sub.finish()
		sub.future.complete(result, err)
		return
	}

	p.extensions.EmitTaskStarted(ctx, sub.task, thread)
	start := time.Now()

	var result any
	terminal := func(ctx context.Context) error {
		var err error
		result, err = sub.run(ctx)
		return err
	}
	err := p.mw(ctx, sub.task, terminal)
	elapsed := time.Since(start)

	interrupted := ctx.Err() != nil
	sub.finish()

	// Emit with a fresh context; the task's own context is cancelled by now.
	emitCtx := context.Background()
	switch {
	case interrupted && (err == nil || errors.Is(err, context.Canceled)):
		err = distask.ErrTaskCancelled
		p.extensions.EmitTaskCancelled(emitCtx, sub.task)
	case err != nil:
		p.extensions.EmitTaskFailed(emitCtx, sub.task, err)
	default:
		p.extensions.EmitTaskCompleted(emitCtx, sub.task, elapsed)
	}
	sub.future.complete(result, err)
}

// safeRun runs plain work, converting a panic into an error.
func (p *Pool) safeRun(ctx context.Context, sub *Submission) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("work panicked",
				slog.String("work", sub.name),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("panic in %s: %v", sub.name, r)
		}
	}()
	return sub.run(ctx)
}

func (p *Pool) setSlot(index int, sub *Submission) {
	p.slotsMu.Lock()
	p.slots[index] = sub
	p.slotsMu.Unlock()
}

// drain fails every submission still queued after the workers exited.
func (p *Pool) drain() {
	for {
		select {
		case sub := <-p.queue:
			sub.finish()
			sub.future.complete(nil, distask.ErrPoolStopped)
		default:
			return
		}
	}
}

func (p *Pool) threadName(i int) string {
	return p.prefix + "-" + strconv.Itoa(i)
}
