package running_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/id"
	"github.com/xraph/distask/running"
	"github.com/xraph/distask/task"
)

func setupPool(t *testing.T, threads int) *executor.Pool {
	t.Helper()
	pool := executor.NewPool(executor.WithThreads(threads))
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

// untilCancelled blocks until the task is interrupted and signals start.
func untilCancelled(started chan<- struct{}) task.Func {
	return func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func submit(t *testing.T, pool *executor.Pool, tk task.Task, started <-chan struct{}) *executor.Future {
	t.Helper()
	f, err := pool.Submit(context.Background(), tk)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	return f
}

// decorated wraps a task under a different name.
type decorated struct {
	inner task.Task
}

func (d *decorated) ID() id.TaskID { return d.inner.ID() }
func (d *decorated) Name() string { return "decorator" }
func (d *decorated) Kind() task.Kind { return task.KindSimple }
func (d *decorated) Run(ctx context.Context) (any, error) { return d.inner.Run(ctx) }
func (d *decorated) Unwrap() task.Task { return d.inner }
func (d *decorated) Origin() string { return "node-z" }

func TestRegistry_ListsRunningTasks(t *testing.T) {
	pool := setupPool(t, 3)
	reg := running.New("node-a", pool)

	s1, s2 := make(chan struct{}), make(chan struct{})
	t1 := task.NewSimple("alpha", untilCancelled(s1))
	t2 := task.NewSimple("beta", untilCancelled(s2))
	submit(t, pool, t1, s1)
	submit(t, pool, t2, s2)

	refs := reg.List()
	if len(refs) != 2 {
		t.Fatalf("expected 2 running tasks, got %d", len(refs))
	}

	byID := map[string]running.Ref{}
	for _, ref := range refs {
		byID[ref.TaskID] = ref
	}
	ref, ok := byID[t1.ID().String()]
	if !ok {
		t.Fatalf("task %s not listed", t1.ID())
	}
	if ref.Name != "alpha" || ref.Member != "node-a" || ref.Kind != task.KindSimple {
		t.Errorf("unexpected ref %+v", ref)
	}
	if ref.Thread == "" {
		t.Error("expected thread name")
	}
}

func TestRegistry_SkipsPlainWork(t *testing.T) {
	pool := setupPool(t, 2)
	reg := running.New("node-a", pool)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	if _, err := pool.Go(context.Background(), "housekeeping", func(context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	<-started

	if len(pool.Occupied()) != 1 {
		t.Fatal("expected the plain work to occupy a thread")
	}
	if refs := reg.List(); len(refs) != 0 {
		t.Fatalf("expected no running tasks, got %v", refs)
	}
}

func TestRegistry_UnwrapsOneLayer(t *testing.T) {
	pool := setupPool(t, 1)
	reg := running.New("node-a", pool)

	started := make(chan struct{})
	inner := task.NewSimple("inner", untilCancelled(started))
	submit(t, pool, &decorated{inner: inner}, started)

	refs := reg.List()
	if len(refs) != 1 {
		t.Fatalf("expected 1 running task, got %d", len(refs))
	}
	if refs[0].Name != "inner" {
		t.Errorf("Name = %q, want %q", refs[0].Name, "inner")
	}
	if refs[0].Origin != "node-z" {
		t.Errorf("Origin = %q, want %q", refs[0].Origin, "node-z")
	}
}

func TestRegistry_AllIsRestartable(t *testing.T) {
	pool := setupPool(t, 2)
	reg := running.New("node-a", pool)
	seq := reg.All()

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if got := count(); got != 0 {
		t.Fatalf("expected empty sequence, got %d", got)
	}

	started := make(chan struct{})
	submit(t, pool, task.NewSimple("late", untilCancelled(started)), started)

	if got := count(); got != 1 {
		t.Fatalf("expected a fresh snapshot with 1 task, got %d", got)
	}
}

func TestRegistry_Cancel(t *testing.T) {
	pool := setupPool(t, 1)
	reg := running.New("node-a", pool)

	started := make(chan struct{})
	tk := task.NewSimple("victim", untilCancelled(started))
	f := submit(t, pool, tk, started)

	if reg.Cancel("task_01h0000000000000000000000") {
		t.Fatal("cancel of an unknown task should report false")
	}
	if !reg.Cancel(tk.ID().String()) {
		t.Fatal("expected cancel to be accepted")
	}

	if _, err := f.Wait(context.Background()); !errors.Is(err, distask.ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := reg.Find(tk.ID().String()); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cancelled task still listed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFilters(t *testing.T) {
	refs := []running.Ref{
		{TaskID: "1", Name: "poll", Kind: task.KindResumable, Member: "a"},
		{TaskID: "2", Name: "poll", Kind: task.KindResumable, Member: "b"},
		{TaskID: "3", Name: "send", Kind: task.KindSimple, Member: "a"},
	}

	tests := []struct {
		name    string
		filters []running.Filter
		want    []string
	}{
		{"none", nil, []string{"1", "2", "3"}},
		{"by name", []running.Filter{running.ByName("poll")}, []string{"1", "2"}},
		{"by kind", []running.Filter{running.ByKind(task.KindSimple)}, []string{"3"}},
		{"on member", []running.Filter{running.OnMember("a")}, []string{"1", "3"}},
		{"combined", []running.Filter{running.ByName("poll"), running.OnMember("b")}, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := running.Select(refs, tt.filters...)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d refs, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].TaskID != tt.want[i] {
					t.Errorf("ref[%d] = %s, want %s", i, got[i].TaskID, tt.want[i])
				}
			}
		})
	}
}
