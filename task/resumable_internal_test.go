package task

import (
	"context"
	"testing"
	"time"
)

type scriptedSteps struct {
	statuses []Status
	calls    int
}

func (s *scriptedSteps) next() (Status, error) {
	st := s.statuses[s.calls]
	s.calls++
	return st, nil
}

func (s *scriptedSteps) Start(context.Context) (Status, error) { return s.next() }
func (s *scriptedSteps) Resume(context.Context) (Status, error) { return s.next() }

func TestResumable_SleepsOncePerWait(t *testing.T) {
	steps := &scriptedSteps{statuses: []Status{StatusWait, StatusWait, StatusComplete}}
	r, err := NewResumable("scripted", steps, WithInterval(3*time.Second))
	if err != nil {
		t.Fatalf("NewResumable: %v", err)
	}

	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps.calls != 3 {
		t.Errorf("steps called %d times, want 3", steps.calls)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	for i, d := range slept {
		if d != 3*time.Second {
			t.Errorf("sleep[%d] = %s, want 3s", i, d)
		}
	}
}

func TestResumable_CompleteOnStartNeverSleeps(t *testing.T) {
	steps := &scriptedSteps{statuses: []Status{StatusComplete}}
	r, err := NewResumable("once", steps)
	if err != nil {
		t.Fatalf("NewResumable: %v", err)
	}
	r.sleep = func(context.Context, time.Duration) error {
		t.Fatal("sleep must not be called")
		return nil
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps.calls != 1 {
		t.Errorf("steps called %d times, want 1", steps.calls)
	}
}

func TestSleepContext_ZeroIntervalObservesCancel(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("sleepContext: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, 0); err == nil {
		t.Fatal("expected cancellation error")
	}
	if err := sleepContext(ctx, time.Hour); err == nil {
		t.Fatal("expected cancellation error")
	}
}
