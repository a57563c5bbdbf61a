package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	runs    atomic.Int32
	trigger atomic.Value
}

func (r *countingRunner) MonitorAllWebsites(ctx context.Context, name string) BatchResult {
	r.runs.Add(1)
	r.trigger.Store(triggerOf(ctx))
	return BatchResult{Success: true}
}

type fixedCounter int

func (c fixedCounter) CountActiveWebsites(ctx context.Context) (int, error) {
	return int(c), nil
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

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(&countingRunner{}, fixedCounter(0), nil)
	for _, d := range []time.Duration{0, -time.Hour} {
		if err := s.Start(d); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Start(%v) error = %v", d, err)
		}
	}
	if s.Status(context.Background()).IsRunning {
		t.Error("scheduler should not be running")
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, fixedCounter(3), nil)

	if err := s.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return runner.runs.Load() >= 2 })

	if !s.Stop() {
		t.Fatal("Stop reported no job")
	}
	s.Wait()

	if got := runner.trigger.Load(); got != "scheduled" {
		t.Errorf("trigger = %v, want scheduled", got)
	}

	after := runner.runs.Load()
	time.Sleep(40 * time.Millisecond)
	if runner.runs.Load() != after {
		t.Error("runs continued after Stop")
	}
}

func TestSchedulerStartReplacesExistingJob(t *testing.T) {
	s := NewScheduler(&countingRunner{}, fixedCounter(0), nil)

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(2 * time.Hour); err != nil {
		t.Fatalf("Start again: %v", err)
	}

	st := s.Status(context.Background())
	if st.ScheduledJobs != 1 || st.IntervalHours != 2 {
		t.Fatalf("unexpected status %+v", st)
	}

	if !s.Stop() {
		t.Fatal("Stop reported no job")
	}
	// both loops must have exited
	s.Wait()

	if s.Stop() {
		t.Error("second Stop should report no job")
	}
}

func TestSchedulerStatus(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ledger := NewSessionLedger(repo)
	s := NewScheduler(&countingRunner{}, fixedCounter(7), ledger)

	st := s.Status(ctx)
	if st.IsRunning || st.ScheduledJobs != 0 || st.CurrentSessionID != nil || st.ActiveWebsites != 7 || st.NextRunAt != nil {
		t.Fatalf("unexpected idle status %+v", st)
	}

	id, err := ledger.Open(ctx, "manual")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Start(24 * time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	st = s.Status(ctx)
	if !st.IsRunning || st.ScheduledJobs != 1 || st.IntervalHours != 24 {
		t.Fatalf("unexpected running status %+v", st)
	}
	if st.CurrentSessionID == nil || *st.CurrentSessionID != id {
		t.Errorf("current session = %v, want %d", st.CurrentSessionID, id)
	}
	if st.NextRunAt == nil || time.Until(*st.NextRunAt) < 23*time.Hour {
		t.Errorf("next run = %v", st.NextRunAt)
	}
}
