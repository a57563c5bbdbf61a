package monitoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llm-monitor/backend/pkg/logger"
)

var ErrInvalidInterval = errors.New("interval must be positive")

type BatchRunner interface {
	MonitorAllWebsites(ctx context.Context, sessionName string) BatchResult
}

type ActiveCounter interface {
	CountActiveWebsites(ctx context.Context) (int, error)
}

// SchedulerStatus mirrors the /api/monitoring/status payload.
type SchedulerStatus struct {
	IsRunning        bool       `json:"is_running"`
	CurrentSessionID *int64     `json:"current_session_id"`
	ScheduledJobs    int        `json:"scheduled_jobs"`
	ActiveWebsites   int        `json:"active_websites"`
	IntervalHours    float64    `json:"interval_hours,omitempty"`
	NextRunAt        *time.Time `json:"next_run_at,omitempty"`
}

// Scheduler runs a monitoring batch on a fixed interval. At most one periodic
// job exists: starting again replaces the previous one.
type Scheduler struct {
	runner  BatchRunner
	counter ActiveCounter
	ledger  *SessionLedger

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
	nextRun  time.Time
	running  bool
	wg       sync.WaitGroup
}

func NewScheduler(runner BatchRunner, counter ActiveCounter, ledger *SessionLedger) *Scheduler {
	return &Scheduler{runner: runner, counter: counter, ledger: ledger}
}

// Start schedules a batch every interval, the first one interval from now.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		logger.Info("Replacing existing monitoring schedule", zap.Duration("previous_interval", s.interval))
	}

	stop := make(chan struct{})
	s.stop = stop
	s.interval = interval
	s.nextRun = time.Now().Add(interval)
	s.running = true

	s.wg.Add(1)
	go s.loop(stop, interval)

	logger.Info("Scheduled monitoring started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels the periodic job. It reports whether one was scheduled. A
// batch already in progress is allowed to finish.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return false
	}
	close(s.stop)
	s.stop = nil
	s.running = false
	s.interval = 0
	s.nextRun = time.Time{}

	logger.Info("Scheduled monitoring stopped")
	return true
}

// Wait blocks until every loop started by this scheduler has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) Status(ctx context.Context) SchedulerStatus {
	s.mu.Lock()
	st := SchedulerStatus{IsRunning: s.running}
	if s.stop != nil {
		st.ScheduledJobs = 1
		st.IntervalHours = s.interval.Hours()
		next := s.nextRun
		st.NextRunAt = &next
	}
	s.mu.Unlock()

	if s.ledger != nil {
		if id := s.ledger.Current(); id != 0 {
			st.CurrentSessionID = &id
		}
	}

	if s.counter != nil {
		n, err := s.counter.CountActiveWebsites(ctx)
		if err != nil {
			logger.Warn("Failed to count active websites", zap.Error(err))
		}
		st.ActiveWebsites = n
	}
	return st
}

func (s *Scheduler) loop(stop <-chan struct{}, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// a Stop or Start that raced with the tick wins
		select {
		case <-stop:
			return
		default:
		}

		s.mu.Lock()
		if s.stop == stop {
			s.nextRun = time.Now().Add(interval)
		}
		s.mu.Unlock()

		logger.Info("Running scheduled monitoring", zap.Duration("interval", interval))
		res := s.runner.MonitorAllWebsites(WithTrigger(context.Background(), "scheduled"), "")
		if !res.Success {
			logger.Warn("Scheduled monitoring failed", zap.String("error", res.Error))
		}
	}
}
