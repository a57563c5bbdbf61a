package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Settings struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before a single probe call
	// is let through.
	Cooldown time.Duration
	// IsFailure decides whether an error counts against the breaker. Nil
	// counts every error except context cancellation.
	IsFailure     func(error) bool
	OnStateChange func(name string, from, to State)
	Logger        *zap.Logger
}

type Stats struct {
	State               State
	ConsecutiveFailures int
	TotalCalls          uint64
	TotalFailures       uint64
	Rejected            uint64
	OpenedAt            time.Time
}

type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	probing  bool
	stats    Stats
	openedAt time.Time
}

func New(name string, s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return &Breaker{name: name, settings: s, now: time.Now}
}

func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open. While half-open only one call
// is admitted; its outcome closes or re-opens the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(StateHalfOpen)
	}

	switch b.state {
	case StateOpen:
		b.stats.Rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			b.stats.Rejected++
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.stats.TotalCalls++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == StateHalfOpen
	b.probing = false

	if err == nil || !b.isFailure(err) {
		b.stats.ConsecutiveFailures = 0
		if wasProbe {
			b.transition(StateClosed)
		}
		return
	}

	b.stats.TotalFailures++
	b.stats.ConsecutiveFailures++
	if wasProbe || b.stats.ConsecutiveFailures >= b.settings.FailureThreshold {
		b.openedAt = b.now()
		b.stats.OpenedAt = b.openedAt
		b.transition(StateOpen)
	}
}

func (b *Breaker) isFailure(err error) bool {
	if b.settings.IsFailure != nil {
		return b.settings.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateClosed {
		b.stats.ConsecutiveFailures = 0
	}

	b.settings.Logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutive_failures", b.stats.ConsecutiveFailures),
	)
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.State = b.state
	return s
}
