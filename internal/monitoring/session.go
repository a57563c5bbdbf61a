package monitoring

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/storage"
	"github.com/llm-monitor/backend/pkg/logger"
)

// SessionLedger opens and closes monitoring sessions and remembers the most
// recently opened one.
type SessionLedger struct {
	repo    storage.Repository
	current atomic.Int64
}

func NewSessionLedger(repo storage.Repository) *SessionLedger {
	return &SessionLedger{repo: repo}
}

func (l *SessionLedger) Open(ctx context.Context, name string) (int64, error) {
	id, err := l.repo.StartSession(ctx, name)
	if err != nil {
		return 0, err
	}
	l.current.Store(id)
	logger.Info("Monitoring session started", zap.Int64("session_id", id), zap.String("name", name))
	return id, nil
}

func (l *SessionLedger) Close(ctx context.Context, id int64, totalQuestions, misrepresentations int) error {
	if err := l.repo.CompleteSession(ctx, id, totalQuestions, misrepresentations); err != nil {
		return err
	}
	logger.Info("Monitoring session completed",
		zap.Int64("session_id", id),
		zap.Int("total_questions", totalQuestions),
		zap.Int("misrepresentations_found", misrepresentations),
	)
	return nil
}

func (l *SessionLedger) Abandon(ctx context.Context, id int64) error {
	if err := l.repo.AbandonSession(ctx, id); err != nil {
		return err
	}
	logger.Info("Monitoring session abandoned", zap.Int64("session_id", id))
	return nil
}

// Current returns the id of the last opened session, or 0 if none.
func (l *SessionLedger) Current() int64 {
	return l.current.Load()
}
