package storage

import (
	"context"
	"errors"

	"github.com/llm-monitor/backend/internal/storage/models"
)

var ErrNotFound = errors.New("not found")

// Repository is the persistence contract the monitoring pipeline depends on.
type Repository interface {
	UpsertWebsite(ctx context.Context, url, name, description string) (int64, error)
	GetWebsite(ctx context.Context, id int64) (*models.Website, error)
	ListWebsites(ctx context.Context, activeOnly bool) ([]models.Website, error)
	MarkWebsiteScraped(ctx context.Context, id int64) error
	CountActiveWebsites(ctx context.Context) (int, error)

	InsertWebsiteContent(ctx context.Context, websiteID int64, title, content, contentHash string) (int64, error)
	InsertQuestion(ctx context.Context, websiteID int64, text, category string) (int64, error)
	InsertLLMResponse(ctx context.Context, questionID int64, service, text string, meta models.ResponseMetadata) (int64, error)
	InsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) (int64, error)

	StartSession(ctx context.Context, name string) (int64, error)
	CompleteSession(ctx context.Context, id int64, totalQuestions, misrepresentations int) error
	AbandonSession(ctx context.Context, id int64) error
	GetSession(ctx context.Context, id int64) (*models.MonitoringSession, error)

	Ping(ctx context.Context) error
}
