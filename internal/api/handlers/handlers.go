package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/monitoring"
	"github.com/llm-monitor/backend/internal/storage"
	"github.com/llm-monitor/backend/internal/storage/models"
	"github.com/llm-monitor/backend/pkg/logger"
)

var errInvalidID = errors.New("invalid id")

// Store is the read side of the repository plus the few writes the HTTP
// surface performs directly.
type Store interface {
	ListWebsites(ctx context.Context, activeOnly bool) ([]models.Website, error)
	GetWebsite(ctx context.Context, id int64) (*models.Website, error)
	DeactivateWebsite(ctx context.Context, id int64) error
	GetLatestContent(ctx context.Context, websiteID int64) (*models.WebsiteContent, error)
	InsertQuestion(ctx context.Context, websiteID int64, text, category string) (int64, error)
	ListQuestions(ctx context.Context, websiteID int64) ([]models.Question, error)
	ListSessions(ctx context.Context, limit int) ([]models.MonitoringSession, error)
	RecentAnalysisResults(ctx context.Context, limit int) ([]models.AnalysisView, error)
	MisrepresentationSummary(ctx context.Context) (*models.MisrepresentationSummary, error)
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// StatsCache caches the dashboard aggregates. A nil StatsCache disables
// caching.
type StatsCache interface {
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, bool, error)
	SetDashboardStats(ctx context.Context, stats *models.DashboardStats) error
	GetMisrepresentationSummary(ctx context.Context) (*models.MisrepresentationSummary, bool, error)
	SetMisrepresentationSummary(ctx context.Context, summary *models.MisrepresentationSummary) error
	InvalidateStats(ctx context.Context) error
}

type LinkExtractor interface {
	ExtractLinks(ctx context.Context, pageURL string, sameDomainOnly bool) ([]string, error)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, monitoring.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, monitoring.ErrUnreachableURL),
		errors.Is(err, monitoring.ErrInvalidInterval),
		errors.Is(err, errInvalidID):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	}
	if msg == "" || status != fiber.StatusInternalServerError {
		msg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return int64(id), nil
}

func queryLimit(c *fiber.Ctx, def, max int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
