package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/report"
	"github.com/llm-monitor/backend/pkg/logger"
)

type AnalysisHandler struct {
	store Store
	cache StatsCache
}

// NewAnalysisHandler builds the reporting endpoints. cache may be nil.
func NewAnalysisHandler(store Store, cache StatsCache) *AnalysisHandler {
	return &AnalysisHandler{store: store, cache: cache}
}

func (h *AnalysisHandler) GetResults(c *fiber.Ctx) error {
	results, err := h.store.RecentAnalysisResults(c.Context(), queryLimit(c, 50, 500))
	if err != nil {
		return writeError(c, err, "Failed to load analysis results")
	}
	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

func (h *AnalysisHandler) GetSummary(c *fiber.Ctx) error {
	ctx := c.Context()

	if h.cache != nil {
		summary, ok, err := h.cache.GetMisrepresentationSummary(ctx)
		if err != nil {
			logger.Warn("Summary cache read failed", zap.Error(err))
		}
		if ok {
			return c.JSON(summary)
		}
	}

	summary, err := h.store.MisrepresentationSummary(ctx)
	if err != nil {
		return writeError(c, err, "Failed to load misrepresentation summary")
	}

	if h.cache != nil {
		if err := h.cache.SetMisrepresentationSummary(ctx, summary); err != nil {
			logger.Warn("Summary cache write failed", zap.Error(err))
		}
	}
	return c.JSON(summary)
}

func (h *AnalysisHandler) GetDashboardStats(c *fiber.Ctx) error {
	ctx := c.Context()

	if h.cache != nil {
		stats, ok, err := h.cache.GetDashboardStats(ctx)
		if err != nil {
			logger.Warn("Stats cache read failed", zap.Error(err))
		}
		if ok {
			return c.JSON(stats)
		}
	}

	stats, err := h.store.DashboardStats(ctx)
	if err != nil {
		return writeError(c, err, "Failed to load dashboard stats")
	}

	if h.cache != nil {
		if err := h.cache.SetDashboardStats(ctx, stats); err != nil {
			logger.Warn("Stats cache write failed", zap.Error(err))
		}
	}
	return c.JSON(stats)
}

// Export streams the recent results and the dashboard aggregates as an XLSX
// workbook.
func (h *AnalysisHandler) Export(c *fiber.Ctx) error {
	ctx := c.Context()

	results, err := h.store.RecentAnalysisResults(ctx, queryLimit(c, 500, 5000))
	if err != nil {
		return writeError(c, err, "Failed to load analysis results")
	}
	stats, err := h.store.DashboardStats(ctx)
	if err != nil {
		return writeError(c, err, "Failed to load dashboard stats")
	}

	var buf bytes.Buffer
	if err := report.WriteAnalysisWorkbook(&buf, results, stats); err != nil {
		return writeError(c, err, "Failed to build export")
	}

	filename := fmt.Sprintf("analysis-results-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}
