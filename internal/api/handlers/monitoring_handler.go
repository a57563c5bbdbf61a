package handlers

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/monitoring"
	"github.com/llm-monitor/backend/pkg/logger"
)

const maxIntervalHours = 24 * 365

type MonitoringHandler struct {
	monitor   *monitoring.Monitor
	scheduler *monitoring.Scheduler
	store     Store

	// in-flight manual runs
	runs sync.WaitGroup
}

func NewMonitoringHandler(monitor *monitoring.Monitor, scheduler *monitoring.Scheduler, store Store) *MonitoringHandler {
	return &MonitoringHandler{
		monitor:   monitor,
		scheduler: scheduler,
		store:     store,
	}
}

// StartMonitoring launches a run in the background and returns immediately.
// With website_ids only those sites are monitored and no session is opened.
func (h *MonitoringHandler) StartMonitoring(c *fiber.Ctx) error {
	var req struct {
		WebsiteIDs  []int64 `json:"website_ids"`
		SessionName string  `json:"session_name"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	for _, id := range req.WebsiteIDs {
		if id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "website_ids must be positive integers",
			})
		}
	}

	ctx := monitoring.WithTrigger(context.Background(), "manual")
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if len(req.WebsiteIDs) > 0 {
			h.monitor.MonitorWebsites(ctx, req.WebsiteIDs)
			return
		}
		if res := h.monitor.MonitorAllWebsites(ctx, req.SessionName); !res.Success {
			logger.Warn("Manual monitoring run failed", zap.String("error", res.Error))
		}
	}()

	resp := fiber.Map{
		"message":      "Monitoring started in background",
		"scope":        "all_active",
		"session_name": req.SessionName,
	}
	if len(req.WebsiteIDs) > 0 {
		resp["scope"] = "selected"
		resp["website_ids"] = req.WebsiteIDs
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Wait blocks until manual runs started through the API have finished.
func (h *MonitoringHandler) Wait() {
	h.runs.Wait()
}

func (h *MonitoringHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(h.scheduler.Status(c.Context()))
}

func (h *MonitoringHandler) Schedule(c *fiber.Ctx) error {
	hours := c.QueryFloat("interval_hours", 24)
	if math.IsNaN(hours) || hours <= 0 || hours > maxIntervalHours {
		err := fmt.Errorf("%w: interval_hours must be in (0, %d], got %v", monitoring.ErrInvalidInterval, maxIntervalHours, hours)
		return writeError(c, err, "")
	}
	interval := time.Duration(hours * float64(time.Hour))

	if err := h.scheduler.Start(interval); err != nil {
		return writeError(c, err, "Failed to schedule monitoring")
	}

	return c.JSON(fiber.Map{
		"message":        "Scheduled monitoring started",
		"interval_hours": hours,
	})
}

func (h *MonitoringHandler) Stop(c *fiber.Ctx) error {
	stopped := h.scheduler.Stop()
	msg := "Scheduled monitoring stopped"
	if !stopped {
		msg = "No scheduled monitoring was running"
	}
	return c.JSON(fiber.Map{
		"message": msg,
		"stopped": stopped,
	})
}

func (h *MonitoringHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.store.ListSessions(c.Context(), queryLimit(c, 20, 200))
	if err != nil {
		return writeError(c, err, "Failed to list sessions")
	}
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *MonitoringHandler) Health(c *fiber.Ctx) error {
	health := h.monitor.TestComponents(c.Context())

	status, code := "healthy", fiber.StatusOK
	if !health.Overall {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"components": health,
		"time":       time.Now().Unix(),
	})
}
