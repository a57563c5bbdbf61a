package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/llm-monitor/backend/internal/metrics"
	"github.com/llm-monitor/backend/internal/middleware/validation"
	"github.com/llm-monitor/backend/internal/monitoring"
)

type Dependencies struct {
	Monitor   *monitoring.Monitor
	Scheduler *monitoring.Scheduler
	Store     Store
	Links     LinkExtractor
	Cache     StatsCache
	Events    *monitoring.Broadcaster

	// Applied to every mutating route when set.
	RateLimit  fiber.Handler
	Validation validation.Config
}

// Register mounts the API, the progress websocket and /metrics on app. The
// returned handler owns manual runs started through the API.
func Register(app *fiber.App, d Dependencies) *MonitoringHandler {
	websites := NewWebsiteHandler(d.Monitor, d.Store, d.Links)
	questions := NewQuestionHandler(d.Store)
	monitor := NewMonitoringHandler(d.Monitor, d.Scheduler, d.Store)
	analysis := NewAnalysisHandler(d.Store, d.Cache)
	ws := NewWebSocketHandler(d.Events)

	limited := func(h ...fiber.Handler) []fiber.Handler {
		if d.RateLimit == nil {
			return h
		}
		return append([]fiber.Handler{d.RateLimit}, h...)
	}

	api := app.Group("/api", validation.ContentType())

	api.Get("/health", monitor.Health)

	api.Get("/websites", websites.ListWebsites)
	api.Post("/websites", limited(validation.Website(d.Validation), websites.AddWebsite)...)
	api.Delete("/websites/:id", limited(websites.DeleteWebsite)...)
	api.Get("/websites/:id/content", websites.GetContent)
	api.Get("/websites/:id/links", websites.GetLinks)

	api.Post("/monitoring/start", limited(monitor.StartMonitoring)...)
	api.Get("/monitoring/status", monitor.GetStatus)
	api.Post("/monitoring/schedule", limited(monitor.Schedule)...)
	api.Post("/monitoring/stop", limited(monitor.Stop)...)
	api.Get("/monitoring/sessions", monitor.ListSessions)

	api.Get("/analysis/results", analysis.GetResults)
	api.Get("/analysis/summary", analysis.GetSummary)
	api.Get("/analysis/export", analysis.Export)

	api.Post("/questions", limited(validation.Question(d.Validation), questions.AddQuestion)...)
	api.Get("/questions/:website_id", questions.ListQuestions)

	api.Get("/dashboard/stats", analysis.GetDashboardStats)

	app.Get("/ws/monitoring", ws.Upgrade, websocket.New(ws.StreamProgress))
	app.Get("/metrics", metrics.MetricsHandler())

	return monitor
}
