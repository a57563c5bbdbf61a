package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MonitoringRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_runs_total",
			Help: "Total monitoring batch runs by outcome",
		},
		[]string{"trigger", "status"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_monitor_run_duration_seconds",
			Help:    "Wall time of a monitoring batch run",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		},
	)

	SitesMonitored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_sites_total",
			Help: "Total websites monitored by outcome",
		},
		[]string{"status"},
	)

	QuestionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_questions_total",
			Help: "Questions processed by pipeline outcome",
		},
		[]string{"outcome"},
	)

	MisrepresentationsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "llm_monitor_misrepresentations_total",
			Help: "Total judgements that flagged a misrepresentation",
		},
	)

	AccuracyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_monitor_accuracy_score",
			Help:    "Distribution of accuracy scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ScrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_monitor_scrape_duration_seconds",
			Help:    "Website scrape duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_llm_requests_total",
			Help: "LLM requests by purpose and status",
		},
		[]string{"purpose", "status"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_monitor_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_monitor_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MonitoringRuns,
			RunDuration,
			SitesMonitored,
			QuestionsProcessed,
			MisrepresentationsDetected,
			AccuracyScore,
			ScrapeDuration,
			LLMTokensUsed,
			LLMRequests,
			CircuitState,
			CacheHits,
			CacheMisses,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
