package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()

	MonitoringRuns.WithLabelValues("manual", "completed").Inc()
	AccuracyScore.Observe(0.8)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"llm_monitor_runs_total", "llm_monitor_accuracy_score_bucket"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
