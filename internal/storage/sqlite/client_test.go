package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/llm-monitor/backend/internal/storage"
	"github.com/llm-monitor/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUpsertWebsiteReactivatesAndOverwrites(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.UpsertWebsite(ctx, "https://www.example.gov/", "Example", "first")
	if err != nil {
		t.Fatalf("UpsertWebsite: %v", err)
	}
	if err := c.DeactivateWebsite(ctx, id); err != nil {
		t.Fatalf("DeactivateWebsite: %v", err)
	}

	again, err := c.UpsertWebsite(ctx, "https://www.example.gov/", "Example Agency", "second")
	if err != nil {
		t.Fatalf("UpsertWebsite again: %v", err)
	}
	if again != id {
		t.Fatalf("expected same id %d, got %d", id, again)
	}

	w, err := c.GetWebsite(ctx, id)
	if err != nil {
		t.Fatalf("GetWebsite: %v", err)
	}
	if !w.IsActive || w.Name != "Example Agency" || w.Description != "second" {
		t.Fatalf("unexpected website after re-add: %+v", w)
	}
	if w.LastScraped != nil {
		t.Fatalf("expected no last_scraped, got %v", w.LastScraped)
	}

	all, err := c.ListWebsites(ctx, false)
	if err != nil {
		t.Fatalf("ListWebsites: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 website, got %d", len(all))
	}
}

func TestListWebsitesActiveOnlyOrdered(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a, _ := c.UpsertWebsite(ctx, "https://a.gov/", "A", "")
	b, _ := c.UpsertWebsite(ctx, "https://b.gov/", "B", "")
	cc, _ := c.UpsertWebsite(ctx, "https://c.gov/", "C", "")
	if err := c.DeactivateWebsite(ctx, b); err != nil {
		t.Fatalf("DeactivateWebsite: %v", err)
	}

	active, err := c.ListWebsites(ctx, true)
	if err != nil {
		t.Fatalf("ListWebsites: %v", err)
	}
	if len(active) != 2 || active[0].ID != a || active[1].ID != cc {
		t.Fatalf("unexpected active websites: %+v", active)
	}

	n, err := c.CountActiveWebsites(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountActiveWebsites = %d, %v", n, err)
	}
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.GetWebsite(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetWebsite: expected ErrNotFound, got %v", err)
	}
	if err := c.DeactivateWebsite(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeactivateWebsite: expected ErrNotFound, got %v", err)
	}
	if _, err := c.GetLatestContent(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetLatestContent: expected ErrNotFound, got %v", err)
	}
	if _, err := c.GetSession(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession: expected ErrNotFound, got %v", err)
	}
}

func TestMarkWebsiteScraped(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	id, _ := c.UpsertWebsite(ctx, "https://a.gov/", "A", "")
	if err := c.MarkWebsiteScraped(ctx, id); err != nil {
		t.Fatalf("MarkWebsiteScraped: %v", err)
	}
	w, err := c.GetWebsite(ctx, id)
	if err != nil {
		t.Fatalf("GetWebsite: %v", err)
	}
	if w.LastScraped == nil || !w.LastScraped.Equal(fixed) {
		t.Fatalf("expected last_scraped %v, got %v", fixed, w.LastScraped)
	}
}

func seedJudgement(t *testing.T, c *Client, websiteID int64, score float64, misrep bool) int64 {
	t.Helper()
	ctx := context.Background()

	contentID, err := c.InsertWebsiteContent(ctx, websiteID, "Home", "body text", "abc123")
	if err != nil {
		t.Fatalf("InsertWebsiteContent: %v", err)
	}
	qID, err := c.InsertQuestion(ctx, websiteID, "Who runs it?", models.CategoryAutoGenerated)
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	rID, err := c.InsertLLMResponse(ctx, qID, "LiteLLM", "The board.", models.ResponseMetadata{Model: "gpt-4o-mini", TotalTokens: 12})
	if err != nil {
		t.Fatalf("InsertLLMResponse: %v", err)
	}
	aID, err := c.InsertAnalysisResult(ctx, &models.AnalysisResult{
		LLMResponseID:             rID,
		WebsiteContentID:          contentID,
		AccuracyScore:             score,
		MisrepresentationDetected: misrep,
		AnalysisSummary:           "summary",
		SpecificIssues:            models.StringList{"wrong date"},
		Confidence:                0.9,
	})
	if err != nil {
		t.Fatalf("InsertAnalysisResult: %v", err)
	}
	return aID
}

func TestAnalysisViewsAndStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a, _ := c.UpsertWebsite(ctx, "https://a.gov/", "Agency A", "")
	b, _ := c.UpsertWebsite(ctx, "https://b.gov/", "Agency B", "")

	seedJudgement(t, c, a, 0.9, false)
	seedJudgement(t, c, a, 0.2, true)
	seedJudgement(t, c, b, 0.3, true)

	results, err := c.RecentAnalysisResults(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAnalysisResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].WebsiteName != "Agency B" || results[0].QuestionText != "Who runs it?" {
		t.Fatalf("unexpected newest result: %+v", results[0])
	}
	if len(results[0].SpecificIssues) != 1 || results[0].SpecificIssues[0] != "wrong date" {
		t.Fatalf("specific issues not round-tripped: %v", results[0].SpecificIssues)
	}

	summary, err := c.MisrepresentationSummary(ctx)
	if err != nil {
		t.Fatalf("MisrepresentationSummary: %v", err)
	}
	if summary.TotalMisrepresentations != 2 || len(summary.ByWebsite) != 2 || len(summary.RecentMisrepresentation) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	stats, err := c.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	want := models.DashboardStats{
		ActiveWebsites:          2,
		TotalAnalyses:           3,
		TotalMisrepresentations: 2,
		RecentActivity24h:       3,
		AverageAccuracy:         0.467,
		MisrepresentationRate:   66.67,
	}
	if *stats != want {
		t.Fatalf("DashboardStats = %+v, want %+v", *stats, want)
	}
}

func TestDashboardStatsEmpty(t *testing.T) {
	c := newTestClient(t)
	stats, err := c.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if *stats != (models.DashboardStats{}) {
		t.Fatalf("expected zero stats, got %+v", *stats)
	}
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.StartSession(ctx, "nightly")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s, err := c.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Status != models.SessionRunning || s.CompletedAt != nil {
		t.Fatalf("unexpected running session: %+v", s)
	}

	if err := c.CompleteSession(ctx, id, 10, 3); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	s, _ = c.GetSession(ctx, id)
	if s.Status != models.SessionCompleted || s.TotalQuestions != 10 || s.MisrepresentationsFound != 3 || s.CompletedAt == nil {
		t.Fatalf("unexpected completed session: %+v", s)
	}

	other, _ := c.StartSession(ctx, "empty")
	if err := c.AbandonSession(ctx, other); err != nil {
		t.Fatalf("AbandonSession: %v", err)
	}

	sessions, err := c.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].Status != models.SessionAbandoned {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestListQuestionsOrdered(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, _ := c.UpsertWebsite(ctx, "https://a.gov/", "A", "")
	c.InsertQuestion(ctx, id, "First?", "")
	c.InsertQuestion(ctx, id, "Second?", models.CategorySeeded)

	qs, err := c.ListQuestions(ctx, id)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 2 || qs[0].QuestionText != "First?" || qs[0].Category != models.CategoryManual || qs[1].Category != models.CategorySeeded {
		t.Fatalf("unexpected questions: %+v", qs)
	}
}
