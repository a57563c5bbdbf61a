package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/llm"
	"github.com/llm-monitor/backend/internal/metrics"
	"github.com/llm-monitor/backend/internal/scraper/web"
	"github.com/llm-monitor/backend/internal/storage"
	"github.com/llm-monitor/backend/internal/storage/models"
	"github.com/llm-monitor/backend/internal/urlutil"
	"github.com/llm-monitor/backend/pkg/logger"
)

const (
	defaultQuestionsPerSite = 5
	defaultLLMService       = "LiteLLM"
	defaultProbeURL         = "https://www.google.com"
	sessionTimeFormat       = "2006-01-02 15:04:05"
)

type Fetcher interface {
	Scrape(ctx context.Context, url string) (*web.ScrapeResult, error)
	CheckReachable(ctx context.Context, url string) bool
}

type Inquirer interface {
	GenerateQuestions(ctx context.Context, content, subject string, count int) []string
	AskQuestion(ctx context.Context, question string) (*llm.Answer, error)
	AnalyzeAccuracy(ctx context.Context, answer, sourceContent, question string) (*llm.AccuracyAnalysis, error)
	TestConnection(ctx context.Context) bool
}

// StatsInvalidator drops cached dashboard aggregates after new results land.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

type Options struct {
	QuestionsPerSite int
	QuestionDelay    time.Duration
	LLMService       string
	ProbeURL         string
	Events           *Broadcaster
	Cache            StatsInvalidator
}

type Monitor struct {
	repo     storage.Repository
	fetcher  Fetcher
	inquirer Inquirer
	ledger   *SessionLedger
	opts     Options
	sleep    func(time.Duration)
}

type SiteResult struct {
	WebsiteID               int64    `json:"website_id"`
	WebsiteName             string   `json:"website_name"`
	WebsiteURL              string   `json:"website_url"`
	ScrapingSuccess         bool     `json:"scraping_success"`
	ContentID               int64    `json:"content_id,omitempty"`
	QuestionsGenerated      int      `json:"questions_generated"`
	QuestionsAnalyzed       int      `json:"questions_analyzed"`
	MisrepresentationsFound int      `json:"misrepresentations_found"`
	Errors                  []string `json:"errors"`
	Success                 bool     `json:"success"`
	Error                   string   `json:"error,omitempty"`
	Err                     error    `json:"-"`
}

type BatchResult struct {
	RunID                  string       `json:"run_id"`
	SessionID              int64        `json:"session_id"`
	TotalWebsites          int          `json:"total_websites"`
	WebsitesProcessed      int          `json:"websites_processed"`
	TotalQuestions         int          `json:"total_questions"`
	TotalMisrepresentation int          `json:"total_misrepresentations"`
	WebsiteResults         []SiteResult `json:"website_results"`
	Errors                 []string     `json:"errors"`
	Success                bool         `json:"success"`
	Error                  string       `json:"error,omitempty"`
	Err                    error        `json:"-"`
}

type ComponentHealth struct {
	Database   bool `json:"database"`
	LLMClient  bool `json:"llm_client"`
	WebScraper bool `json:"web_scraper"`
	Overall    bool `json:"overall"`
}

type triggerKey struct{}

// WithTrigger labels runs started with ctx, for metrics.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerOf(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return "manual"
}

func NewMonitor(repo storage.Repository, fetcher Fetcher, inquirer Inquirer, ledger *SessionLedger, opts Options) *Monitor {
	if opts.QuestionsPerSite <= 0 {
		opts.QuestionsPerSite = defaultQuestionsPerSite
	}
	if opts.LLMService == "" {
		opts.LLMService = defaultLLMService
	}
	if opts.ProbeURL == "" {
		opts.ProbeURL = defaultProbeURL
	}
	if ledger == nil {
		ledger = NewSessionLedger(repo)
	}

	logger.Info("Monitoring system initialized",
		zap.Int("questions_per_site", opts.QuestionsPerSite),
		zap.Duration("question_delay", opts.QuestionDelay),
	)

	return &Monitor{
		repo:     repo,
		fetcher:  fetcher,
		inquirer: inquirer,
		ledger:   ledger,
		opts:     opts,
		sleep:    time.Sleep,
	}
}

func (m *Monitor) Ledger() *SessionLedger {
	return m.ledger
}

// MonitorWebsite runs the scrape, generate, ask and score pipeline for one
// site. Failures are reported in the result; the method never returns an
// error or panics across its boundary for a missing site.
func (m *Monitor) MonitorWebsite(ctx context.Context, websiteID int64) SiteResult {
	return m.monitorWebsite(ctx, websiteID, Event{})
}

func (m *Monitor) monitorWebsite(ctx context.Context, websiteID int64, scope Event) SiteResult {
	result := SiteResult{WebsiteID: websiteID, Errors: []string{}}

	site, err := m.repo.GetWebsite(ctx, websiteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = ErrNotFound
		}
		logger.Warn("Website lookup failed", zap.Int64("website_id", websiteID), zap.Error(err))
		return m.failSite(result, scope, err, err.Error())
	}

	result.WebsiteName = site.Name
	result.WebsiteURL = site.URL
	scope.WebsiteID = site.ID
	scope.WebsiteName = site.Name
	m.publish(scope, EventSiteStarted, fmt.Sprintf("monitoring %s", site.URL))

	logger.Info("Monitoring website",
		zap.Int64("website_id", site.ID),
		zap.String("name", site.Name),
		zap.String("url", site.URL),
	)

	scraped, err := m.fetcher.Scrape(ctx, site.URL)
	if err != nil {
		msg := fmt.Sprintf("%s: %v", ErrFetchFailure, err)
		return m.failSite(result, scope, ErrFetchFailure, msg)
	}
	result.ScrapingSuccess = true

	if err := m.repo.MarkWebsiteScraped(ctx, site.ID); err != nil {
		logger.Warn("Failed to update last_scraped", zap.Int64("website_id", site.ID), zap.Error(err))
	}

	contentID, err := m.repo.InsertWebsiteContent(ctx, site.ID, scraped.Title, scraped.Content, scraped.ContentHash)
	if err != nil {
		return m.failSite(result, scope, err, fmt.Sprintf("failed to store website content: %v", err))
	}
	result.ContentID = contentID

	questions := m.inquirer.GenerateQuestions(ctx, scraped.Content, site.Name, m.opts.QuestionsPerSite)
	if len(questions) > m.opts.QuestionsPerSite {
		questions = questions[:m.opts.QuestionsPerSite]
	}
	result.QuestionsGenerated = len(questions)
	if len(questions) == 0 {
		return m.failSite(result, scope, ErrGenerationFailure, ErrGenerationFailure.Error())
	}

	for i, question := range questions {
		if i > 0 && m.opts.QuestionDelay > 0 {
			m.sleep(m.opts.QuestionDelay)
		}
		m.processQuestion(ctx, &result, scope, site.ID, contentID, scraped.Content, i+1, question)
	}

	result.Success = true
	metrics.SitesMonitored.WithLabelValues("success").Inc()
	m.invalidateStats(ctx)
	m.publish(scope, EventSiteCompleted, fmt.Sprintf("%d/%d questions analyzed, %d misrepresentations",
		result.QuestionsAnalyzed, result.QuestionsGenerated, result.MisrepresentationsFound))

	logger.Info("Website monitoring completed",
		zap.String("name", site.Name),
		zap.Int("questions_analyzed", result.QuestionsAnalyzed),
		zap.Int("misrepresentations_found", result.MisrepresentationsFound),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// processQuestion handles one question end to end. Every failure is appended
// to the result and ends only this question.
func (m *Monitor) processQuestion(ctx context.Context, result *SiteResult, scope Event, websiteID, contentID int64, source string, n int, question string) {
	fail := func(outcome, msg string) {
		result.Errors = append(result.Errors, msg)
		metrics.QuestionsProcessed.WithLabelValues(outcome).Inc()
		m.publish(scope, EventQuestionFailed, msg)
		logger.Warn("Question processing failed", zap.Int("question", n), zap.String("error", msg))
	}

	questionID, err := m.repo.InsertQuestion(ctx, websiteID, question, models.CategoryAutoGenerated)
	if err != nil {
		fail("store_failed", fmt.Sprintf("error processing question %d: %v", n, err))
		return
	}

	answer, err := m.inquirer.AskQuestion(ctx, question)
	if err != nil {
		fail("answer_failed", stepError(ErrAnswerFailure, "for question %d: %v", n, err))
		return
	}

	meta := models.ResponseMetadata{
		Model:            answer.Model,
		PromptTokens:     answer.Usage.PromptTokens,
		CompletionTokens: answer.Usage.CompletionTokens,
		TotalTokens:      answer.Usage.TotalTokens,
	}
	responseID, err := m.repo.InsertLLMResponse(ctx, questionID, m.opts.LLMService, answer.Text, meta)
	if err != nil {
		fail("store_failed", fmt.Sprintf("error processing question %d: %v", n, err))
		return
	}

	analysis, err := m.inquirer.AnalyzeAccuracy(ctx, answer.Text, source, question)
	if err != nil {
		fail("judgement_failed", stepError(ErrJudgementFailure, "for question %d: %v", n, err))
		return
	}

	_, err = m.repo.InsertAnalysisResult(ctx, &models.AnalysisResult{
		LLMResponseID:             responseID,
		WebsiteContentID:          contentID,
		AccuracyScore:             analysis.AccuracyScore,
		MisrepresentationDetected: analysis.MisrepresentationDetected,
		AnalysisSummary:           analysis.Summary,
		SpecificIssues:            models.StringList(analysis.SpecificIssues),
		Confidence:                analysis.Confidence,
		Degraded:                  analysis.Degraded,
		RawAnalysis:               analysis.RawAnalysis,
	})
	if err != nil {
		fail("store_failed", fmt.Sprintf("error processing question %d: %v", n, err))
		return
	}

	result.QuestionsAnalyzed++
	metrics.QuestionsProcessed.WithLabelValues("analyzed").Inc()
	metrics.AccuracyScore.Observe(analysis.AccuracyScore)
	if analysis.MisrepresentationDetected {
		result.MisrepresentationsFound++
		metrics.MisrepresentationsDetected.Inc()
		logger.Warn("Misrepresentation detected",
			zap.Int64("website_id", websiteID),
			zap.String("question", question),
			zap.Float64("accuracy_score", analysis.AccuracyScore),
		)
	}
	m.publish(scope, EventQuestionAnalyzed, fmt.Sprintf("question %d scored %.2f", n, analysis.AccuracyScore))
}

func (m *Monitor) failSite(result SiteResult, scope Event, err error, msg string) SiteResult {
	result.Errors = append(result.Errors, msg)
	result.Success = false
	result.Err = err
	result.Error = msg
	metrics.SitesMonitored.WithLabelValues("failed").Inc()
	m.publish(scope, EventSiteFailed, msg)
	logger.Warn("Website monitoring failed",
		zap.Int64("website_id", result.WebsiteID),
		zap.String("error", msg),
	)
	return result
}

// MonitorAllWebsites opens a session, monitors every active site in id order
// and closes the session with the totals. A panic while monitoring one site
// is recorded against that site and the batch continues.
func (m *Monitor) MonitorAllWebsites(ctx context.Context, sessionName string) BatchResult {
	start := time.Now()
	trigger := triggerOf(ctx)
	batch := BatchResult{
		RunID:          uuid.NewString(),
		WebsiteResults: []SiteResult{},
		Errors:         []string{},
	}

	if sessionName == "" {
		sessionName = "Monitoring Session " + time.Now().Format(sessionTimeFormat)
	}

	sessionID, err := m.ledger.Open(ctx, sessionName)
	if err != nil {
		return m.failBatch(batch, trigger, fmt.Errorf("failed to start session: %w", err))
	}
	batch.SessionID = sessionID
	scope := Event{RunID: batch.RunID, SessionID: sessionID}

	sites, err := m.repo.ListWebsites(ctx, true)
	if err == nil && len(sites) == 0 {
		err = ErrNoActiveSites
	}
	if err != nil {
		if abandonErr := m.ledger.Abandon(ctx, sessionID); abandonErr != nil {
			logger.Error("Failed to abandon session", zap.Int64("session_id", sessionID), zap.Error(abandonErr))
		}
		return m.failBatch(batch, trigger, err)
	}

	batch.TotalWebsites = len(sites)
	m.publish(scope, EventRunStarted, fmt.Sprintf("monitoring %d websites", len(sites)))
	logger.Info("Starting monitoring of all websites",
		zap.String("run_id", batch.RunID),
		zap.Int64("session_id", sessionID),
		zap.Int("websites", len(sites)),
	)

	for _, site := range sites {
		res, err := m.safeMonitor(ctx, site, scope)
		if err != nil {
			msg := fmt.Sprintf("failed to monitor website %s: %v", site.Name, err)
			logger.Error("Website monitoring panicked", zap.String("name", site.Name), zap.Error(err))
			batch.Errors = append(batch.Errors, msg)
			continue
		}

		batch.WebsiteResults = append(batch.WebsiteResults, res)
		if res.Success {
			batch.WebsitesProcessed++
		}
		batch.TotalQuestions += res.QuestionsAnalyzed
		batch.TotalMisrepresentation += res.MisrepresentationsFound
		batch.Errors = append(batch.Errors, res.Errors...)
	}

	if err := m.ledger.Close(ctx, sessionID, batch.TotalQuestions, batch.TotalMisrepresentation); err != nil {
		logger.Error("Failed to complete session", zap.Int64("session_id", sessionID), zap.Error(err))
		batch.Errors = append(batch.Errors, fmt.Sprintf("failed to complete session: %v", err))
	}

	batch.Success = true
	metrics.MonitoringRuns.WithLabelValues(trigger, "completed").Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	m.invalidateStats(ctx)
	m.publish(scope, EventRunCompleted, fmt.Sprintf("%d/%d websites processed, %d questions, %d misrepresentations",
		batch.WebsitesProcessed, batch.TotalWebsites, batch.TotalQuestions, batch.TotalMisrepresentation))

	logger.Info("Monitoring summary",
		zap.String("run_id", batch.RunID),
		zap.Int64("session_id", sessionID),
		zap.Int("websites_processed", batch.WebsitesProcessed),
		zap.Int("total_websites", batch.TotalWebsites),
		zap.Int("total_questions", batch.TotalQuestions),
		zap.Int("total_misrepresentations", batch.TotalMisrepresentation),
		zap.Int("errors", len(batch.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return batch
}

// MonitorWebsites runs the pipeline over the given ids without opening a
// session.
func (m *Monitor) MonitorWebsites(ctx context.Context, ids []int64) []SiteResult {
	scope := Event{RunID: uuid.NewString()}
	results := make([]SiteResult, 0, len(ids))

	m.publish(scope, EventRunStarted, fmt.Sprintf("monitoring %d selected websites", len(ids)))
	for _, id := range ids {
		res, err := m.safeMonitor(ctx, models.Website{ID: id}, scope)
		if err != nil {
			res = SiteResult{WebsiteID: id, Errors: []string{err.Error()}, Error: err.Error(), Err: err}
		}
		results = append(results, res)
	}
	m.publish(scope, EventRunCompleted, fmt.Sprintf("%d websites monitored", len(results)))
	metrics.MonitoringRuns.WithLabelValues(triggerOf(ctx), "completed").Inc()
	return results
}

func (m *Monitor) safeMonitor(ctx context.Context, site models.Website, scope Event) (res SiteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.monitorWebsite(ctx, site.ID, scope), nil
}

func (m *Monitor) failBatch(batch BatchResult, trigger string, err error) BatchResult {
	batch.Success = false
	batch.Err = err
	batch.Error = err.Error()
	batch.Errors = append(batch.Errors, err.Error())
	metrics.MonitoringRuns.WithLabelValues(trigger, "failed").Inc()
	m.publish(Event{RunID: batch.RunID, SessionID: batch.SessionID}, EventRunFailed, err.Error())
	logger.Warn("Monitoring run failed", zap.String("run_id", batch.RunID), zap.Error(err))
	return batch
}

// AddWebsite canonicalises the URL, checks that it answers, and upserts the
// site. Unreachable URLs are rejected before the repository is touched.
func (m *Monitor) AddWebsite(ctx context.Context, rawURL, name, description string) (int64, error) {
	canonical, err := urlutil.Canonicalize(rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreachableURL, rawURL, err)
	}

	logger.Info("Adding website to monitoring", zap.String("name", name), zap.String("url", canonical))

	if !m.fetcher.CheckReachable(ctx, canonical) {
		return 0, fmt.Errorf("%w: %s", ErrUnreachableURL, canonical)
	}

	id, err := m.repo.UpsertWebsite(ctx, canonical, name, description)
	if err != nil {
		return 0, err
	}
	m.invalidateStats(ctx)

	logger.Info("Website added", zap.Int64("website_id", id), zap.String("url", canonical))
	return id, nil
}

// TestComponents checks the database, the LLM backend and outbound HTTP.
func (m *Monitor) TestComponents(ctx context.Context) ComponentHealth {
	var h ComponentHealth

	if err := m.repo.Ping(ctx); err != nil {
		logger.Warn("Database test failed", zap.Error(err))
	} else {
		h.Database = true
	}
	h.LLMClient = m.inquirer.TestConnection(ctx)
	h.WebScraper = m.fetcher.CheckReachable(ctx, m.opts.ProbeURL)
	h.Overall = h.Database && h.LLMClient && h.WebScraper

	logger.Info("System component test",
		zap.Bool("database", h.Database),
		zap.Bool("llm_client", h.LLMClient),
		zap.Bool("web_scraper", h.WebScraper),
		zap.Bool("overall", h.Overall),
	)
	return h
}

func (m *Monitor) publish(scope Event, t EventType, msg string) {
	scope.Type = t
	scope.Message = msg
	m.opts.Events.Publish(scope)
}

func (m *Monitor) invalidateStats(ctx context.Context) {
	if m.opts.Cache == nil {
		return
	}
	if err := m.opts.Cache.InvalidateStats(ctx); err != nil {
		logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
}
