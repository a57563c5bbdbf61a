package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/storage"
	"github.com/llm-monitor/backend/internal/storage/models"
	"github.com/llm-monitor/backend/pkg/logger"
)

type Client struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.Repository = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	inMemory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS websites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		last_scraped DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_websites_active ON websites(is_active);

	CREATE TABLE IF NOT EXISTS website_content (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		website_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		scraped_at DATETIME NOT NULL,
		FOREIGN KEY (website_id) REFERENCES websites(id)
	);
	CREATE INDEX IF NOT EXISTS idx_content_website ON website_content(website_id, scraped_at);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		website_id INTEGER NOT NULL,
		question_text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'manual',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (website_id) REFERENCES websites(id)
	);
	CREATE INDEX IF NOT EXISTS idx_questions_website ON questions(website_id);

	CREATE TABLE IF NOT EXISTS llm_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		llm_service TEXT NOT NULL,
		response_text TEXT NOT NULL,
		response_metadata TEXT NOT NULL DEFAULT '{}',
		queried_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_responses_question ON llm_responses(question_id);

	CREATE TABLE IF NOT EXISTS analysis_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		llm_response_id INTEGER NOT NULL,
		website_content_id INTEGER NOT NULL,
		accuracy_score REAL NOT NULL,
		misrepresentation_detected BOOLEAN NOT NULL DEFAULT 0,
		analysis_summary TEXT NOT NULL DEFAULT '',
		specific_issues TEXT NOT NULL DEFAULT '[]',
		confidence REAL NOT NULL DEFAULT 0,
		degraded BOOLEAN NOT NULL DEFAULT 0,
		raw_analysis TEXT NOT NULL DEFAULT '',
		analyzed_at DATETIME NOT NULL,
		FOREIGN KEY (llm_response_id) REFERENCES llm_responses(id),
		FOREIGN KEY (website_content_id) REFERENCES website_content(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_analyzed ON analysis_results(analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_misrep ON analysis_results(misrepresentation_detected);

	CREATE TABLE IF NOT EXISTS monitoring_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		total_questions INTEGER NOT NULL DEFAULT 0,
		misrepresentations_found INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON monitoring_sessions(started_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

// UpsertWebsite inserts a site or, when the URL already exists, reactivates it
// and overwrites its name and description.
func (c *Client) UpsertWebsite(ctx context.Context, url, name, description string) (int64, error) {
	query := `
		INSERT INTO websites (url, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_active = 1
		RETURNING id
	`

	var id int64
	if err := c.db.QueryRowxContext(ctx, query, url, name, description, c.now()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert website: %w", err)
	}
	return id, nil
}

func (c *Client) GetWebsite(ctx context.Context, id int64) (*models.Website, error) {
	var w models.Website
	err := c.db.GetContext(ctx, &w, `SELECT * FROM websites WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website: %w", err)
	}
	return &w, nil
}

func (c *Client) ListWebsites(ctx context.Context, activeOnly bool) ([]models.Website, error) {
	query := `SELECT * FROM websites`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	websites := []models.Website{}
	if err := c.db.SelectContext(ctx, &websites, query); err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	return websites, nil
}

func (c *Client) DeactivateWebsite(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `UPDATE websites SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate website: %w", err)
	}
	return requireRow(res)
}

func (c *Client) MarkWebsiteScraped(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `UPDATE websites SET last_scraped = ? WHERE id = ?`, c.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update last_scraped: %w", err)
	}
	return requireRow(res)
}

func (c *Client) CountActiveWebsites(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM websites WHERE is_active = 1`); err != nil {
		return 0, fmt.Errorf("failed to count websites: %w", err)
	}
	return n, nil
}

func (c *Client) InsertWebsiteContent(ctx context.Context, websiteID int64, title, content, contentHash string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO website_content (website_id, title, content, content_hash, scraped_at)
		VALUES (?, ?, ?, ?, ?)
	`, websiteID, title, content, contentHash, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert website content: %w", err)
	}
	return res.LastInsertId()
}

func (c *Client) GetLatestContent(ctx context.Context, websiteID int64) (*models.WebsiteContent, error) {
	var wc models.WebsiteContent
	err := c.db.GetContext(ctx, &wc, `
		SELECT * FROM website_content
		WHERE website_id = ?
		ORDER BY scraped_at DESC, id DESC
		LIMIT 1
	`, websiteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest content: %w", err)
	}
	return &wc, nil
}

func (c *Client) InsertQuestion(ctx context.Context, websiteID int64, text, category string) (int64, error) {
	if category == "" {
		category = models.CategoryManual
	}
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO questions (website_id, question_text, category, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, websiteID, text, category, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert question: %w", err)
	}
	return res.LastInsertId()
}

func (c *Client) ListQuestions(ctx context.Context, websiteID int64) ([]models.Question, error) {
	questions := []models.Question{}
	err := c.db.SelectContext(ctx, &questions, `
		SELECT * FROM questions
		WHERE website_id = ? AND is_active = 1
		ORDER BY id
	`, websiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

func (c *Client) InsertLLMResponse(ctx context.Context, questionID int64, service, text string, meta models.ResponseMetadata) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO llm_responses (question_id, llm_service, response_text, response_metadata, queried_at)
		VALUES (?, ?, ?, ?, ?)
	`, questionID, service, text, meta, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert llm response: %w", err)
	}
	return res.LastInsertId()
}

func (c *Client) InsertAnalysisResult(ctx context.Context, r *models.AnalysisResult) (int64, error) {
	if r.AnalyzedAt.IsZero() {
		r.AnalyzedAt = c.now()
	}
	res, err := c.db.NamedExecContext(ctx, `
		INSERT INTO analysis_results (
			llm_response_id, website_content_id, accuracy_score, misrepresentation_detected,
			analysis_summary, specific_issues, confidence, degraded, raw_analysis, analyzed_at
		) VALUES (
			:llm_response_id, :website_content_id, :accuracy_score, :misrepresentation_detected,
			:analysis_summary, :specific_issues, :confidence, :degraded, :raw_analysis, :analyzed_at
		)
	`, r)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

func (c *Client) StartSession(ctx context.Context, name string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO monitoring_sessions (session_name, started_at, status)
		VALUES (?, ?, ?)
	`, name, c.now(), models.SessionRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}
	return res.LastInsertId()
}

func (c *Client) CompleteSession(ctx context.Context, id int64, totalQuestions, misrepresentations int) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE monitoring_sessions
		SET completed_at = ?, status = ?, total_questions = ?, misrepresentations_found = ?
		WHERE id = ?
	`, c.now(), models.SessionCompleted, totalQuestions, misrepresentations, id)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return requireRow(res)
}

func (c *Client) AbandonSession(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE monitoring_sessions SET completed_at = ?, status = ? WHERE id = ?
	`, c.now(), models.SessionAbandoned, id)
	if err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	return requireRow(res)
}

func (c *Client) GetSession(ctx context.Context, id int64) (*models.MonitoringSession, error) {
	var s models.MonitoringSession
	err := c.db.GetContext(ctx, &s, `SELECT * FROM monitoring_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (c *Client) ListSessions(ctx context.Context, limit int) ([]models.MonitoringSession, error) {
	if limit <= 0 {
		limit = 20
	}
	sessions := []models.MonitoringSession{}
	err := c.db.SelectContext(ctx, &sessions, `
		SELECT * FROM monitoring_sessions ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

const analysisViewSelect = `
	SELECT
		ar.id, ar.accuracy_score, ar.misrepresentation_detected, ar.analysis_summary,
		ar.specific_issues, ar.confidence, ar.degraded, ar.analyzed_at,
		q.question_text,
		w.name AS website_name, w.url AS website_url,
		wc.title AS content_title,
		lr.response_text, lr.llm_service
	FROM analysis_results ar
	JOIN llm_responses lr ON ar.llm_response_id = lr.id
	JOIN questions q ON lr.question_id = q.id
	JOIN website_content wc ON ar.website_content_id = wc.id
	JOIN websites w ON wc.website_id = w.id
`

func (c *Client) RecentAnalysisResults(ctx context.Context, limit int) ([]models.AnalysisView, error) {
	if limit <= 0 {
		limit = 50
	}
	results := []models.AnalysisView{}
	err := c.db.SelectContext(ctx, &results, analysisViewSelect+`
		ORDER BY ar.analyzed_at DESC, ar.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis results: %w", err)
	}
	return results, nil
}

func (c *Client) MisrepresentationSummary(ctx context.Context) (*models.MisrepresentationSummary, error) {
	summary := &models.MisrepresentationSummary{
		ByWebsite:               []models.WebsiteMisrepresentations{},
		RecentMisrepresentation: []models.AnalysisView{},
	}

	err := c.db.GetContext(ctx, &summary.TotalMisrepresentations,
		`SELECT COUNT(*) FROM analysis_results WHERE misrepresentation_detected = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count misrepresentations: %w", err)
	}

	err = c.db.SelectContext(ctx, &summary.ByWebsite, `
		SELECT w.name AS website_name, w.url AS website_url, COUNT(*) AS misrepresentation_count
		FROM analysis_results ar
		JOIN website_content wc ON ar.website_content_id = wc.id
		JOIN websites w ON wc.website_id = w.id
		WHERE ar.misrepresentation_detected = 1
		GROUP BY w.id, w.name, w.url
		ORDER BY misrepresentation_count DESC, w.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group misrepresentations: %w", err)
	}

	err = c.db.SelectContext(ctx, &summary.RecentMisrepresentation, analysisViewSelect+`
		WHERE ar.misrepresentation_detected = 1
		ORDER BY ar.analyzed_at DESC, ar.id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent misrepresentations: %w", err)
	}

	return summary, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var row struct {
		Analyses        int             `db:"analyses"`
		Misreps         int             `db:"misreps"`
		Recent          int             `db:"recent"`
		AverageAccuracy sql.NullFloat64 `db:"avg_accuracy"`
	}

	since := c.now().Add(-24 * time.Hour)
	err := c.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS analyses,
			COALESCE(SUM(CASE WHEN misrepresentation_detected = 1 THEN 1 ELSE 0 END), 0) AS misreps,
			COALESCE(SUM(CASE WHEN analyzed_at >= ? THEN 1 ELSE 0 END), 0) AS recent,
			AVG(accuracy_score) AS avg_accuracy
		FROM analysis_results
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}

	active, err := c.CountActiveWebsites(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		ActiveWebsites:          active,
		TotalAnalyses:           row.Analyses,
		TotalMisrepresentations: row.Misreps,
		RecentActivity24h:       row.Recent,
	}
	if row.AverageAccuracy.Valid {
		stats.AverageAccuracy = round(row.AverageAccuracy.Float64, 3)
	}
	if row.Analyses > 0 {
		stats.MisrepresentationRate = round(float64(row.Misreps)/float64(row.Analyses)*100, 2)
	}
	return stats, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
