package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	CategoryManual        = "manual"
	CategoryAutoGenerated = "auto-generated"
	CategorySeeded        = "seeded"
)

type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

type Website struct {
	ID          int64      `db:"id" json:"id"`
	URL         string     `db:"url" json:"url"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastScraped *time.Time `db:"last_scraped" json:"last_scraped"`
}

type WebsiteContent struct {
	ID          int64     `db:"id" json:"id"`
	WebsiteID   int64     `db:"website_id" json:"website_id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
	ScrapedAt   time.Time `db:"scraped_at" json:"scraped_at"`
}

type Question struct {
	ID           int64     `db:"id" json:"id"`
	WebsiteID    int64     `db:"website_id" json:"website_id"`
	QuestionText string    `db:"question_text" json:"question_text"`
	Category     string    `db:"category" json:"category"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ResponseMetadata is stored as a JSON column on llm_responses.
type ResponseMetadata struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

func (m ResponseMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ResponseMetadata) Scan(src interface{}) error {
	return scanJSON(src, m)
}

type LLMResponse struct {
	ID           int64            `db:"id" json:"id"`
	QuestionID   int64            `db:"question_id" json:"question_id"`
	LLMService   string           `db:"llm_service" json:"llm_service"`
	ResponseText string           `db:"response_text" json:"response_text"`
	Metadata     ResponseMetadata `db:"response_metadata" json:"response_metadata"`
	QueriedAt    time.Time        `db:"queried_at" json:"queried_at"`
}

// StringList is a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

type AnalysisResult struct {
	ID                        int64      `db:"id" json:"id"`
	LLMResponseID             int64      `db:"llm_response_id" json:"llm_response_id"`
	WebsiteContentID          int64      `db:"website_content_id" json:"website_content_id"`
	AccuracyScore             float64    `db:"accuracy_score" json:"accuracy_score"`
	MisrepresentationDetected bool       `db:"misrepresentation_detected" json:"misrepresentation_detected"`
	AnalysisSummary           string     `db:"analysis_summary" json:"analysis_summary"`
	SpecificIssues            StringList `db:"specific_issues" json:"specific_issues"`
	Confidence                float64    `db:"confidence" json:"confidence"`
	Degraded                  bool       `db:"degraded" json:"degraded"`
	RawAnalysis               string     `db:"raw_analysis" json:"raw_analysis,omitempty"`
	AnalyzedAt                time.Time  `db:"analyzed_at" json:"analyzed_at"`
}

type MonitoringSession struct {
	ID                      int64         `db:"id" json:"id"`
	SessionName             string        `db:"session_name" json:"session_name"`
	StartedAt               time.Time     `db:"started_at" json:"started_at"`
	CompletedAt             *time.Time    `db:"completed_at" json:"completed_at"`
	Status                  SessionStatus `db:"status" json:"status"`
	TotalQuestions          int           `db:"total_questions" json:"total_questions"`
	MisrepresentationsFound int           `db:"misrepresentations_found" json:"misrepresentations_found"`
}

// AnalysisView joins a judgement with the question, answer, snapshot and site
// it was made about.
type AnalysisView struct {
	ID                        int64      `db:"id" json:"id"`
	AccuracyScore             float64    `db:"accuracy_score" json:"accuracy_score"`
	MisrepresentationDetected bool       `db:"misrepresentation_detected" json:"misrepresentation_detected"`
	AnalysisSummary           string     `db:"analysis_summary" json:"analysis_summary"`
	SpecificIssues            StringList `db:"specific_issues" json:"specific_issues"`
	Confidence                float64    `db:"confidence" json:"confidence"`
	Degraded                  bool       `db:"degraded" json:"degraded"`
	AnalyzedAt                time.Time  `db:"analyzed_at" json:"analyzed_at"`
	QuestionText              string     `db:"question_text" json:"question_text"`
	WebsiteName               string     `db:"website_name" json:"website_name"`
	WebsiteURL                string     `db:"website_url" json:"website_url"`
	ContentTitle              string     `db:"content_title" json:"content_title"`
	ResponseText              string     `db:"response_text" json:"response_text"`
	LLMService                string     `db:"llm_service" json:"llm_service"`
}

type WebsiteMisrepresentations struct {
	WebsiteName          string `db:"website_name" json:"website_name"`
	WebsiteURL           string `db:"website_url" json:"website_url"`
	MisrepresentationCnt int    `db:"misrepresentation_count" json:"misrepresentation_count"`
}

type MisrepresentationSummary struct {
	TotalMisrepresentations int                         `json:"total_misrepresentations"`
	ByWebsite               []WebsiteMisrepresentations `json:"by_website"`
	RecentMisrepresentation []AnalysisView              `json:"recent_misrepresentations"`
}

type DashboardStats struct {
	ActiveWebsites          int     `json:"active_websites"`
	TotalAnalyses           int     `json:"total_analyses"`
	TotalMisrepresentations int     `json:"total_misrepresentations"`
	RecentActivity24h       int     `json:"recent_activity_24h"`
	AverageAccuracy         float64 `json:"average_accuracy"`
	MisrepresentationRate   float64 `json:"misrepresentation_rate"`
}

func scanJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
