package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/metrics"
	"github.com/llm-monitor/backend/pkg/circuitbreaker"
	"github.com/llm-monitor/backend/pkg/logger"
	"github.com/llm-monitor/backend/pkg/retry"
	"github.com/llm-monitor/backend/pkg/utils"
)

const (
	questionContentRunes = 2000
	analysisContentRunes = 3000
	connectionReply      = "connection successful"
)

var ErrEmptyCompletion = errors.New("completion returned no choices")

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
}

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.Breaker
	policy      retry.Policy
}

type CompletionRequest struct {
	Purpose      string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the model's reply to a monitoring question.
type Answer struct {
	Text  string
	Model string
	Usage Usage
}

// AccuracyAnalysis is the judge model's verdict on an answer. Degraded is set
// when the verdict could not be parsed and heuristic defaults were used.
type AccuracyAnalysis struct {
	AccuracyScore             float64  `json:"accuracy_score"`
	MisrepresentationDetected bool     `json:"misrepresentation_detected"`
	Summary                   string   `json:"analysis_summary"`
	SpecificIssues            []string `json:"specific_issues"`
	Confidence                float64  `json:"confidence"`
	RawAnalysis               string   `json:"raw_analysis"`
	Degraded                  bool     `json:"degraded"`
}

func NewClient(cfg Config) *Client {
	oaConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oaConfig.HTTPClient = cfg.HTTPClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		Logger:           logger.GetLogger(),
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
		},
	})

	policy := retry.Once()
	if cfg.MaxAttempts > 1 {
		policy = retry.Backoff(cfg.MaxAttempts)
	}
	policy.Retryable = isTransient
	policy.Logger = logger.GetLogger()

	logger.Info("LLM client initialized",
		zap.String("base_url", oaConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.Int("max_attempts", policy.MaxAttempts),
	)

	return &Client{
		client:      openai.NewClientWithConfig(oaConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		cb:          cb,
		policy:      policy,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	var result *CompletionResponse
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.policy, func(ctx context.Context) error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return ErrEmptyCompletion
			}

			model := resp.Model
			if model == "" {
				model = c.model
			}
			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Model:   model,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})

	purpose := req.Purpose
	if purpose == "" {
		purpose = "completion"
	}
	if err != nil {
		metrics.LLMRequests.WithLabelValues(purpose, "error").Inc()
		return nil, err
	}

	metrics.LLMRequests.WithLabelValues(purpose, "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(result.Model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(result.Model, "completion").Add(float64(result.Usage.CompletionTokens))

	logger.Debug("LLM completion generated",
		zap.String("purpose", purpose),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
	)

	return result, nil
}

// GenerateQuestions asks the model for up to count factual questions about a
// page. Only lines ending in "?" are kept. If the backend call itself fails,
// generic questions about the subject are returned instead.
func (c *Client) GenerateQuestions(ctx context.Context, content, subject string, count int) []string {
	if count <= 0 {
		return []string{}
	}

	prompt := fmt.Sprintf(`Based on the following content from the government website "%s", generate %d specific, factual questions that would test whether an LLM accurately represents the information on this website.

Website Content: %s

Generate questions that:
1. Ask about specific facts, policies, or statements mentioned on the website
2. Could reveal misrepresentations if answered incorrectly
3. Are clear and specific
4. Cover different aspects of the content

Return only the questions, one per line, numbered 1-%d.`, subject, count, utils.Truncate(content, questionContentRunes), count)

	resp, err := c.Complete(ctx, CompletionRequest{
		Purpose:     "generate_questions",
		UserPrompt:  prompt,
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		logger.Warn("Question generation failed, using template questions",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return templateQuestions(subject, count)
	}

	questions := parseQuestions(resp.Content, count)
	logger.Info("Questions generated", zap.String("subject", subject), zap.Int("count", len(questions)))
	return questions
}

func (c *Client) AskQuestion(ctx context.Context, question string) (*Answer, error) {
	prompt := fmt.Sprintf(`You are being asked about a governmental organization. Please provide accurate information based on your knowledge.

Question: %s

Please provide a clear, factual response.`, question)

	resp, err := c.Complete(ctx, CompletionRequest{
		Purpose:     "answer",
		UserPrompt:  prompt,
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query llm: %w", err)
	}

	return &Answer{Text: resp.Content, Model: resp.Model, Usage: resp.Usage}, nil
}

// AnalyzeAccuracy asks the model to judge an answer against the page text.
// Unparseable verdicts produce a degraded analysis rather than an error; only
// a failed backend call is returned as an error.
func (c *Client) AnalyzeAccuracy(ctx context.Context, answer, sourceContent, question string) (*AccuracyAnalysis, error) {
	prompt := fmt.Sprintf(`You are an expert fact-checker analyzing whether an LLM's response accurately represents information from an official government website.

QUESTION ASKED: %s

LLM'S RESPONSE: %s

ACTUAL WEBSITE CONTENT: %s

Please analyze:
1. Is the LLM's response factually accurate based on the website content?
2. Are there any misrepresentations, omissions, or inaccuracies?
3. Rate the accuracy on a scale of 0.0 to 1.0 (where 1.0 is perfectly accurate)
4. Is there evidence of misrepresentation? (Yes/No)

Provide your analysis in the following JSON format:
{
    "accuracy_score": 0.85,
    "misrepresentation_detected": false,
    "analysis_summary": "Brief summary of your analysis",
    "specific_issues": ["List any specific issues found"],
    "confidence": 0.9
}`, question, answer, utils.Truncate(sourceContent, analysisContentRunes))

	resp, err := c.Complete(ctx, CompletionRequest{
		Purpose:     "analyze_accuracy",
		UserPrompt:  prompt,
		Temperature: 0.1,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze accuracy: %w", err)
	}

	analysis := parseAccuracyAnalysis(resp.Content)
	if analysis.Degraded {
		logger.Warn("Failed to parse accuracy analysis, using fallback", zap.String("question", question))
	}
	logger.Info("Accuracy analysis completed",
		zap.Float64("accuracy_score", analysis.AccuracyScore),
		zap.Bool("misrepresentation_detected", analysis.MisrepresentationDetected),
	)
	return analysis, nil
}

func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.Complete(ctx, CompletionRequest{
		Purpose:    "connection_test",
		UserPrompt: "Hello, please respond with 'Connection successful'",
		MaxTokens:  50,
	})
	if err != nil {
		logger.Warn("LLM connection test failed", zap.Error(err))
		return false
	}
	ok := strings.Contains(strings.ToLower(resp.Content), connectionReply)
	logger.Info("LLM connection test", zap.Bool("success", ok))
	return ok
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}

// isTransient reports whether an API failure is worth another attempt:
// rate limiting, server errors and transport failures.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, ErrEmptyCompletion)
}

func templateQuestions(subject string, count int) []string {
	questions := []string{
		fmt.Sprintf("What is the main purpose of %s?", subject),
		fmt.Sprintf("What services does %s provide?", subject),
		fmt.Sprintf("Who is the current leadership of %s?", subject),
		fmt.Sprintf("What are the key policies mentioned on %s?", subject),
		fmt.Sprintf("How can citizens contact %s?", subject),
	}
	if count < len(questions) {
		questions = questions[:count]
	}
	return questions
}
