package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/urlutil"
	"github.com/llm-monitor/backend/pkg/logger"
)

const (
	websiteKey  = "validated_website"
	questionKey = "validated_question"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxNameLength        int
	MaxDescriptionLength int
	MaxQuestionLength    int
}

func (c *Config) setDefaults() {
	if c.MaxNameLength == 0 {
		c.MaxNameLength = 200
	}
	if c.MaxDescriptionLength == 0 {
		c.MaxDescriptionLength = 2000
	}
	if c.MaxQuestionLength == 0 {
		c.MaxQuestionLength = 1000
	}
}

type WebsiteRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type QuestionRequest struct {
	WebsiteID    int64  `json:"website_id"`
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
}

// ContentType rejects write requests whose body is not JSON.
func ContentType() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
			ct := c.Get(fiber.HeaderContentType)
			if len(c.Body()) > 0 && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}
		return c.Next()
	}
}

// Website validates a website payload and stores it for the handler.
func Website(cfg Config) fiber.Handler {
	cfg.setDefaults()
	return func(c *fiber.Ctx) error {
		var req WebsiteRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		req.URL = sanitize(req.URL)
		req.Name = sanitize(req.Name)
		req.Description = sanitize(req.Description)

		if req.URL == "" || req.Name == "" {
			return badRequest(c, "url and name are required")
		}
		if _, err := urlutil.Canonicalize(req.URL); err != nil {
			return badRequest(c, "Invalid URL format")
		}
		if len(req.Name) > cfg.MaxNameLength {
			return badRequest(c, "name exceeds maximum length")
		}
		if len(req.Description) > cfg.MaxDescriptionLength {
			return badRequest(c, "description exceeds maximum length")
		}
		if containsXSS(req.Name) || containsXSS(req.Description) {
			logger.Warn("Potential XSS attempt", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return badRequest(c, "Invalid website content")
		}

		c.Locals(websiteKey, req)
		return c.Next()
	}
}

// Question validates a manual question payload and stores it for the handler.
func Question(cfg Config) fiber.Handler {
	cfg.setDefaults()
	return func(c *fiber.Ctx) error {
		var req QuestionRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		req.QuestionText = sanitize(req.QuestionText)
		req.Category = sanitize(req.Category)

		if req.WebsiteID <= 0 {
			return badRequest(c, "website_id must be a positive integer")
		}
		if req.QuestionText == "" {
			return badRequest(c, "question_text is required")
		}
		if len(req.QuestionText) > cfg.MaxQuestionLength {
			return badRequest(c, "question_text exceeds maximum length")
		}
		if containsXSS(req.QuestionText) || containsXSS(req.Category) {
			logger.Warn("Potential XSS attempt", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return badRequest(c, "Invalid question content")
		}

		c.Locals(questionKey, req)
		return c.Next()
	}
}

// WebsiteFrom returns the payload stored by Website, parsing the body if the
// middleware did not run.
func WebsiteFrom(c *fiber.Ctx) (WebsiteRequest, error) {
	if req, ok := c.Locals(websiteKey).(WebsiteRequest); ok {
		return req, nil
	}
	var req WebsiteRequest
	err := c.BodyParser(&req)
	return req, err
}

func QuestionFrom(c *fiber.Ctx) (QuestionRequest, error) {
	if req, ok := c.Locals(questionKey).(QuestionRequest); ok {
		return req, nil
	}
	var req QuestionRequest
	err := c.BodyParser(&req)
	return req, err
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func sanitize(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}
