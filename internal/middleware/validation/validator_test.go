package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(ContentType())
	app.Post("/websites", Website(Config{MaxNameLength: 10}), func(c *fiber.Ctx) error {
		req, err := WebsiteFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(req)
	})
	app.Post("/questions", Question(Config{}), func(c *fiber.Ctx) error {
		req, err := QuestionFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(req)
	})
	return app
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{name: "valid website", path: "/websites", body: `{"url":"https://a.gov","name":" A "}`, want: 200},
		{name: "website without scheme", path: "/websites", body: `{"url":"a.gov","name":"A"}`, want: 200},
		{name: "missing name", path: "/websites", body: `{"url":"https://a.gov"}`, want: 400},
		{name: "bad scheme", path: "/websites", body: `{"url":"ftp://a.gov","name":"A"}`, want: 400},
		{name: "long name", path: "/websites", body: `{"url":"https://a.gov","name":"Agency of Things"}`, want: 400},
		{name: "script in description", path: "/websites", body: `{"url":"https://a.gov","name":"A","description":"<script>x</script>"}`, want: 400},
		{name: "malformed json", path: "/websites", body: `{"url":`, want: 400},
		{name: "form body", path: "/websites", contentType: "text/plain", body: `url=x`, want: 415},
		{name: "valid question", path: "/questions", body: `{"website_id":1,"question_text":"Who leads it?"}`, want: 200},
		{name: "question without site", path: "/questions", body: `{"question_text":"Who leads it?"}`, want: 400},
		{name: "empty question", path: "/questions", body: `{"website_id":1,"question_text":"  "}`, want: 400},
		{name: "question naming sql words", path: "/questions", body: `{"website_id":1,"question_text":"When did it select and create its board?"}`, want: 200},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			ct := tt.contentType
			if ct == "" {
				ct = fiber.MIMEApplicationJSON
			}
			req.Header.Set("Content-Type", ct)

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
