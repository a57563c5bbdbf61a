package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/llm-monitor/backend/internal/storage/models"
	"github.com/llm-monitor/backend/internal/urlutil"
	"github.com/llm-monitor/backend/pkg/logger"
)

type Website struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

type Question struct {
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

// File is a seed document: websites to monitor and sample questions that are
// attached to every one of them.
type File struct {
	Websites  []Website  `yaml:"websites"`
	Questions []Question `yaml:"questions"`
}

type Repository interface {
	UpsertWebsite(ctx context.Context, url, name, description string) (int64, error)
	InsertQuestion(ctx context.Context, websiteID int64, text, category string) (int64, error)
	ListQuestions(ctx context.Context, websiteID int64) ([]models.Question, error)
}

type Report struct {
	WebsitesAdded    int      `json:"websites_added"`
	WebsitesFailed   int      `json:"websites_failed"`
	QuestionsAdded   int      `json:"questions_added"`
	QuestionsSkipped int      `json:"questions_skipped"`
	Errors           []string `json:"errors"`
}

func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", path, err)
	}
	return file, nil
}

func Parse(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	file.normalize()
	return &file, nil
}

func (f *File) validate() error {
	for i, w := range f.Websites {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("websites[%d]: name is required", i)
		}
		if strings.TrimSpace(w.URL) == "" {
			return fmt.Errorf("websites[%d]: url is required", i)
		}
	}
	for i, q := range f.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("questions[%d]: text is required", i)
		}
	}
	return nil
}

func (f *File) normalize() {
	for i := range f.Websites {
		f.Websites[i].Name = strings.TrimSpace(f.Websites[i].Name)
		f.Websites[i].URL = strings.TrimSpace(f.Websites[i].URL)
		f.Websites[i].Description = strings.TrimSpace(f.Websites[i].Description)
	}
	for i := range f.Questions {
		f.Questions[i].Text = strings.TrimSpace(f.Questions[i].Text)
		if strings.TrimSpace(f.Questions[i].Category) == "" {
			f.Questions[i].Category = models.CategorySeeded
		}
	}
}

// Apply upserts each website without probing it and attaches the sample
// questions. Questions a site already has are skipped, so seeding twice is
// harmless.
func Apply(ctx context.Context, repo Repository, file *File) Report {
	report := Report{Errors: []string{}}

	for _, w := range file.Websites {
		canonical, err := urlutil.Canonicalize(w.URL)
		if err != nil {
			report.WebsitesFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("error adding %s: %v", w.Name, err))
			continue
		}

		id, err := repo.UpsertWebsite(ctx, canonical, w.Name, w.Description)
		if err != nil {
			report.WebsitesFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("error adding %s: %v", w.Name, err))
			logger.Warn("Failed to seed website", zap.String("name", w.Name), zap.Error(err))
			continue
		}
		report.WebsitesAdded++
		logger.Info("Seeded website", zap.Int64("website_id", id), zap.String("name", w.Name))

		existing, err := repo.ListQuestions(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("error listing questions for %s: %v", w.Name, err))
			continue
		}
		have := make(map[string]bool, len(existing))
		for _, q := range existing {
			have[q.QuestionText] = true
		}

		for _, q := range file.Questions {
			if have[q.Text] {
				report.QuestionsSkipped++
				continue
			}
			if _, err := repo.InsertQuestion(ctx, id, q.Text, q.Category); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("error adding question for %s: %v", w.Name, err))
				continue
			}
			have[q.Text] = true
			report.QuestionsAdded++
		}
	}

	logger.Info("Seeding complete",
		zap.Int("websites_added", report.WebsitesAdded),
		zap.Int("websites_total", len(file.Websites)),
		zap.Int("questions_added", report.QuestionsAdded),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}
