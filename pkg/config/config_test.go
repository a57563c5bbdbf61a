package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Monitoring.QuestionsPerSite != 5 {
		t.Errorf("expected 5 questions per site, got %d", cfg.Monitoring.QuestionsPerSite)
	}
	if cfg.Monitoring.QuestionDelay() != time.Second {
		t.Errorf("expected 1s question delay, got %s", cfg.Monitoring.QuestionDelay())
	}
	if cfg.Scraper.MaxContentChars != 10000 {
		t.Errorf("expected 10000 max content chars, got %d", cfg.Scraper.MaxContentChars)
	}
	if cfg.LLM.MaxAttempts != 1 {
		t.Errorf("expected a single LLM attempt by default, got %d", cfg.LLM.MaxAttempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	t.Setenv("LITELLM_BASE_URL", "http://litellm.internal:4000")
	t.Setenv("LLM_MONITOR_MONITORING_QUESTIONSPERSITE", "3")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.BaseURL != "http://litellm.internal:4000" {
		t.Errorf("expected legacy base URL binding, got %q", cfg.LLM.BaseURL)
	}
	if cfg.Monitoring.QuestionsPerSite != 3 {
		t.Errorf("expected 3 questions per site, got %d", cfg.Monitoring.QuestionsPerSite)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero questions", func(c *Config) { c.Monitoring.QuestionsPerSite = 0 }, true},
		{"negative delay", func(c *Config) { c.Monitoring.QuestionDelayMs = -1 }, true},
		{"zero content cap", func(c *Config) { c.Scraper.MaxContentChars = 0 }, true},
		{"zero attempts", func(c *Config) { c.LLM.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LLM:        LLMConfig{MaxAttempts: 1},
				Scraper:    ScraperConfig{MaxContentChars: 10000},
				Monitoring: MonitoringConfig{QuestionsPerSite: 5, QuestionDelayMs: 1000},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
