package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Scraper    ScraperConfig
	Monitoring MonitoringConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	StatsTTLSec int
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	ServiceName string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
	MaxAttempts int
}

type ScraperConfig struct {
	TimeoutSec      int
	ProbeTimeoutSec int
	MaxContentChars int
	MaxLinks        int
	UserAgent       string
}

type MonitoringConfig struct {
	QuestionsPerSite  int
	QuestionDelayMs   int
	AutoScheduleHours int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c ScraperConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

func (c MonitoringConfig) QuestionDelay() time.Duration {
	return time.Duration(c.QuestionDelayMs) * time.Millisecond
}

func (c RedisConfig) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLSec) * time.Second
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/llm-monitor")

	v.SetEnvPrefix("LLM_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Monitoring.QuestionsPerSite <= 0 {
		return fmt.Errorf("monitoring.questionsPerSite must be positive, got %d", c.Monitoring.QuestionsPerSite)
	}
	if c.Monitoring.QuestionDelayMs < 0 {
		return fmt.Errorf("monitoring.questionDelayMs must not be negative, got %d", c.Monitoring.QuestionDelayMs)
	}
	if c.Scraper.MaxContentChars <= 0 {
		return fmt.Errorf("scraper.maxContentChars must be positive, got %d", c.Scraper.MaxContentChars)
	}
	if c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("llm.maxAttempts must be positive, got %d", c.LLM.MaxAttempts)
	}
	return nil
}

// bindLegacyEnv keeps the variable names the deployment scripts already use.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.baseURL":   {"LLM_MONITOR_LLM_BASEURL", "LITELLM_BASE_URL"},
		"llm.apiKey":    {"LLM_MONITOR_LLM_APIKEY", "LITELLM_API_KEY"},
		"llm.model":     {"LLM_MONITOR_LLM_MODEL", "LITELLM_MODEL"},
		"server.host":   {"LLM_MONITOR_SERVER_HOST", "HOST"},
		"server.port":   {"LLM_MONITOR_SERVER_PORT", "PORT"},
		"sqlite.path":   {"LLM_MONITOR_SQLITE_PATH", "DB_PATH"},
		"logging.level": {"LLM_MONITOR_LOGGING_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		input := append([]string{key}, envs...)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/monitoring.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.statsTTLSec", 60)

	v.SetDefault("llm.provider", "litellm")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.serviceName", "LiteLLM")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 1000)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.maxAttempts", 1)

	v.SetDefault("scraper.timeoutSec", 30)
	v.SetDefault("scraper.probeTimeoutSec", 10)
	v.SetDefault("scraper.maxContentChars", 10000)
	v.SetDefault("scraper.maxLinks", 50)
	v.SetDefault("scraper.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("monitoring.questionsPerSite", 5)
	v.SetDefault("monitoring.questionDelayMs", 1000)
	v.SetDefault("monitoring.autoScheduleHours", 0)

	v.SetDefault("rateLimit.requestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
