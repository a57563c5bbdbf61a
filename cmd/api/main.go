package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/api/handlers"
	"github.com/llm-monitor/backend/internal/cache/redis"
	"github.com/llm-monitor/backend/internal/llm"
	"github.com/llm-monitor/backend/internal/metrics"
	"github.com/llm-monitor/backend/internal/middleware/ratelimit"
	"github.com/llm-monitor/backend/internal/middleware/security"
	"github.com/llm-monitor/backend/internal/monitoring"
	"github.com/llm-monitor/backend/internal/scraper/web"
	"github.com/llm-monitor/backend/internal/storage/sqlite"
	"github.com/llm-monitor/backend/pkg/config"
	appLogger "github.com/llm-monitor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting LLM Monitoring API Server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var statsCache handlers.StatsCache
	var invalidator monitoring.StatsInvalidator
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.StatsTTL(),
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, serving stats uncached", zap.Error(err))
		} else {
			defer redisClient.Close()
			statsCache = redisClient
			invalidator = redisClient
		}
	}

	scraper := web.NewClient(web.Options{
		Timeout:         cfg.Scraper.Timeout(),
		ProbeTimeout:    cfg.Scraper.ProbeTimeout(),
		UserAgent:       cfg.Scraper.UserAgent,
		MaxContentChars: cfg.Scraper.MaxContentChars,
		MaxLinks:        cfg.Scraper.MaxLinks,
		ObserveDuration: func(d time.Duration) {
			metrics.ScrapeDuration.Observe(d.Seconds())
		},
	})

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
		MaxAttempts: cfg.LLM.MaxAttempts,
	})

	events := monitoring.NewBroadcaster(256)
	monitor := monitoring.NewMonitor(sqliteClient, scraper, llmClient, nil, monitoring.Options{
		QuestionsPerSite: cfg.Monitoring.QuestionsPerSite,
		QuestionDelay:    cfg.Monitoring.QuestionDelay(),
		LLMService:       cfg.LLM.ServiceName,
		Events:           events,
		Cache:            invalidator,
	})
	scheduler := monitoring.NewScheduler(monitor, sqliteClient, monitor.Ledger())

	if cfg.Monitoring.AutoScheduleHours > 0 {
		interval := time.Duration(cfg.Monitoring.AutoScheduleHours) * time.Hour
		if err := scheduler.Start(interval); err != nil {
			appLogger.Fatal("Failed to start scheduled monitoring", zap.Error(err))
		}
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	runs := handlers.Register(app, handlers.Dependencies{
		Monitor:   monitor,
		Scheduler: scheduler,
		Store:     sqliteClient,
		Links:     scraper,
		Cache:     statsCache,
		Events:    events,
		RateLimit: limiter.Middleware(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	scheduler.Stop()
	if err := app.Shutdown(); err != nil {
		appLogger.Warn("Server shutdown error", zap.Error(err))
	}
	// let in-flight batches close their sessions
	runs.Wait()
	scheduler.Wait()
	appLogger.Info("Server stopped")
}
