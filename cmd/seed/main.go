package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/seed"
	"github.com/llm-monitor/backend/internal/storage/sqlite"
	"github.com/llm-monitor/backend/pkg/config"
	appLogger "github.com/llm-monitor/backend/pkg/logger"
)

func main() {
	file := flag.String("file", "seeds/federal_reserve.yaml", "seed file to load")
	dbPath := flag.String("db", "", "sqlite database path (defaults to sqlite.path from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, "console", cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	path := cfg.SQLite.Path
	if *dbPath != "" {
		path = *dbPath
	}

	err = run(path, *file)
	appLogger.Sync()
	if err != nil {
		fmt.Printf("Seeding failed: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, file string) error {
	client, err := sqlite.NewClient(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer client.Close()

	if err := client.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	data, err := seed.LoadFile(file)
	if err != nil {
		return err
	}

	report := seed.Apply(context.Background(), client, data)
	for _, e := range report.Errors {
		appLogger.Warn("Seed error", zap.String("error", e))
	}

	fmt.Printf("Seeding complete: %d/%d websites added, %d questions added, %d already present\n",
		report.WebsitesAdded, len(data.Websites), report.QuestionsAdded, report.QuestionsSkipped)

	if report.WebsitesFailed > 0 {
		return fmt.Errorf("%d websites failed", report.WebsitesFailed)
	}
	return nil
}
