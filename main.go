package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"poll-reader/config"
	"poll-reader/models"
	"poll-reader/scraper/web"
	"poll-reader/services"
	"poll-reader/storage"
	"poll-reader/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger().WithLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	logger.Info("=== Poll Reader starting ===")

	lines, err := loadLines(ctx, cfg, logger)
	if err != nil {
		return err
	}

	table, err := services.NewParser(logger).Parse(lines)
	if err != nil {
		return fmt.Errorf("load polls: %w", err)
	}
	logger.Info("Loaded %d polls", table.Len())

	if cfg.PersistPostgres {
		table = persist(cfg, logger, table)
	}

	svc := services.NewPollService(logger)
	report, queryErr := svc.Generate(table)
	if queryErr != nil {
		for _, e := range unjoin(queryErr) {
			logger.Warn("[polls] %v", e)
		}
	}
	svc.Print(report)

	if cfg.ReportPath != "" {
		if err := writeReport(cfg.ReportPath, report); err != nil {
			return err
		}
		logger.Info("Report saved to %s", cfg.ReportPath)
	}
	return nil
}

func loadLines(ctx context.Context, cfg *config.Config, logger *utils.Logger) ([]string, error) {
	if len(cfg.SourceURLs) > 0 {
		lines, err := web.New(cfg, logger).Scrape(ctx, cfg.SourceURLs)
		if err != nil {
			return nil, fmt.Errorf("scrape polls: %w", err)
		}
		return lines, nil
	}

	logger.Info("Reading polls from %s (base dir %s)", cfg.CSVFile, cfg.DataDir)
	lines, err := storage.ReadLines(cfg.DataDir, cfg.CSVFile)
	if err != nil {
		return nil, fmt.Errorf("read polls: %w", err)
	}
	return lines, nil
}

// persist stores the table in PostgreSQL and reloads it from there. On any
// database failure the in-memory table is used.
func persist(cfg *config.Config, logger *utils.Logger, table *models.PollTable) *models.PollTable {
	pg, err := storage.NewPostgresWriter(cfg.DSN(), cfg.MaxRetries)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return table
	}
	defer pg.Close()

	if err := pg.Write(table); err != nil {
		logger.Error("PostgreSQL write failed: %v", err)
		return table
	}
	logger.Info("Stored %d polls in PostgreSQL (table: polls)", table.Len())

	stored, err := pg.FetchAll()
	if err != nil {
		logger.Error("Failed to fetch polls from DB: %v", err)
		return table
	}
	return stored
}

func writeReport(path string, report *models.PollReport) error {
	w, err := storage.NewReportWriter(path)
	if err != nil {
		return fmt.Errorf("report writer: %w", err)
	}
	if err := w.WriteReport(report); err != nil {
		_ = w.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return w.Close()
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
