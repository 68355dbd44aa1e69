package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/config"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/telemetry"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
	retentionsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/retention"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	if len(cfg.Sweeper.Companies) == 0 {
		return fmt.Errorf("no companies configured for sweeping (PCB_SWEEPER_COMPANIES)")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("a database URL is required for sweeping")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := docstore.NewPostgres(ctx, docstore.PostgresConfig{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting document store: %w", err)
	}
	defer store.Close()

	auditor := auditsvc.NewService(store, logger, cfg.Compliance.AuditRetentionDays)
	retainer := retentionsvc.NewService(store, auditor, logger)

	logger.Info("sweeper started",
		zap.Duration("interval", cfg.Sweeper.Interval),
		zap.Int("companies", len(cfg.Sweeper.Companies)))

	// Sweep once on startup, then on every tick
	sweep(ctx, cfg.Sweeper.Companies, retainer, auditor, logger)

	ticker := time.NewTicker(cfg.Sweeper.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return nil
		case <-ticker.C:
			sweep(ctx, cfg.Sweeper.Companies, retainer, auditor, logger)
		}
	}
}

// sweep runs the retention cleanup and audit expiry for each company. One
// company's failure never stops the others.
func sweep(ctx context.Context, companies []string, retainer *retentionsvc.Service, auditor *auditsvc.Service, logger *zap.Logger) {
	for _, companyID := range companies {
		if ctx.Err() != nil {
			return
		}

		result, err := retainer.RunCleanup(ctx, companyID)
		if err != nil {
			logger.Error("retention cleanup failed",
				zap.String("company_id", companyID), zap.Error(err))
		} else {
			logger.Info("retention cleanup completed",
				zap.String("company_id", companyID),
				zap.Int("processed", result.Processed),
				zap.Int("archived", result.Archived),
				zap.Int("deleted", result.Deleted),
				zap.Int("anonymized", result.Anonymized),
				zap.Int("skipped", result.Skipped))
		}

		auditResult, err := auditor.CleanupExpiredLogs(ctx, companyID)
		if err != nil {
			logger.Error("audit cleanup failed",
				zap.String("company_id", companyID), zap.Error(err))
		} else {
			logger.Info("audit cleanup completed",
				zap.String("company_id", companyID),
				zap.Int("scanned", auditResult.Scanned),
				zap.Int("deleted", auditResult.Deleted),
				zap.Int("failed", auditResult.Failed))
		}
	}
}
