package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerline/payroll-compliance-backend/internal/api/rest"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/cache"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/config"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/telemetry"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
	breachsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/breach"
	consentsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/consent"
	dsarsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/dsar"
	hmrcsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/hmrc"
	retentionsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/retention"
	scsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/specialcategory"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceName:    "payroll-compliance-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.TracingEnabled,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	var store docstore.Store
	if cfg.Database.URL != "" {
		pg, err := docstore.NewPostgres(ctx, docstore.PostgresConfig{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting document store: %w", err)
		}
		store = pg
	} else {
		logger.Warn("no database URL configured, using in-memory document store")
		store = docstore.NewMemory()
	}
	defer store.Close()

	var decisionCache *cache.ConsentDecisionCache
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		defer redisClient.Close()
		decisionCache = cache.NewConsentDecisionCache(redisClient, cfg.Compliance.ConsentCacheTTL)
	} else {
		logger.Warn("no redis URL configured, consent decisions will not be cached")
	}

	auditor := auditsvc.NewService(store, logger, cfg.Compliance.AuditRetentionDays)
	consents := consentsvc.NewService(store, auditor, decisionCache, logger)
	hmrcClient := hmrcsvc.NewHTTPClient(cfg.HMRC.BaseURL, cfg.HMRC.Timeout, logger)

	handler := rest.NewHandler(rest.Services{
		Audit:           auditor,
		Consent:         consents,
		Retention:       retentionsvc.NewService(store, auditor, logger),
		Breach:          breachsvc.NewService(store, auditor, logger),
		DSAR:            dsarsvc.NewService(store, auditor, logger),
		SpecialCategory: scsvc.NewService(store, auditor, logger),
		HMRC:            hmrcsvc.NewService(store, hmrcClient, consents, auditor, logger),
	}, cfg, logger)

	server := rest.NewServer(&cfg.Server, handler.Routes(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
