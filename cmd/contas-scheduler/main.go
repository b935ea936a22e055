package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"contas/internal/amqp"
	"contas/internal/backend"
	"contas/internal/config"
	"contas/internal/core"
	"contas/internal/log"
	"contas/internal/services"
	"contas/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentScheduler,
	})
	log.SetDefault(logger)

	logger.Info("Starting contas-scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// AMQP is optional; without it realized facts are not mirrored to the
	// external ledger, but rule execution still works.
	var publisher services.LedgerPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 0)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger sync", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized, realized facts will sync to the ledger")
		}
	} else {
		logger.Info("AMQP disabled, realized facts will not sync to the ledger")
	}

	recurring := services.NewRecurringService(result.Store, publisher)
	projections := services.NewProjectionService(result.Store, cfg.ProjectionConfidence)

	logger.Info("Scheduler configured",
		"cron", cfg.SchedulerCron,
		"horizon_months", cfg.ProjectionHorizonMonths,
		"backend", cfg.DataBackend)

	// Run a tick at startup so a restart does not wait for the next cron
	// boundary to catch up on overdue rules.
	runTick(ctx, logger, result.Store, recurring, projections, cfg)

	c := cron.New()
	if _, err := c.AddFunc(cfg.SchedulerCron, func() {
		runTick(ctx, logger, result.Store, recurring, projections, cfg)
	}); err != nil {
		logger.Error("Invalid cron spec", "error", err, "cron", cfg.SchedulerCron)
		os.Exit(1)
	}
	c.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down contas-scheduler...")
	cancel()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("Scheduler shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}

// runTick executes every due rule, then sweeps stale projections and extends
// the projection horizon for each workspace that still has active rules.
func runTick(ctx context.Context, logger *log.Logger, st store.Store,
	recurring *services.RecurringService, projections *services.ProjectionService,
	cfg *config.Config) {

	now := time.Now()

	due, err := recurring.DueRules(ctx, now)
	if err != nil {
		logger.Error("Failed to list due rules", "error", err)
		return
	}

	executed := 0
	for _, rule := range due {
		if _, err := recurring.Execute(ctx, rule.WorkspaceID, rule.ID); err != nil {
			logger.Error("Failed to execute rule",
				log.FieldError, err,
				log.FieldRuleID, rule.ID,
				log.FieldWorkspaceID, rule.WorkspaceID)
			continue
		}
		executed++
	}

	active, err := st.ListActiveRules(ctx)
	if err != nil {
		logger.Error("Failed to list active rules", "error", err)
		return
	}
	workspaces := make(map[string]bool)
	for _, rule := range active {
		workspaces[rule.WorkspaceID] = true
	}

	startPeriod := core.PeriodOf(now)
	endPeriod := startPeriod.Shift(cfg.ProjectionHorizonMonths)

	for ws := range workspaces {
		if _, err := projections.CleanupStale(ctx, ws, now); err != nil {
			logger.Error("Failed to clean up stale projections",
				log.FieldError, err, log.FieldWorkspaceID, ws)
		}
		res, err := projections.Generate(ctx, ws, startPeriod, endPeriod, false, cfg.ProjectionConfidence)
		if err != nil {
			logger.Error("Failed to generate projections",
				log.FieldError, err, log.FieldWorkspaceID, ws)
			continue
		}
		if res.GeneratedCount > 0 {
			logger.Info("Extended projection horizon",
				log.FieldWorkspaceID, ws,
				log.FieldCount, res.GeneratedCount,
				log.FieldPeriod, endPeriod)
		}
	}

	logger.Info("Scheduler tick complete",
		"due_rules", len(due),
		"executed", executed,
		"workspaces", len(workspaces),
		log.FieldDuration, time.Since(now).Milliseconds())
}
