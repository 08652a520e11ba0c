// BearMemori core server — REST API over the store, stream publishing, and
// the housekeeping scheduler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jhyoong/bearmemori/pkg/api"
	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/scheduler"
	"github.com/jhyoong/bearmemori/pkg/services"
	"github.com/jhyoong/bearmemori/pkg/streams"
	"github.com/jhyoong/bearmemori/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.LoadCoreConfig()
	slog.Info("Starting core service",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"database_path", cfg.DatabasePath)

	ctx := context.Background()

	dbClient, err := database.NewClient(ctx, cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}()

	broker, err := streams.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			slog.Error("Error closing broker", "error", err)
		}
	}()

	svc := api.Services{
		Memories:  services.NewMemoryService(dbClient, cfg.Scheduler.PendingMemoryTTL),
		Tags:      services.NewTagService(dbClient),
		Tasks:     services.NewTaskService(dbClient),
		Reminders: services.NewReminderService(dbClient, broker),
		Events:    services.NewEventService(dbClient, broker),
		Settings:  services.NewSettingsService(dbClient),
		Jobs:      services.NewJobService(dbClient, broker),
		Backups:   services.NewBackupService(dbClient),
		Search:    services.NewSearchService(dbClient),
		Audit:     services.NewAuditService(dbClient),
	}
	slog.Info("Services initialized")

	sched := scheduler.NewService(&cfg.Scheduler, svc.Memories, svc.Tags, svc.Reminders, svc.Events)
	sched.Start(ctx)
	defer sched.Stop()

	server := api.NewServer(dbClient, broker, svc)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	slog.Info("Core service stopped")
}
