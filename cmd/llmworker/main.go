// BearMemori LLM worker — consumes job streams, invokes the model, and
// reports outcomes back to core.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/coreclient"
	"github.com/jhyoong/bearmemori/pkg/llm"
	"github.com/jhyoong/bearmemori/pkg/streams"
	"github.com/jhyoong/bearmemori/pkg/version"
	"github.com/jhyoong/bearmemori/pkg/worker"
)

// resolveConsumerName determines this replica's stable consumer name.
// Priority: CONSUMER_NAME env > HOSTNAME env > "local".
func resolveConsumerName() string {
	if name := os.Getenv("CONSUMER_NAME"); name != "" {
		return name
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.LoadWorkerConfig(resolveConsumerName())
	slog.Info("Starting LLM worker",
		"version", version.Full(),
		"consumer_group", cfg.ConsumerGroup,
		"consumer_name", cfg.ConsumerName,
		"model", cfg.LLM.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	core := coreclient.New(cfg.CoreURL)
	model := llm.NewClient(&cfg.LLM)

	w := worker.New(&cfg, broker, core)
	worker.NewHandlers(model, core, cfg.MediaDir).RegisterAll(w)
	if err := w.Start(ctx); err != nil {
		slog.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Received shutdown signal", "signal", sig)

	cancel()
	w.Stop()
	slog.Info("LLM worker stopped")
}
