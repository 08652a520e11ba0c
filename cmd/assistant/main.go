// BearMemori assistant — the conversational agent service: chat endpoint,
// summarization, tool loop, and the daily digest scheduler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jhyoong/bearmemori/pkg/agent"
	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/coreclient"
	"github.com/jhyoong/bearmemori/pkg/gateway"
	"github.com/jhyoong/bearmemori/pkg/llm"
	"github.com/jhyoong/bearmemori/pkg/streams"
	"github.com/jhyoong/bearmemori/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.LoadAssistantConfig()
	httpPort := config.GetEnv("ASSISTANT_HTTP_PORT", "8082")

	slog.Info("Starting assistant",
		"version", version.Full(),
		"http_port", httpPort,
		"context_window", cfg.ContextWindow,
		"users", len(cfg.AllowedUserIDs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := streams.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			slog.Error("Error closing session store", "error", err)
		}
	}()

	core := coreclient.New(cfg.CoreURL)
	model := llm.NewClient(&cfg.LLM)
	counter := agent.NewTokenCounter()
	history := agent.NewHistoryStore(broker.Redis(), cfg.HistoryTTL, cfg.SummaryTTL)
	briefing := agent.NewBriefingBuilder(core, history, counter, cfg.BriefingBudget)
	tools := agent.NewToolRegistry(core)
	a := agent.New(&cfg, model, history, briefing, tools, counter)

	bot := gateway.NewBot(
		config.GetEnv("BOT_API_BASE", "https://api.telegram.org"),
		config.GetEnv("BOT_TOKEN", ""))
	if bot == nil {
		slog.Warn("BOT_TOKEN not set, daily digests disabled")
	} else {
		digest := agent.NewDigestScheduler(&cfg, core, briefing, bot, broker.Redis())
		digest.Start(ctx)
		defer digest.Stop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.POST("/message", func(c *gin.Context) {
		var req struct {
			UserID int64  `json:"user_id"`
			Text   string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and text are required"})
			return
		}
		if len(cfg.AllowedUserIDs) > 0 && !slices.Contains(cfg.AllowedUserIDs, req.UserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "unknown user"})
			return
		}
		reply := a.Message(c.Request.Context(), req.UserID, req.Text)
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full()})
	})

	httpServer := &http.Server{Addr: ":" + httpPort, Handler: engine}
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

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	slog.Info("Assistant stopped")
}
