// BearMemori gateway — chat platform webhook, pending-action state machine,
// and notify-stream delivery.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/coreclient"
	"github.com/jhyoong/bearmemori/pkg/gateway"
	"github.com/jhyoong/bearmemori/pkg/streams"
	"github.com/jhyoong/bearmemori/pkg/version"
)

func resolveConsumerName() string {
	if name := os.Getenv("CONSUMER_NAME"); name != "" {
		return name
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

// webhookUpdate is the inbound chat platform update shape we consume.
type webhookUpdate struct {
	Message struct {
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.LoadGatewayConfig(resolveConsumerName())
	httpPort := config.GetEnv("GATEWAY_HTTP_PORT", "8081")
	assistantURL := config.GetEnv("ASSISTANT_URL", "http://localhost:8082")

	slog.Info("Starting gateway",
		"version", version.Full(),
		"http_port", httpPort,
		"consumer_group", cfg.ConsumerGroup,
		"consumer_name", cfg.ConsumerName)

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

	bot := gateway.NewBot(cfg.BotAPIBase, cfg.BotToken)
	if bot == nil {
		slog.Warn("BOT_TOKEN not set, outbound delivery disabled")
	}

	core := coreclient.New(cfg.CoreURL)
	state := gateway.NewStateStore(broker.Redis(), cfg.PendingActionTTL)
	router := gateway.NewRouter(&cfg, core, state, gateway.NewAssistantClient(assistantURL))

	notifier := gateway.NewNotifier(&cfg, broker, bot)
	if err := notifier.Start(ctx); err != nil {
		slog.Error("Failed to start notifier", "error", err)
		os.Exit(1)
	}
	defer notifier.Stop()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.POST("/webhook", func(c *gin.Context) {
		var update webhookUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		userID := update.Message.From.ID
		reply := router.HandleMessage(c.Request.Context(), userID, update.Message.Text)
		if reply != "" {
			chatID := update.Message.Chat.ID
			if chatID == 0 {
				chatID = userID
			}
			if err := bot.SendMessage(c.Request.Context(), chatID, reply); err != nil {
				slog.Error("Failed to send reply", "user_id", userID, "error", err)
			}
		}
		c.Status(http.StatusOK)
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
	slog.Info("Gateway stopped")
}
