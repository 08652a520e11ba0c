package config

import "time"

// GatewayConfig configures the chat gateway service.
type GatewayConfig struct {
	// RedisURL is the stream broker and pending-action state store.
	RedisURL string

	// CoreURL is the base URL of the core REST service.
	CoreURL string

	// BotToken authenticates against the chat platform API.
	BotToken string

	// BotAPIBase is the chat platform API base URL.
	BotAPIBase string

	// AllowedUserIDs restricts who the gateway serves.
	AllowedUserIDs []int64

	// ConsumerGroup is the notify-stream consumer group.
	ConsumerGroup string

	// ConsumerName is this replica's stable consumer name.
	ConsumerName string

	// PendingActionTTL expires abandoned pending-action state.
	PendingActionTTL time.Duration
}

// LoadGatewayConfig reads the gateway configuration from the environment.
func LoadGatewayConfig(consumerName string) GatewayConfig {
	return GatewayConfig{
		RedisURL:         GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		CoreURL:          GetEnv("CORE_URL", "http://localhost:8080"),
		BotToken:         GetEnv("BOT_TOKEN", ""),
		BotAPIBase:       GetEnv("BOT_API_BASE", "https://api.telegram.org"),
		AllowedUserIDs:   GetEnvUserIDs("ALLOWED_USER_IDS"),
		ConsumerGroup:    GetEnv("NOTIFY_CONSUMER_GROUP", "gateway"),
		ConsumerName:     GetEnv("CONSUMER_NAME", consumerName),
		PendingActionTTL: GetEnvDuration("PENDING_ACTION_TTL", 10*time.Minute),
	}
}
