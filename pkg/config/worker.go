package config

import "time"

// WorkerConfig configures one LLM worker replica.
type WorkerConfig struct {
	// RedisURL is the stream broker address.
	RedisURL string

	// CoreURL is the base URL of the core REST service.
	CoreURL string

	// ConsumerGroup is the consumer group shared by all worker replicas.
	ConsumerGroup string

	// ConsumerName is this replica's stable consumer name.
	ConsumerName string

	// MaxRetries bounds handler attempts per job before the job fails.
	MaxRetries int

	// BlockTimeout is the per-stream blocking read duration in each round.
	BlockTimeout time.Duration

	// RoundPause is the yield between full round-robin passes.
	RoundPause time.Duration

	// BackoffCap caps the exponential retry backoff.
	BackoffCap time.Duration

	// GracefulShutdownTimeout bounds the wait for an in-flight handler on stop.
	GracefulShutdownTimeout time.Duration

	// MediaDir is where image blobs referenced by image_tag payloads live.
	MediaDir string

	LLM LLMConfig
}

// LLMConfig points at the model endpoint.
type LLMConfig struct {
	// BaseURL is the OpenAI-style chat-completions endpoint base.
	BaseURL string

	// APIKey authenticates requests; empty for local endpoints.
	APIKey string

	// Model is the text model name.
	Model string

	// VisionModel is the image model name.
	VisionModel string

	// RequestTimeout bounds one model call.
	RequestTimeout time.Duration
}

// DefaultWorkerConfig returns the built-in worker defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ConsumerGroup:           "llm-workers",
		MaxRetries:              3,
		BlockTimeout:            time.Second,
		RoundPause:              100 * time.Millisecond,
		BackoffCap:              60 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// LoadWorkerConfig reads the worker configuration from the environment.
func LoadWorkerConfig(consumerName string) WorkerConfig {
	cfg := DefaultWorkerConfig()
	cfg.RedisURL = GetEnv("REDIS_URL", "redis://localhost:6379/0")
	cfg.CoreURL = GetEnv("CORE_URL", "http://localhost:8080")
	cfg.ConsumerGroup = GetEnv("CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.ConsumerName = GetEnv("CONSUMER_NAME", consumerName)
	cfg.MaxRetries = GetEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.BlockTimeout = GetEnvDuration("BLOCK_TIMEOUT", cfg.BlockTimeout)
	cfg.RoundPause = GetEnvDuration("ROUND_PAUSE", cfg.RoundPause)
	cfg.BackoffCap = GetEnvDuration("BACKOFF_CAP", cfg.BackoffCap)
	cfg.GracefulShutdownTimeout = GetEnvDuration("GRACEFUL_SHUTDOWN_TIMEOUT", cfg.GracefulShutdownTimeout)
	cfg.MediaDir = GetEnv("MEDIA_DIR", "./data/media")
	cfg.LLM = LLMConfig{
		BaseURL:        GetEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
		APIKey:         GetEnv("LLM_API_KEY", ""),
		Model:          GetEnv("LLM_MODEL", "gpt-4o-mini"),
		VisionModel:    GetEnv("LLM_VISION_MODEL", "gpt-4o-mini"),
		RequestTimeout: GetEnvDuration("LLM_REQUEST_TIMEOUT", 2*time.Minute),
	}
	return cfg
}
