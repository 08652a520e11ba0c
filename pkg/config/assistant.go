package config

import "time"

// AssistantConfig configures the conversational agent service.
type AssistantConfig struct {
	// RedisURL backs chat history, session summaries and digest markers.
	RedisURL string

	// CoreURL is the base URL of the core REST service.
	CoreURL string

	// AllowedUserIDs restricts who the assistant serves.
	AllowedUserIDs []int64

	// ContextWindow is the model context size in tokens.
	ContextWindow int

	// BriefingBudget is the token budget for the briefing block.
	BriefingBudget int

	// ResponseReserve is the token headroom left for the model reply.
	ResponseReserve int

	// MaxToolIterations bounds the tool-calling loop per turn.
	MaxToolIterations int

	// HistoryTTL expires idle chat history.
	HistoryTTL time.Duration

	// SummaryTTL expires stored session summaries.
	SummaryTTL time.Duration

	// DigestHour is the local hour (0-23) at which daily digests are sent.
	DigestHour int

	// DigestTick is how often the digest scheduler checks user clocks.
	DigestTick time.Duration

	LLM LLMConfig
}

// DefaultAssistantConfig returns the built-in assistant defaults.
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		ContextWindow:     16384,
		BriefingBudget:    1024,
		ResponseReserve:   1024,
		MaxToolIterations: 10,
		HistoryTTL:        24 * time.Hour,
		SummaryTTL:        7 * 24 * time.Hour,
		DigestHour:        8,
		DigestTick:        15 * time.Minute,
	}
}

// LoadAssistantConfig reads the assistant configuration from the environment.
func LoadAssistantConfig() AssistantConfig {
	cfg := DefaultAssistantConfig()
	cfg.RedisURL = GetEnv("REDIS_URL", "redis://localhost:6379/0")
	cfg.CoreURL = GetEnv("CORE_URL", "http://localhost:8080")
	cfg.AllowedUserIDs = GetEnvUserIDs("ALLOWED_USER_IDS")
	cfg.ContextWindow = GetEnvInt("CONTEXT_WINDOW", cfg.ContextWindow)
	cfg.BriefingBudget = GetEnvInt("BRIEFING_BUDGET", cfg.BriefingBudget)
	cfg.ResponseReserve = GetEnvInt("RESPONSE_RESERVE", cfg.ResponseReserve)
	cfg.MaxToolIterations = GetEnvInt("MAX_TOOL_ITERATIONS", cfg.MaxToolIterations)
	cfg.HistoryTTL = GetEnvDuration("HISTORY_TTL", cfg.HistoryTTL)
	cfg.SummaryTTL = GetEnvDuration("SUMMARY_TTL", cfg.SummaryTTL)
	cfg.DigestHour = GetEnvInt("DIGEST_HOUR", cfg.DigestHour)
	cfg.DigestTick = GetEnvDuration("DIGEST_TICK", cfg.DigestTick)
	cfg.LLM = LLMConfig{
		BaseURL:        GetEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
		APIKey:         GetEnv("LLM_API_KEY", ""),
		Model:          GetEnv("LLM_MODEL", "gpt-4o-mini"),
		VisionModel:    GetEnv("LLM_VISION_MODEL", "gpt-4o-mini"),
		RequestTimeout: GetEnvDuration("LLM_REQUEST_TIMEOUT", 2*time.Minute),
	}
	return cfg
}
