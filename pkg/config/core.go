package config

import "time"

// CoreConfig configures the core service: REST API, store, broker, and the
// housekeeping scheduler.
type CoreConfig struct {
	// HTTPPort is the REST listen port.
	HTTPPort string

	// DatabasePath is the SQLite database file path.
	DatabasePath string

	// MediaDir is the directory holding media blobs owned by memories.
	MediaDir string

	// RedisURL is the stream broker address.
	RedisURL string

	Scheduler SchedulerConfig
}

// SchedulerConfig controls the housekeeping loop.
type SchedulerConfig struct {
	// TickInterval is how often the four housekeeping actions run.
	TickInterval time.Duration

	// PendingMemoryTTL is how long a pending media memory lives before expiry.
	PendingMemoryTTL time.Duration

	// SuggestedTagTTL is how long a suggested tag lives before expiry.
	SuggestedTagTTL time.Duration

	// EventRepromptAfter is how stale a pending event must be to be re-prompted.
	EventRepromptAfter time.Duration
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:       30 * time.Second,
		PendingMemoryTTL:   7 * 24 * time.Hour,
		SuggestedTagTTL:    7 * 24 * time.Hour,
		EventRepromptAfter: 24 * time.Hour,
	}
}

// LoadCoreConfig reads the core service configuration from the environment.
func LoadCoreConfig() CoreConfig {
	return CoreConfig{
		HTTPPort:     GetEnv("HTTP_PORT", "8080"),
		DatabasePath: GetEnv("DATABASE_PATH", "./data/bearmemori.db"),
		MediaDir:     GetEnv("MEDIA_DIR", "./data/media"),
		RedisURL:     GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		Scheduler: SchedulerConfig{
			TickInterval:       GetEnvDuration("SCHEDULER_TICK_INTERVAL", 30*time.Second),
			PendingMemoryTTL:   GetEnvDuration("PENDING_MEMORY_TTL", 7*24*time.Hour),
			SuggestedTagTTL:    GetEnvDuration("SUGGESTED_TAG_TTL", 7*24*time.Hour),
			EventRepromptAfter: GetEnvDuration("EVENT_REPROMPT_AFTER", 24*time.Hour),
		},
	}
}
