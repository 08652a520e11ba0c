// Package config loads per-service configuration from environment variables.
// Each service reads its own struct; defaults are production values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the environment value for key, or def when unset or empty.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvInt returns the integer environment value for key, or def when unset
// or unparseable.
func GetEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetEnvDuration returns the duration environment value for key (Go duration
// syntax, e.g. "30s"), or def when unset or unparseable.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// GetEnvUserIDs parses a comma-separated list of numeric user ids.
func GetEnvUserIDs(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
