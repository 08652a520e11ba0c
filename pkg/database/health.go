package database

import (
	"context"
	"time"
)

// HealthStatus describes database connectivity for the health endpoint.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health pings the database and reports round-trip latency.
func Health(ctx context.Context, client *Client) HealthStatus {
	start := time.Now()
	if err := client.db.PingContext(ctx); err != nil {
		return HealthStatus{Connected: false, Error: err.Error()}
	}
	return HealthStatus{Connected: true, LatencyMS: time.Since(start).Milliseconds()}
}
