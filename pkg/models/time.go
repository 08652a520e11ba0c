package models

import (
	"fmt"
	"strings"
	"time"
)

// ParseUTC parses an ISO-8601 timestamp at a storage boundary and normalizes
// it to UTC. Accepts the "Z" suffix, an explicit "+00:00" offset, and the
// degenerate "+00:00Z" tail some clients emit.
func ParseUTC(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if strings.HasSuffix(s, "+00:00Z") {
		s = strings.TrimSuffix(s, "Z")
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// FormatUTC renders a timestamp as RFC3339 in UTC for API responses.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
