package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationField parses an optional Go duration string from the config.
// An empty or blank value means "unset" and yields zero; negative
// durations are rejected.
func DurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %w", field, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// DurationOrDefault is DurationField with a fallback for unset fields.
func DurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := DurationField(field, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
