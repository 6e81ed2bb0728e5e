package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "file":   dependency-free file backend (snapshot + journal)
//
// If Driver is empty or "none", storage is disabled and the caller runs
// memory-only (mute sets do not survive restarts).
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
