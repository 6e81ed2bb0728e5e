package storage

import (
	"context"
	"errors"
	"strings"

	logx "talkgroups/pkg/logx"
)

// Store is the durable key-set API: one set of muted channel ids per user.
// All operations are idempotent; loading an unknown user yields an empty set.
type Store interface {
	LoadMuted(ctx context.Context, userID string) (map[string]struct{}, error)
	AddMuted(ctx context.Context, userID, channelID string) error
	RemoveMuted(ctx context.Context, userID, channelID string) error
	ClearMuted(ctx context.Context, userID string) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
