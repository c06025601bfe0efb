package storage

import (
	"context"
	"errors"
	"strings"

	logx "wishbot/pkg/logx"
)

// Store is the minimal persistence API used by the ledger.
//
// SaveCounts replaces the whole counter set; callers own the map and must
// not mutate it while a save is in flight.
type Store interface {
	LoadCounts(ctx context.Context) (map[string]int, error)
	SaveCounts(ctx context.Context, counts map[string]int) error
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
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
