// Package storage persists robot state across power cycles:
//   - preference snapshots (so tuned values survive restarts)
//   - an append-only event log (mode changes, alerts, loop overruns)
//
// Drivers:
//   - "file": jsonl event log + snapshot file
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"lemonlib/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Event is one append-only log record. Keep it compact and schema-stable.
type Event struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"` // "mode", "alert", "overrun", ...
	Name   string    `json:"name"`
	Detail string    `json:"detail,omitempty"`
}

// Store is the persistence API used by the robot runtime.
type Store interface {
	SavePreferences(ctx context.Context, values map[string]any) error
	LoadPreferences(ctx context.Context) (map[string]any, bool, error)
	AppendEvent(ctx context.Context, e Event) error
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
