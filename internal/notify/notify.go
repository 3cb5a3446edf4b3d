// Package notify delivers operator-facing notifications: dashboard popups
// and remote sinks, pushed through an async pipeline with rate limiting,
// retry and dedup.
package notify

import (
	"context"
	"time"
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Notification is the dashboard popup payload. The JSON field names match
// the Elastic dashboard notification schema.
type Notification struct {
	Level       Level   `json:"level"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DisplayTime float64 `json:"displayTime"` // seconds
	Width       int     `json:"width"`       // pixels
	Height      int     `json:"height"`      // pixels, -1 sizes automatically
}

// Defaults used when a notification leaves the geometry fields zeroed.
const (
	DefaultDisplayTime = 3.0
	DefaultWidth       = 350
	DefaultHeight      = -1
)

// withDefaults fills unset presentation fields.
func (n Notification) withDefaults() Notification {
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if n.DisplayTime <= 0 {
		n.DisplayTime = DefaultDisplayTime
	}
	if n.Width == 0 {
		n.Width = DefaultWidth
	}
	if n.Height == 0 {
		n.Height = DefaultHeight
	}
	return n
}

// Sink is a notification destination.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Config controls the delivery pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At time.Time
	N  Notification
}
