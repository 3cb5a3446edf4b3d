// Package alert manages persistent driver-station alerts: retained
// severity-tagged messages that stay visible while their condition holds,
// published to telemetry and optionally forwarded as notifications.
package alert

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lemonlib/internal/clock"
	"lemonlib/internal/notify"
	"lemonlib/internal/telemetry"
	"lemonlib/pkg/logx"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) level() logx.Level {
	switch s {
	case SeverityWarning:
		return logx.LevelWarn
	case SeverityError:
		return logx.LevelError
	default:
		return logx.LevelInfo
	}
}

func (s Severity) notifyLevel() notify.Level {
	switch s {
	case SeverityWarning:
		return notify.LevelWarning
	case SeverityError:
		return notify.LevelError
	default:
		return notify.LevelInfo
	}
}

// Sender forwards alert activations off-robot. *notify.Service satisfies it.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Manager owns a group of alerts and publishes the active set under a
// telemetry path prefix.
type Manager struct {
	clk    clock.Clock
	log    logx.Logger
	tel    *telemetry.Table
	sender Sender
	path   string

	mu     sync.Mutex
	alerts []*Alert
	seq    uint64
}

// NewManager builds an alert group publishing under path (e.g. "alerts").
// tel and sender may be nil.
func NewManager(clk clock.Clock, log logx.Logger, tel *telemetry.Table, sender Sender, path string) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if path == "" {
		path = "alerts"
	}
	return &Manager{clk: clk, log: log, tel: tel, sender: sender, path: path}
}

type Option func(*Alert)

// WithTimeout auto-clears the alert d after activation. Zero disables expiry.
func WithTimeout(d time.Duration) Option {
	return func(a *Alert) { a.timeout = d }
}

// WithNotify forwards every activation to the manager's sender.
func WithNotify() Option {
	return func(a *Alert) { a.notifyOn = true }
}

// Alert is one retained message. All methods are safe for concurrent use.
type Alert struct {
	m        *Manager
	text     string
	severity Severity
	timeout  time.Duration
	notifyOn bool

	active      bool
	activatedAt time.Time
	order       uint64

	relog *rate.Limiter
}

// NewAlert registers an inactive alert with the group.
func (m *Manager) NewAlert(text string, severity Severity, opts ...Option) (*Alert, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("alert: text is empty")
	}
	a := &Alert{
		m:        m,
		text:     text,
		severity: severity,
		// At most one repeated activation log per second.
		relog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, o := range opts {
		o(a)
	}
	m.mu.Lock()
	m.alerts = append(m.alerts, a)
	m.mu.Unlock()
	return a, nil
}

// Set activates or deactivates the alert. Activating an already-active alert
// refreshes its timeout without re-logging.
func (a *Alert) Set(active bool) {
	m := a.m
	m.mu.Lock()
	was := a.active
	a.active = active
	if active {
		a.activatedAt = m.clk.Now()
		if !was {
			m.seq++
			a.order = m.seq
		}
	}
	text := a.text
	sev := a.severity
	notifyOn := a.notifyOn
	m.mu.Unlock()

	if active && !was {
		if a.relog.Allow() {
			m.log.Log(sev.level(), "alert raised", logx.String("alert", text))
		}
		if notifyOn && m.sender != nil {
			_ = m.sender.Send(context.Background(), notify.Notification{
				Level: sev.notifyLevel(),
				Title: text,
			})
		}
	}
	if !active && was {
		m.log.Debug("alert cleared", logx.String("alert", text))
	}
	m.publish()
}

func (a *Alert) Enable()  { a.Set(true) }
func (a *Alert) Disable() { a.Set(false) }

// Active reports the current state, honoring the timeout.
func (a *Alert) Active() bool {
	a.m.pruneExpired()
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	return a.active
}

// SetText replaces the message. Changing the text of an active alert re-logs
// it, throttled to one line per second.
func (a *Alert) SetText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("alert: text is empty")
	}
	m := a.m
	m.mu.Lock()
	changed := a.text != text
	a.text = text
	active := a.active
	sev := a.severity
	m.mu.Unlock()

	if changed && active {
		if a.relog.Allow() {
			m.log.Log(sev.level(), "alert updated", logx.String("alert", text))
		}
		m.publish()
	}
	return nil
}

// Instant logs and forwards a one-shot message without retaining state.
func (m *Manager) Instant(text string, severity Severity) {
	m.log.Log(severity.level(), "alert", logx.String("alert", text))
	if m.sender != nil {
		_ = m.sender.Send(context.Background(), notify.Notification{
			Level: severity.notifyLevel(),
			Title: text,
		})
	}
}

// ActiveTexts returns the active alert texts for one severity, ordered by
// activation (oldest first). Expired alerts are cleared on the way.
func (m *Manager) ActiveTexts(severity Severity) []string {
	m.pruneExpired()

	m.mu.Lock()
	defer m.mu.Unlock()
	type item struct {
		order uint64
		text  string
	}
	var items []item
	for _, a := range m.alerts {
		if a.active && a.severity == severity {
			items = append(items, item{order: a.order, text: a.text})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].order < items[j].order })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.text
	}
	return out
}

// Prune clears expired alerts; suitable as a periodic job.
func (m *Manager) Prune() {
	if m.pruneExpired() {
		m.publish()
	}
}

func (m *Manager) pruneExpired() bool {
	now := m.clk.Now()
	m.mu.Lock()
	pruned := false
	for _, a := range m.alerts {
		if a.active && a.timeout > 0 && now.Sub(a.activatedAt) >= a.timeout {
			a.active = false
			pruned = true
		}
	}
	m.mu.Unlock()
	return pruned
}

func (m *Manager) publish() {
	if m.tel == nil {
		return
	}
	for _, sev := range []Severity{SeverityError, SeverityWarning, SeverityInfo} {
		texts := m.ActiveTexts(sev)
		key := m.path + "/" + sev.String() + "s"
		_ = m.tel.PutString(key, strings.Join(texts, "\n"))
		_ = m.tel.PutDouble(key+"/count", float64(len(texts)))
	}
}
