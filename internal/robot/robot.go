// Package robot hosts the periodic control loop: registered components run
// every tick while the robot is enabled, staggered callbacks fire through the
// scheduler, and a watchdog profiles each tick and reports overruns.
package robot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"lemonlib/internal/clock"
	"lemonlib/internal/sched"
	"lemonlib/internal/storage"
	"lemonlib/internal/telemetry"
	"lemonlib/pkg/logx"
)

type Mode int

const (
	ModeDisabled Mode = iota
	ModeAutonomous
	ModeTeleop
)

func (m Mode) String() string {
	switch m {
	case ModeAutonomous:
		return "autonomous"
	case ModeTeleop:
		return "teleop"
	default:
		return "disabled"
	}
}

// Component is one unit of robot behavior, executed every loop tick while the
// robot is enabled.
type Component interface {
	Name() string
	Execute()
}

// EnableListener is implemented by components that need a hook when the robot
// transitions out of disabled.
type EnableListener interface {
	OnEnable()
}

// DisableListener is the matching hook for transitions into disabled.
type DisableListener interface {
	OnDisable()
}

// ModeSource reports the desired robot mode each tick. Implementations come
// from the field management system or, off-field, from a switch.
type ModeSource interface {
	Mode() Mode
}

// SwitchableMode is a ModeSource driven by Set, for simulation and tests.
type SwitchableMode struct {
	v atomic.Int32
}

func (s *SwitchableMode) Mode() Mode { return Mode(s.v.Load()) }

func (s *SwitchableMode) Set(m Mode) { s.v.Store(int32(m)) }

type Config struct {
	Period           time.Duration // loop period; default 20ms
	OverrunThreshold time.Duration // default = Period
	SdNotify         bool          // announce readiness and feed the systemd watchdog
}

// ProfileSwitch gates per-component epoch publishing. *prefs.Bool satisfies it.
type ProfileSwitch interface {
	Get() bool
}

type Robot struct {
	cfg   Config
	log   logx.Logger
	clk   clock.Clock
	tel   *telemetry.Table
	sched *sched.Scheduler
	store storage.Store
	src   ModeSource

	profile ProfileSwitch

	mu         sync.Mutex
	components []Component
	mode       Mode

	failures atomic.Uint64
	dog      watchdog

	emu     sync.Mutex
	pending []storage.Event
}

// maxPendingEvents bounds the in-memory event queue; the oldest entries are
// dropped when the flusher falls behind.
const maxPendingEvents = 256

// New builds the runtime. tel, store and profile may be nil; src may be nil
// for a robot that is always disabled.
func New(cfg Config, log logx.Logger, clk clock.Clock, tel *telemetry.Table, src ModeSource, store storage.Store, profile ProfileSwitch) *Robot {
	if cfg.Period <= 0 {
		cfg.Period = 20 * time.Millisecond
	}
	if cfg.OverrunThreshold <= 0 {
		cfg.OverrunThreshold = cfg.Period
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Robot{
		cfg:     cfg,
		log:     log,
		clk:     clk,
		tel:     tel,
		sched:   sched.New(log.With(logx.String("comp", "sched"))),
		store:   store,
		src:     src,
		profile: profile,
		dog:     watchdog{threshold: cfg.OverrunThreshold},
	}
}

// AddComponent registers a component. Names must be unique.
func (r *Robot) AddComponent(c Component) error {
	if c == nil {
		return errors.New("robot: nil component")
	}
	name := strings.TrimSpace(c.Name())
	if name == "" {
		return errors.New("robot: component name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.components {
		if existing.Name() == name {
			return fmt.Errorf("robot: component %q already registered", name)
		}
	}
	r.components = append(r.components, c)
	return nil
}

// AddPeriodic registers a staggered callback on the loop scheduler. The
// callback first fires one period after the next tick, shifted by offset, and
// then every period.
func (r *Robot) AddPeriodic(name string, period, offset time.Duration, fn func() error) error {
	return r.sched.Register(name, period, offset, fn)
}

// Mode returns the mode applied on the last tick.
func (r *Robot) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Overruns returns the count of ticks that exceeded the overrun threshold.
func (r *Robot) Overruns() uint64 { return r.dog.count.Load() }

// Failures returns the count of component panics and periodic-callback
// errors since construction.
func (r *Robot) Failures() uint64 { return r.failures.Load() }

// LastOverrun returns details of the most recent overrun, if any.
func (r *Robot) LastOverrun() (Overrun, bool) { return r.dog.last() }

// Run drives the loop with a wall-clock ticker until ctx is canceled. With
// SdNotify set it announces readiness and feeds the systemd watchdog.
func (r *Robot) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var feedEvery time.Duration
	if r.cfg.SdNotify {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
		if iv, err := daemon.SdWatchdogEnabled(false); err == nil && iv > 0 {
			feedEvery = iv / 2
		}
		defer func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }()
	}

	r.log.Info("robot loop starting", logx.Duration("period", r.cfg.Period))
	ticker := time.NewTicker(r.cfg.Period)
	defer ticker.Stop()

	var lastFeed time.Time
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		case <-ticker.C:
			now := r.clk.Now()
			r.Step(now)
			if feedEvery > 0 && time.Since(lastFeed) >= feedEvery {
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				lastFeed = time.Now()
			}
		}
	}
}

// Step executes one loop iteration at the given instant. Exposed so
// simulations and tests can drive the loop from a simulated clock.
func (r *Robot) Step(now time.Time) {
	started := time.Now()

	mode := ModeDisabled
	if r.src != nil {
		mode = r.src.Mode()
	}
	r.applyMode(mode)

	var epochs []Epoch
	if mode != ModeDisabled {
		r.mu.Lock()
		comps := append([]Component(nil), r.components...)
		r.mu.Unlock()
		epochs = make([]Epoch, 0, len(comps))
		for _, c := range comps {
			epochs = append(epochs, r.execute(c))
		}
	}

	report := r.sched.Tick(now)
	for _, f := range report.Failures {
		r.failures.Add(1)
		r.appendEvent("callback", f.Name, f.Err.Error())
	}
	if r.tel != nil {
		_ = r.tel.PutDouble("robot/failures", float64(r.failures.Load()))
	}

	took := time.Since(started)
	r.dog.observe(now, took, epochs)
	r.publishProfile(took, epochs)
	if took > r.cfg.OverrunThreshold {
		r.log.Warn("loop overrun",
			logx.Duration("took", took),
			logx.Duration("threshold", r.cfg.OverrunThreshold))
		r.appendEvent("overrun", "loop", took.String())
	}
}

func (r *Robot) execute(c Component) Epoch {
	start := time.Now()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.failures.Add(1)
				r.log.Error("component panicked",
					logx.String("component", c.Name()),
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		c.Execute()
	}()
	return Epoch{Name: c.Name(), Took: time.Since(start)}
}

func (r *Robot) applyMode(mode Mode) {
	r.mu.Lock()
	prev := r.mode
	if prev == mode {
		r.mu.Unlock()
		return
	}
	r.mode = mode
	comps := append([]Component(nil), r.components...)
	r.mu.Unlock()

	r.log.Info("mode changed",
		logx.String("from", prev.String()),
		logx.String("to", mode.String()))
	if r.tel != nil {
		_ = r.tel.PutString("robot/mode", mode.String())
	}
	r.appendEvent("mode", mode.String(), "")

	if prev == ModeDisabled && mode != ModeDisabled {
		for _, c := range comps {
			if l, ok := c.(EnableListener); ok {
				l.OnEnable()
			}
		}
	}
	if mode == ModeDisabled && prev != ModeDisabled {
		for _, c := range comps {
			if l, ok := c.(DisableListener); ok {
				l.OnDisable()
			}
		}
	}
}

func (r *Robot) shutdown() {
	r.applyMode(ModeDisabled)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.FlushEvents(ctx)
	r.log.Info("robot loop stopped",
		logx.Uint64("overruns", r.Overruns()))
}

func (r *Robot) publishProfile(took time.Duration, epochs []Epoch) {
	if r.tel == nil || r.profile == nil || !r.profile.Get() {
		return
	}
	_ = r.tel.PutDouble("watchdog/loop_ms", float64(took.Microseconds())/1000)
	for _, e := range epochs {
		_ = r.tel.PutDouble("watchdog/"+e.Name+"_ms", float64(e.Took.Microseconds())/1000)
	}
	_ = r.tel.PutDouble("watchdog/overruns", float64(r.dog.count.Load()))
}

// appendEvent queues an event for the off-loop flusher. Store I/O never
// happens inside Step; the loop budget stays untouched.
func (r *Robot) appendEvent(kind, name, detail string) {
	if r.store == nil {
		return
	}
	e := storage.Event{
		At:     r.clk.Now(),
		Kind:   kind,
		Name:   name,
		Detail: detail,
	}
	r.emu.Lock()
	r.pending = append(r.pending, e)
	if over := len(r.pending) - maxPendingEvents; over > 0 {
		r.pending = r.pending[over:]
	}
	r.emu.Unlock()
}

// FlushEvents persists queued events. Run it off-loop, e.g. as a background
// job; Run also flushes once on shutdown. The first store error stops the
// flush and requeues the remainder.
func (r *Robot) FlushEvents(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.emu.Lock()
	batch := r.pending
	r.pending = nil
	r.emu.Unlock()

	for i, e := range batch {
		if err := r.store.AppendEvent(ctx, e); err != nil {
			r.emu.Lock()
			r.pending = append(batch[i:], r.pending...)
			if over := len(r.pending) - maxPendingEvents; over > 0 {
				r.pending = r.pending[over:]
			}
			r.emu.Unlock()
			r.log.Debug("event flush failed", logx.Err(err))
			return err
		}
	}
	return nil
}
