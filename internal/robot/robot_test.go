package robot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lemonlib/internal/clock"
	"lemonlib/internal/storage"
	"lemonlib/internal/telemetry"
	"lemonlib/pkg/logx"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeComponent struct {
	name     string
	executes int
	enables  int
	disables int
	execFn   func()
}

func (c *fakeComponent) Name() string { return c.name }

func (c *fakeComponent) Execute() {
	c.executes++
	if c.execFn != nil {
		c.execFn()
	}
}

func (c *fakeComponent) OnEnable()  { c.enables++ }
func (c *fakeComponent) OnDisable() { c.disables++ }

type memStore struct {
	mu     sync.Mutex
	events []storage.Event
	fail   int // fail this many appends before succeeding
}

func (m *memStore) SavePreferences(context.Context, map[string]any) error { return nil }

func (m *memStore) LoadPreferences(context.Context) (map[string]any, bool, error) {
	return nil, false, nil
}

func (m *memStore) AppendEvent(_ context.Context, e storage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail > 0 {
		m.fail--
		return errors.New("store down")
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind + ":" + e.Name
	}
	return out
}

type profileOn struct{}

func (profileOn) Get() bool { return true }

func newTestRobot(src ModeSource, store storage.Store, tel *telemetry.Table, profile ProfileSwitch) (*Robot, *clock.Sim) {
	clk := clock.NewSim(t0)
	r := New(Config{Period: 20 * time.Millisecond}, logx.Nop(), clk, tel, src, store, profile)
	return r, clk
}

func stepFor(r *Robot, clk *clock.Sim, ticks int) {
	for i := 0; i < ticks; i++ {
		clk.Advance(20 * time.Millisecond)
		r.Step(clk.Now())
	}
}

func TestAddComponentValidation(t *testing.T) {
	t.Parallel()
	r, _ := newTestRobot(nil, nil, nil, nil)
	if err := r.AddComponent(nil); err == nil {
		t.Fatal("expected error for nil component")
	}
	if err := r.AddComponent(&fakeComponent{name: " "}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.AddComponent(&fakeComponent{name: "drive"}); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	if err := r.AddComponent(&fakeComponent{name: "drive"}); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestDisabledRunsNoComponents(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	r, clk := newTestRobot(src, nil, nil, nil)
	c := &fakeComponent{name: "drive"}
	if err := r.AddComponent(c); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	stepFor(r, clk, 10)
	if c.executes != 0 {
		t.Fatalf("disabled robot executed component %d times", c.executes)
	}
}

func TestPeriodicCallbacksFireWhileDisabled(t *testing.T) {
	t.Parallel()
	r, clk := newTestRobot(&SwitchableMode{}, nil, nil, nil)
	fires := 0
	if err := r.AddPeriodic("flush", 100*time.Millisecond, 0, func() error {
		fires++
		return nil
	}); err != nil {
		t.Fatalf("AddPeriodic: %v", err)
	}

	// Housekeeping runs regardless of mode.
	stepFor(r, clk, 50) // one second
	if fires < 8 {
		t.Fatalf("callback fired %d times in 1s, want >= 8", fires)
	}
}

func TestModeTransitions(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	store := &memStore{}
	tel := telemetry.New()
	r, clk := newTestRobot(src, store, tel, nil)
	c := &fakeComponent{name: "drive"}
	if err := r.AddComponent(c); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	src.Set(ModeTeleop)
	stepFor(r, clk, 5)
	if c.enables != 1 {
		t.Fatalf("enables = %d, want 1", c.enables)
	}
	if c.executes != 5 {
		t.Fatalf("executes = %d, want 5", c.executes)
	}
	if got := tel.GetString("robot/mode", ""); got != "teleop" {
		t.Fatalf("robot/mode = %q", got)
	}
	if r.Mode() != ModeTeleop {
		t.Fatalf("Mode = %v", r.Mode())
	}

	src.Set(ModeDisabled)
	stepFor(r, clk, 1)
	if c.disables != 1 {
		t.Fatalf("disables = %d, want 1", c.disables)
	}

	// Autonomous from disabled re-fires the enable hook.
	src.Set(ModeAutonomous)
	stepFor(r, clk, 1)
	if c.enables != 2 {
		t.Fatalf("enables after re-enable = %d, want 2", c.enables)
	}

	// Step never touches the store; events land on flush.
	if got := store.kinds(); len(got) != 0 {
		t.Fatalf("store written during Step: %v", got)
	}
	if err := r.FlushEvents(context.Background()); err != nil {
		t.Fatalf("FlushEvents: %v", err)
	}

	kinds := store.kinds()
	want := []string{"mode:teleop", "mode:disabled", "mode:autonomous"}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
}

func TestEventFlushRetainsOnStoreError(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	store := &memStore{fail: 1}
	r, clk := newTestRobot(src, store, nil, nil)

	src.Set(ModeTeleop)
	stepFor(r, clk, 1)

	if err := r.FlushEvents(context.Background()); err == nil {
		t.Fatal("expected flush error from failing store")
	}
	if got := store.kinds(); len(got) != 0 {
		t.Fatalf("failed flush wrote events: %v", got)
	}

	// The event stays queued; the next flush delivers it.
	if err := r.FlushEvents(context.Background()); err != nil {
		t.Fatalf("second FlushEvents: %v", err)
	}
	if got := store.kinds(); len(got) != 1 || got[0] != "mode:teleop" {
		t.Fatalf("events after retry = %v, want [mode:teleop]", got)
	}
}

func TestComponentPanicIsIsolated(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	src.Set(ModeTeleop)
	r, clk := newTestRobot(src, nil, nil, nil)
	bad := &fakeComponent{name: "bad", execFn: func() { panic("broken encoder") }}
	good := &fakeComponent{name: "good"}
	if err := r.AddComponent(bad); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	if err := r.AddComponent(good); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	stepFor(r, clk, 3)
	if good.executes != 3 {
		t.Fatalf("good component executed %d times, want 3", good.executes)
	}
	if r.Failures() != 3 {
		t.Fatalf("Failures = %d, want 3", r.Failures())
	}
}

func TestOverrunDetection(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	src.Set(ModeTeleop)
	clk := clock.NewSim(t0)
	r := New(Config{Period: 20 * time.Millisecond, OverrunThreshold: time.Millisecond},
		logx.Nop(), clk, nil, src, nil, nil)
	slow := &fakeComponent{name: "slow", execFn: func() { time.Sleep(5 * time.Millisecond) }}
	if err := r.AddComponent(slow); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	r.Step(clk.Now())
	if r.Overruns() != 1 {
		t.Fatalf("Overruns = %d, want 1", r.Overruns())
	}
	over, ok := r.LastOverrun()
	if !ok {
		t.Fatal("LastOverrun = none")
	}
	if over.Took < 5*time.Millisecond {
		t.Fatalf("overrun Took = %v, want >= 5ms", over.Took)
	}
	if len(over.Epochs) != 1 || over.Epochs[0].Name != "slow" {
		t.Fatalf("overrun epochs = %+v", over.Epochs)
	}
}

func TestProfilePublishing(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	src.Set(ModeTeleop)
	tel := telemetry.New()
	r, clk := newTestRobot(src, nil, tel, profileOn{})
	if err := r.AddComponent(&fakeComponent{name: "drive"}); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	stepFor(r, clk, 1)
	keys := tel.Keys()
	var sawLoop, sawDrive bool
	for _, k := range keys {
		switch k {
		case "watchdog/loop_ms":
			sawLoop = true
		case "watchdog/drive_ms":
			sawDrive = true
		}
	}
	if !sawLoop || !sawDrive {
		t.Fatalf("profile keys missing: %v", keys)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	src := &SwitchableMode{}
	src.Set(ModeTeleop)
	r := New(Config{Period: 5 * time.Millisecond}, logx.Nop(), clock.System{}, nil, src, nil, nil)
	c := &fakeComponent{name: "drive"}
	if err := r.AddComponent(c); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run = %v, want deadline exceeded", err)
	}
	if c.executes == 0 {
		t.Fatal("loop never executed the component")
	}
	if c.disables != 1 {
		t.Fatalf("shutdown disables = %d, want 1", c.disables)
	}
}
