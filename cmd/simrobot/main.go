// simrobot runs the full library stack against simulated hardware: a
// three-wheel drivebase steered by a synthetic gamepad, an LED strip, a
// battery alert and the off-loop services (preferences, storage, background
// jobs, notifications).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lemonlib/internal/alert"
	"lemonlib/internal/background"
	"lemonlib/internal/clock"
	"lemonlib/internal/control"
	"lemonlib/internal/drive"
	"lemonlib/internal/hid"
	"lemonlib/internal/led"
	"lemonlib/internal/notify"
	"lemonlib/internal/prefs"
	"lemonlib/internal/robot"
	"lemonlib/internal/storage"
	"lemonlib/internal/supervisor"
	"lemonlib/internal/telemetry"
	"lemonlib/pkg/logx"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to a preferences yaml/json file (hot reloaded)")
		dataPath = flag.String("data", "", "path prefix for the file store; empty disables persistence")
		tgToken  = flag.String("telegram-token", "", "telegram bot token; empty disables notifications")
		tgChat   = flag.Int64("telegram-chat", 0, "telegram chat id")
		level    = flag.String("level", "info", "log level")
		runFor   = flag.Duration("run-for", 0, "stop after this long; 0 runs until interrupted")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *runFor > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *runFor)
		defer tcancel()
	}

	svc, log := logx.New(logx.Config{Level: *level, Console: true})
	defer svc.Close()

	if err := run(ctx, log, options{
		cfgPath:  *cfgPath,
		dataPath: *dataPath,
		tgToken:  *tgToken,
		tgChat:   *tgChat,
	}); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

type options struct {
	cfgPath  string
	dataPath string
	tgToken  string
	tgChat   int64
}

func run(ctx context.Context, log logx.Logger, opts options) error {
	tel := telemetry.New()

	// Preferences: tunables the demo reads every tick.
	pm := prefs.NewManager(opts.cfgPath, log.With(logx.String("comp", "prefs")), tel)
	deadband, err := pm.Double("drive/deadband", 0.06, prefs.WithRange(0, 0.5))
	if err != nil {
		return err
	}
	batteryMin, err := pm.Double("battery/min_voltage", 11.0, prefs.WithRange(9, 13))
	if err != nil {
		return err
	}
	profile, err := pm.Bool("robot/profile", false)
	if err != nil {
		return err
	}
	if err := pm.Load(); err != nil {
		return err
	}

	var store storage.Store
	if opts.dataPath != "" {
		store, err = storage.Open(storage.Config{Driver: "file", Path: opts.dataPath},
			log.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		defer store.Close()
	}

	// Notifications go to Telegram when a token is supplied.
	var sink notify.Sink
	ncfg := notify.Config{}
	if opts.tgToken != "" {
		sink, err = notify.NewTelegramSink(notify.TelegramConfig{Token: opts.tgToken, ChatID: opts.tgChat})
		if err != nil {
			return err
		}
		ncfg.Enabled = true
		ncfg.DedupWindow = time.Minute
	}
	notifier := notify.New(ncfg, sink, log.With(logx.String("comp", "notify")), tel)
	notifier.Start(ctx)
	defer notifier.Stop(context.Background())

	alerts := alert.NewManager(clock.System{}, log.With(logx.String("comp", "alert")), tel, notifier, "alerts")
	lowBattery, err := alerts.NewAlert("battery voltage low", alert.SeverityWarning, alert.WithNotify())
	if err != nil {
		return err
	}

	// Simulated hardware.
	left, right, back := &simMotor{}, &simMotor{}, &simMotor{}
	base, err := drive.NewKillough(left, right, back, drive.DefaultKilloughConfig())
	if err != nil {
		return err
	}
	start := time.Now()
	pad := hid.New(&simPad{start: start}, hid.XboxLayout())
	strip, err := led.NewStrip(&telemetryLED{tel: tel}, 16)
	if err != nil {
		return err
	}

	headingPID, err := control.Profile{
		Name:       "heading",
		PID:        &control.PIDGains{P: 0.01},
		Continuous: &control.ContinuousRange{Min: -180, Max: 180},
	}.PIDController()
	if err != nil {
		return err
	}
	heading := control.NewController("heading", headingPID, tel)

	mode := &robot.SwitchableMode{}
	mode.Set(robot.ModeTeleop)

	bot := robot.New(robot.Config{Period: 20 * time.Millisecond},
		log.With(logx.String("comp", "robot")),
		clock.System{}, tel, mode, store, profile)

	if err := bot.AddComponent(&driveComponent{
		base:     base,
		pad:      pad,
		deadband: deadband,
		heading:  heading,
	}); err != nil {
		return err
	}
	if err := bot.AddComponent(&ledComponent{strip: strip, start: start}); err != nil {
		return err
	}
	if err := bot.AddPeriodic("battery", 500*time.Millisecond, 0, func() error {
		volts := simBatteryVolts(time.Since(start))
		if err := tel.PutDouble("battery/volts", volts); err != nil {
			return err
		}
		lowBattery.Set(volts < batteryMin.Get())
		return nil
	}); err != nil {
		return err
	}
	if err := bot.AddPeriodic("prefs", time.Second, 100*time.Millisecond, func() error {
		for _, name := range pm.Changed() {
			log.Info("preference changed", logx.String("name", name))
		}
		return nil
	}); err != nil {
		return err
	}

	// Off-loop services under one supervisor.
	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))))
	if opts.cfgPath != "" {
		sup.GoRestart("prefs-watch", pm.Watch)
	}

	jobs := background.New(background.Config{Enabled: true}, log.With(logx.String("comp", "background")))
	if err := jobs.AddInterval("alert-prune", 10*time.Second, time.Second, func(context.Context) error {
		alerts.Prune()
		return nil
	}); err != nil {
		return err
	}
	if store != nil {
		if err := jobs.AddInterval("prefs-flush", 30*time.Second, 5*time.Second, func(ctx context.Context) error {
			return store.SavePreferences(ctx, pm.Snapshot())
		}); err != nil {
			return err
		}
		if err := jobs.AddInterval("telemetry-snapshot", time.Minute, 5*time.Second, func(ctx context.Context) error {
			return persistTelemetry(ctx, store, tel)
		}); err != nil {
			return err
		}
		if err := jobs.AddInterval("event-flush", 2*time.Second, time.Second, bot.FlushEvents); err != nil {
			return err
		}
		if err := jobs.AddInterval("pose-snapshot", 5*time.Second, time.Second, func(ctx context.Context) error {
			pose := base.Pose()
			return store.AppendEvent(ctx, storage.Event{
				Kind:   "pose",
				Name:   "drive",
				Detail: fmt.Sprintf("x=%.2f y=%.2f heading=%.1f", pose.X, pose.Y, pose.HeadingDegrees()),
			})
		}); err != nil {
			return err
		}
	}
	jobs.Start(ctx)
	defer jobs.Stop(context.Background())

	err = bot.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if serr := sup.Stop(stopCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// persistTelemetry stores the current table contents as one event.
func persistTelemetry(ctx context.Context, store storage.Store, tel *telemetry.Table) error {
	snap := tel.Snapshot()
	flat := make(map[string]any, len(snap))
	for k, v := range snap {
		switch v.Kind {
		case telemetry.KindDouble:
			flat[k] = v.Double
		case telemetry.KindBool:
			flat[k] = v.Bool
		default:
			flat[k] = v.Str
		}
	}
	js, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return store.AppendEvent(ctx, storage.Event{Kind: "telemetry", Name: "snapshot", Detail: string(js)})
}

// simMotor records the last commanded speed.
type simMotor struct {
	speed float64
}

func (m *simMotor) Set(speed float64) { m.speed = speed }
func (m *simMotor) Get() float64      { return m.speed }

// simPad sweeps the sticks through slow sine waves so the drivebase traces a
// wandering path.
type simPad struct {
	start time.Time
}

func (p *simPad) Button(int) bool { return false }

func (p *simPad) Axis(index int) float64 {
	t := time.Since(p.start).Seconds()
	switch index {
	case 0: // left X: strafe
		return 0.4 * math.Sin(t/3)
	case 1: // left Y: forward (stick up is negative)
		return -0.6 * math.Cos(t/5)
	case 4: // right X: rotate
		return 0.2 * math.Sin(t/7)
	default:
		return 0
	}
}

func (p *simPad) POV() int { return -1 }

func simBatteryVolts(elapsed time.Duration) float64 {
	// Sags below the default threshold about once a minute.
	return 11.8 + 1.2*math.Sin(elapsed.Seconds()*2*math.Pi/60)
}

// driveComponent maps the gamepad onto the drivebase every tick.
type driveComponent struct {
	base     *drive.Killough
	pad      *hid.Gamepad
	deadband *prefs.Double
	heading  *control.Controller
}

func (d *driveComponent) Name() string { return "drive" }

func (d *driveComponent) Execute() {
	d.pad.SetDeadband(d.deadband.Get())
	forward := -d.pad.LeftY()
	strafe := d.pad.LeftX()
	rotate := d.pad.RightX()

	pose := d.base.Pose()
	if v, ok := d.pad.POVVector(); ok {
		// Hat overrides the sticks: drive the pointed direction and hold
		// heading zero.
		forward, strafe = v.Y, v.X
		rotate = d.heading.Update(pose.HeadingDegrees(), 0.02)
	}
	d.base.DriveCartesian(forward, strafe, rotate, pose.HeadingDegrees(), 0.02)
}

func (d *driveComponent) OnDisable() { d.base.StopMotors() }

// ledComponent scrolls a rainbow while enabled and blanks the strip on
// disable.
type ledComponent struct {
	strip *led.Strip
	start time.Time
}

func (l *ledComponent) Name() string { return "led" }

func (l *ledComponent) Execute() {
	_ = l.strip.ScrollingRainbow(time.Since(l.start), 4*time.Second)
}

func (l *ledComponent) OnDisable() { _ = l.strip.Solid(led.Color{}) }

// telemetryLED publishes the frame count and first pixel instead of driving
// real hardware.
type telemetryLED struct {
	tel    *telemetry.Table
	frames int
}

func (w *telemetryLED) Write(pixels []led.Color) error {
	w.frames++
	_ = w.tel.PutDouble("led/frames", float64(w.frames))
	if len(pixels) > 0 {
		p := pixels[0]
		_ = w.tel.PutString("led/first", fmt.Sprintf("#%02x%02x%02x", p.R, p.G, p.B))
	}
	return nil
}
