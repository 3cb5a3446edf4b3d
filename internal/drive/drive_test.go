package drive

import (
	"math"
	"testing"

	"lemonlib/internal/telemetry"
)

type fakeMotor struct {
	v float64
}

func (m *fakeMotor) Set(speed float64) { m.v = speed }
func (m *fakeMotor) Get() float64     { return m.v }

func newTestKillough(t *testing.T, cfg KilloughConfig) (*Killough, *fakeMotor, *fakeMotor, *fakeMotor) {
	t.Helper()
	left := &fakeMotor{}
	right := &fakeMotor{}
	back := &fakeMotor{}
	k, err := NewKillough(left, right, back, cfg)
	if err != nil {
		t.Fatalf("NewKillough: %v", err)
	}
	return k, left, right, back
}

func TestKilloughValidation(t *testing.T) {
	t.Parallel()
	m := &fakeMotor{}
	if _, err := NewKillough(nil, m, m, DefaultKilloughConfig()); err == nil {
		t.Fatal("expected error for nil motor")
	}
	bad := DefaultKilloughConfig()
	bad.Deadband = 1.5
	if _, err := NewKillough(m, m, m, bad); err == nil {
		t.Fatal("expected error for deadband out of range")
	}
	bad = DefaultKilloughConfig()
	bad.MaxOutput = 0
	if _, err := NewKillough(m, m, m, bad); err == nil {
		t.Fatal("expected error for zero max output")
	}
	bad = DefaultKilloughConfig()
	bad.MaxSpeed = -1
	if _, err := NewKillough(m, m, m, bad); err == nil {
		t.Fatal("expected error for negative odometry scale")
	}
}

func TestKilloughWheelSpeedsBounded(t *testing.T) {
	t.Parallel()
	k, _, _, _ := newTestKillough(t, DefaultKilloughConfig())
	inputs := []struct {
		forward, strafe, rotation, gyro float64
	}{
		{1, 1, 1, 0},
		{-1, 1, -1, 45},
		{1, -1, 1, 213},
		{0.3, 0.9, -0.7, -90},
		{-1, -1, -1, 180},
	}
	for _, in := range inputs {
		k.DriveCartesian(in.forward, in.strafe, in.rotation, in.gyro, 0.02)
		ws := k.WheelSpeeds()
		for i, w := range ws {
			if math.Abs(w) > 1+1e-9 {
				t.Fatalf("input %+v: wheel %d speed %v exceeds 1", in, i, w)
			}
		}
	}
}

func TestKilloughForwardDrive(t *testing.T) {
	t.Parallel()
	k, left, right, back := newTestKillough(t, DefaultKilloughConfig())
	k.DriveCartesian(1, 0, 0, 0, 0.02)

	// Driving straight ahead: left and right wheels oppose, back wheel idle.
	if math.Abs(back.Get()) > 1e-9 {
		t.Fatalf("back wheel = %v, want 0", back.Get())
	}
	if math.Abs(left.Get()+right.Get()) > 1e-9 {
		t.Fatalf("left %v and right %v should cancel", left.Get(), right.Get())
	}
	if left.Get() <= 0 {
		t.Fatalf("left wheel = %v, want > 0", left.Get())
	}
}

func TestKilloughRotationOnly(t *testing.T) {
	t.Parallel()
	k, left, right, back := newTestKillough(t, DefaultKilloughConfig())
	k.DriveCartesian(0, 0, 0.5, 0, 0.02)
	for _, m := range []*fakeMotor{left, right, back} {
		if math.Abs(m.Get()-0.5) > 1e-9 {
			t.Fatalf("rotation-only wheel = %v, want 0.5", m.Get())
		}
	}
}

func TestKilloughFieldOriented(t *testing.T) {
	t.Parallel()
	// Forward command at 90 degrees heading equals a leftward strafe with the
	// gyro zeroed.
	kField, _, _, _ := newTestKillough(t, DefaultKilloughConfig())
	kField.DriveCartesian(1, 0, 0, 90, 0.02)

	kRobot, _, _, _ := newTestKillough(t, DefaultKilloughConfig())
	kRobot.DriveCartesian(0, -1, 0, 0, 0.02)

	wf, wr := kField.WheelSpeeds(), kRobot.WheelSpeeds()
	for i := range wf {
		if math.Abs(wf[i]-wr[i]) > 1e-9 {
			t.Fatalf("wheel %d: field %v vs robot %v", i, wf[i], wr[i])
		}
	}
}

func TestKilloughPolarMatchesCartesian(t *testing.T) {
	t.Parallel()
	kPolar, _, _, _ := newTestKillough(t, DefaultKilloughConfig())
	kPolar.DrivePolar(0.7, 30, 0.2, 0.02)

	kCart, _, _, _ := newTestKillough(t, DefaultKilloughConfig())
	rad := 30 * math.Pi / 180
	kCart.DriveCartesian(0.7*math.Cos(rad), 0.7*math.Sin(rad), 0.2, 0, 0.02)

	wp, wc := kPolar.WheelSpeeds(), kCart.WheelSpeeds()
	for i := range wp {
		if math.Abs(wp[i]-wc[i]) > 1e-9 {
			t.Fatalf("wheel %d: polar %v vs cartesian %v", i, wp[i], wc[i])
		}
	}
}

func TestKilloughOdometry(t *testing.T) {
	t.Parallel()
	cfg := DefaultKilloughConfig()
	cfg.MaxSpeed = 1
	k, _, _, _ := newTestKillough(t, cfg)

	for i := 0; i < 50; i++ {
		k.DriveCartesian(1, 0, 0, 0, 0.02)
	}
	p := k.Pose()
	if math.Abs(p.X-1) > 1e-9 || math.Abs(p.Y) > 1e-9 || math.Abs(p.Heading) > 1e-9 {
		t.Fatalf("straight drive pose = %+v, want X=1", p)
	}

	k.ResetPose()
	if p := k.Pose(); p.X != 0 || p.Y != 0 || p.Heading != 0 {
		t.Fatalf("ResetPose left %+v", p)
	}
}

func TestKilloughStopMotors(t *testing.T) {
	t.Parallel()
	k, left, right, back := newTestKillough(t, DefaultKilloughConfig())
	k.DriveCartesian(1, 1, 1, 0, 0.02)
	k.StopMotors()
	for _, m := range []*fakeMotor{left, right, back} {
		if m.Get() != 0 {
			t.Fatalf("motor still at %v after stop", m.Get())
		}
	}
	if ws := k.WheelSpeeds(); ws != [3]float64{} {
		t.Fatalf("wheel speeds not cleared: %v", ws)
	}
}

func TestSwagValidation(t *testing.T) {
	t.Parallel()
	m := &fakeMotor{}
	if _, err := NewSwag(nil, m, DefaultSwagConfig(), nil); err == nil {
		t.Fatal("expected error for nil motor")
	}
	bad := DefaultSwagConfig()
	bad.PeriodTicks = 0
	if _, err := NewSwag(m, m, bad, nil); err == nil {
		t.Fatal("expected error for zero period")
	}
	bad = DefaultSwagConfig()
	bad.Barrier = 0
	if _, err := NewSwag(m, m, bad, nil); err == nil {
		t.Fatal("expected error for zero barrier")
	}
}

func TestSwagBoostAndSpin(t *testing.T) {
	t.Parallel()
	left := &fakeMotor{}
	right := &fakeMotor{}
	cfg := SwagConfig{
		Barrier:     0.2,
		Multiplier:  1,
		MaxLevel:    2,
		Add:         1,
		PeriodTicks: 3,
		Deadband:    0,
	}
	tel := telemetry.New()
	s, err := NewSwag(left, right, cfg, tel)
	if err != nil {
		t.Fatalf("NewSwag: %v", err)
	}

	// Large change: counts toward the level, no boost.
	s.Drive(0.5, 0)
	if s.Level() != 1 {
		t.Fatalf("level after large change = %v, want 1", s.Level())
	}
	if left.Get() != 0.5 || right.Get() != 0.5 {
		t.Fatalf("outputs = %v/%v, want 0.5/0.5", left.Get(), right.Get())
	}

	// Small change: boosted by diff*multiplier.
	s.Drive(0.55, 0)
	if math.Abs(left.Get()-0.6) > 1e-9 {
		t.Fatalf("boosted output = %v, want 0.6", left.Get())
	}

	// Two more large swings push the level past the max and arm a spin.
	s.Drive(-1, 0)
	s.Drive(1, 0)
	if s.Level() != 0 {
		t.Fatalf("level after overflow = %v, want 0", s.Level())
	}
	if !s.Spinning() {
		t.Fatal("spin should be armed after the overflow tick")
	}

	for i := 0; i < cfg.PeriodTicks; i++ {
		s.Drive(0, 0)
		if left.Get() != 1 || right.Get() != -1 {
			t.Fatalf("spin tick %d outputs = %v/%v, want 1/-1", i, left.Get(), right.Get())
		}
	}
	s.Drive(0, 0)
	if s.Spinning() {
		t.Fatal("spin did not end after the period")
	}
	if left.Get() != 0 || right.Get() != 0 {
		t.Fatalf("post-spin outputs = %v/%v, want 0/0", left.Get(), right.Get())
	}

	if got := tel.GetBool("swag/spinning", true); got {
		t.Fatal("telemetry still reports spinning")
	}
}

func TestSwagArcadeNormalization(t *testing.T) {
	t.Parallel()
	left := &fakeMotor{}
	right := &fakeMotor{}
	cfg := DefaultSwagConfig()
	cfg.Barrier = 10 // never accumulate in this test
	s, err := NewSwag(left, right, cfg, nil)
	if err != nil {
		t.Fatalf("NewSwag: %v", err)
	}
	s.Drive(1, 1)
	if math.Abs(left.Get()) > 1 || math.Abs(right.Get()) > 1 {
		t.Fatalf("outputs exceed 1: %v/%v", left.Get(), right.Get())
	}
	if left.Get() != 1 || right.Get() != 0 {
		t.Fatalf("arcade mix = %v/%v, want 1/0", left.Get(), right.Get())
	}
}
