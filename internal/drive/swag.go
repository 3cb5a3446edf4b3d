package drive

import (
	"errors"
	"fmt"

	"lemonlib/internal/filter"
	"lemonlib/internal/telemetry"
)

type SwagConfig struct {
	Barrier     float64 // forward-stick change below this is boosted
	Multiplier  float64 // boost factor applied to small changes
	MaxLevel    float64 // accumulated level that triggers a spin
	Add         float64 // level gained per large-change tick
	PeriodTicks int     // spin duration, in drive ticks
	Deadband    float64
}

func DefaultSwagConfig() SwagConfig {
	return SwagConfig{
		Barrier:     0.2,
		Multiplier:  1.5,
		MaxLevel:    100,
		Add:         1,
		PeriodTicks: 25,
		Deadband:    0.02,
	}
}

// Swag is a differential arcade drive with an overlay that rewards smooth
// driving: small tick-to-tick changes on the forward stick are boosted, and
// every large change raises the swag level. When the level passes MaxLevel
// the drivetrain ignores the sticks and spins in place for PeriodTicks.
type Swag struct {
	left, right Motor
	cfg         SwagConfig
	tel         *telemetry.Table

	prevMove  float64
	level     float64
	remaining int
}

// NewSwag builds the drive. tel may be nil to disable state publishing.
func NewSwag(left, right Motor, cfg SwagConfig, tel *telemetry.Table) (*Swag, error) {
	if left == nil || right == nil {
		return nil, errors.New("drive: swag requires two motors")
	}
	if err := validateSwagConfig(cfg); err != nil {
		return nil, err
	}
	return &Swag{left: left, right: right, cfg: cfg, tel: tel}, nil
}

func validateSwagConfig(cfg SwagConfig) error {
	if cfg.Barrier <= 0 || cfg.Multiplier <= 0 || cfg.MaxLevel <= 0 || cfg.Add <= 0 {
		return fmt.Errorf("drive: swag parameters must be > 0 (got %+v)", cfg)
	}
	if cfg.PeriodTicks <= 0 {
		return fmt.Errorf("drive: swag period must be > 0 ticks (got %d)", cfg.PeriodTicks)
	}
	if cfg.Deadband < 0 || cfg.Deadband >= 1 {
		return fmt.Errorf("drive: deadband must be in [0, 1) (got %v)", cfg.Deadband)
	}
	return nil
}

// SetConfig swaps the tuning parameters without resetting the swag state, so
// preference reloads take effect mid-match.
func (s *Swag) SetConfig(cfg SwagConfig) error {
	if err := validateSwagConfig(cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// Drive runs one tick of the arcade mix. move is the forward command and
// rotate the turn command, both in [-1, 1].
func (s *Swag) Drive(move, rotate float64) {
	move = filter.Deadband(filter.Clamp(move, -1, 1), s.cfg.Deadband)
	rotate = filter.Deadband(filter.Clamp(rotate, -1, 1), s.cfg.Deadband)

	if s.remaining > 0 {
		s.remaining--
		move, rotate = 0, 1
	} else {
		diff := move - s.prevMove
		if diff < 0 {
			diff = -diff
		}
		if diff < s.cfg.Barrier {
			move = filter.Clamp(move+diff*s.cfg.Multiplier, -1, 1)
		} else {
			s.level += s.cfg.Add
		}
		if s.level > s.cfg.MaxLevel {
			s.level = 0
			s.remaining = s.cfg.PeriodTicks
		}
	}
	s.prevMove = move

	speeds := []float64{move + rotate, move - rotate}
	normalizeWheelSpeeds(speeds)
	s.left.Set(speeds[0])
	s.right.Set(speeds[1])

	s.publish()
}

// Spinning reports whether a swag period is in progress.
func (s *Swag) Spinning() bool { return s.remaining > 0 }

// Level returns the accumulated swag level.
func (s *Swag) Level() float64 { return s.level }

// StopMotors zeroes both outputs without touching the swag state.
func (s *Swag) StopMotors() {
	s.left.Set(0)
	s.right.Set(0)
}

func (s *Swag) publish() {
	if s.tel == nil {
		return
	}
	// Kind conflicts cannot happen on keys this package owns.
	_ = s.tel.PutDouble("swag/level", s.level)
	_ = s.tel.PutDouble("swag/period", float64(s.remaining))
	_ = s.tel.PutBool("swag/spinning", s.remaining > 0)
}
