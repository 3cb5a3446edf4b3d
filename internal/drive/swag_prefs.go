package drive

import (
	"math"

	"lemonlib/internal/prefs"
)

// SwagTuning binds the swag drive parameters to preferences so they can be
// tuned from the config file between matches.
type SwagTuning struct {
	barrier    *prefs.Double
	multiplier *prefs.Double
	maxLevel   *prefs.Double
	add        *prefs.Double
	period     *prefs.Double
	deadband   *prefs.Double
}

// NewSwagTuning registers swag/* preferences seeded from def.
func NewSwagTuning(m *prefs.Manager, def SwagConfig) (*SwagTuning, error) {
	t := &SwagTuning{}
	var err error
	if t.barrier, err = m.Double("swag/barrier", def.Barrier, prefs.WithRange(0.01, 2)); err != nil {
		return nil, err
	}
	if t.multiplier, err = m.Double("swag/multiplier", def.Multiplier, prefs.WithRange(0.01, 10)); err != nil {
		return nil, err
	}
	if t.maxLevel, err = m.Double("swag/max_level", def.MaxLevel, prefs.WithRange(1, 10000)); err != nil {
		return nil, err
	}
	if t.add, err = m.Double("swag/add", def.Add, prefs.WithRange(0.01, 100)); err != nil {
		return nil, err
	}
	if t.period, err = m.Double("swag/period_ticks", float64(def.PeriodTicks), prefs.WithRange(1, 1000)); err != nil {
		return nil, err
	}
	if t.deadband, err = m.Double("swag/deadband", def.Deadband, prefs.WithRange(0, 0.5)); err != nil {
		return nil, err
	}
	return t, nil
}

// Config builds a SwagConfig from the current preference values.
func (t *SwagTuning) Config() SwagConfig {
	return SwagConfig{
		Barrier:     t.barrier.Get(),
		Multiplier:  t.multiplier.Get(),
		MaxLevel:    t.maxLevel.Get(),
		Add:         t.add.Get(),
		PeriodTicks: int(math.Round(t.period.Get())),
		Deadband:    t.deadband.Get(),
	}
}

// Apply pushes the current preference values into the drive.
func (t *SwagTuning) Apply(s *Swag) error { return s.SetConfig(t.Config()) }
