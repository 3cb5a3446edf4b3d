package control

import "lemonlib/internal/prefs"

// Tuner binds a PID loop's gains to preferences so they can be retuned from
// a config file without redeploying. Apply pulls the current values; call it
// from the loop, e.g. when the preference manager reports changes.
type Tuner struct {
	pid *PID
	p   *prefs.Double
	i   *prefs.Double
	d   *prefs.Double
}

// NewTuner registers <name>/kp, <name>/ki and <name>/kd seeded from the
// loop's current gains.
func NewTuner(m *prefs.Manager, name string, pid *PID) (*Tuner, error) {
	g := pid.Gains()
	p, err := m.Double(name+"/kp", g.P)
	if err != nil {
		return nil, err
	}
	i, err := m.Double(name+"/ki", g.I)
	if err != nil {
		return nil, err
	}
	d, err := m.Double(name+"/kd", g.D)
	if err != nil {
		return nil, err
	}
	return &Tuner{pid: pid, p: p, i: i, d: d}, nil
}

// Apply copies the preference values into the loop.
func (t *Tuner) Apply() {
	t.pid.SetGains(PIDGains{P: t.p.Get(), I: t.i.Get(), D: t.d.Get()})
}
