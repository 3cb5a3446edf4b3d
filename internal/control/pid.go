package control

import "math"

// PID is a proportional-integral-derivative feedback loop. It is not safe for
// concurrent use; call it from the robot loop only.
type PID struct {
	gains PIDGains

	continuous bool
	inputMin   float64
	inputMax   float64

	integralLimit float64
	outMin        float64
	outMax        float64

	setpoint  float64
	tolerance float64

	integral float64
	prevErr  float64
	lastErr  float64
	primed   bool
}

// NewPID builds a loop with unbounded output and an integral clamp of 1.
func NewPID(g PIDGains) *PID {
	return &PID{
		gains:         g,
		integralLimit: 1,
		outMin:        math.Inf(-1),
		outMax:        math.Inf(1),
	}
}

// EnableContinuousInput treats the measurement as circular over [min, max),
// so the controller takes the short way around, e.g. -170 to 170 degrees.
func (p *PID) EnableContinuousInput(min, max float64) {
	if max <= min {
		return
	}
	p.continuous = true
	p.inputMin = min
	p.inputMax = max
}

// SetOutputRange clamps Calculate's result. Saturation also back-computes the
// integral so it cannot wind up while the output is pinned.
func (p *PID) SetOutputRange(min, max float64) {
	if max <= min {
		return
	}
	p.outMin = min
	p.outMax = max
}

// SetIntegralLimit bounds the accumulated integral term (in error units).
func (p *PID) SetIntegralLimit(limit float64) {
	if limit > 0 {
		p.integralLimit = limit
	}
}

// SetTolerance sets the error band AtSetpoint checks against.
func (p *PID) SetTolerance(tol float64) { p.tolerance = math.Abs(tol) }

func (p *PID) Gains() PIDGains { return p.gains }

// SetGains swaps the feedback gains without disturbing accumulated state.
func (p *PID) SetGains(g PIDGains) { p.gains = g }

func (p *PID) SetSetpoint(v float64) { p.setpoint = v }

func (p *PID) Setpoint() float64 { return p.setpoint }

// AtSetpoint reports whether the last measured error is within tolerance.
func (p *PID) AtSetpoint() bool {
	return p.primed && math.Abs(p.lastErr) <= p.tolerance
}

// Reset clears accumulated state. Call when the mechanism is repositioned or
// the loop has been idle.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.lastErr = 0
	p.primed = false
}

// Calculate runs one iteration against the current setpoint. dt is the time
// since the previous call in seconds; non-positive dt returns zero.
func (p *PID) Calculate(measurement, dt float64) float64 {
	if dt <= 0 {
		return 0
	}

	err := p.setpoint - measurement
	if p.continuous {
		err = wrapError(err, p.inputMin, p.inputMax)
	}
	p.lastErr = err

	prop := p.gains.P * err

	p.integral += err * dt
	p.integral = clampAbs(p.integral, p.integralLimit)
	integ := p.gains.I * p.integral

	var deriv float64
	if p.primed {
		deriv = p.gains.D * (err - p.prevErr) / dt
	}
	p.prevErr = err
	p.primed = true

	out := prop + integ + deriv
	if out > p.outMax || out < p.outMin {
		clamped := math.Min(math.Max(out, p.outMin), p.outMax)
		// Back-calculate the integral so it holds exactly the value that
		// saturates the output, instead of winding past it.
		if p.gains.I != 0 {
			p.integral = clampAbs((clamped-prop-deriv)/p.gains.I, p.integralLimit)
		}
		out = clamped
	}
	return out
}

// wrapError maps err into the half-open circular span [min, max) centered on
// zero, yielding the shortest signed distance.
func wrapError(err, min, max float64) float64 {
	span := max - min
	err = math.Mod(err, span)
	if err > span/2 {
		err -= span
	} else if err < -span/2 {
		err += span
	}
	return err
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
