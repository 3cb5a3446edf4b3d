// Package filter holds the small deterministic signal-shaping utilities used
// between operator input and drivetrain output: clamping, deadband curves and
// slew-rate limiters.
//
// Everything here is pure or small-state and never allocates on the hot path.
// Constructors fail fast on invalid parameters; Calculate/Apply never fail.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(math.Min(v, hi), lo)
}

// Deadband returns 0 when |v| is inside band, v otherwise.
func Deadband(v, band float64) float64 {
	if math.Abs(v) < band {
		return 0
	}
	return v
}

// Curve maps an operator input through a shaping function with a deadband,
// an offset and an optional output magnitude limit.
type Curve struct {
	fn        func(float64) float64
	offset    float64
	deadband  float64
	maxMag    float64
	absOffset bool
}

// NewCurve builds a curve from a mapping function.
//
//   - offset is added to the output. In absolute mode it is added as-is (and
//     is the output inside the deadband); otherwise it takes the input's sign
//     and the deadbanded output is 0.
//   - deadband: inputs with |in| < deadband produce no mapped output.
//   - maxMag restricts the output magnitude; 0 disables the restriction.
func NewCurve(fn func(float64) float64, offset, deadband, maxMag float64, absoluteOffset bool) (*Curve, error) {
	if fn == nil {
		return nil, errors.New("filter: nil mapping function")
	}
	if deadband < 0 {
		return nil, fmt.Errorf("filter: deadband must be >= 0 (got %v)", deadband)
	}
	if maxMag < 0 {
		return nil, fmt.Errorf("filter: max magnitude must be >= 0 (got %v)", maxMag)
	}
	return &Curve{fn: fn, offset: offset, deadband: deadband, maxMag: maxMag, absOffset: absoluteOffset}, nil
}

// NewLinearCurve shapes with scalar*x.
func NewLinearCurve(scalar, offset, deadband, maxMag float64, absoluteOffset bool) (*Curve, error) {
	return NewCurve(func(x float64) float64 { return scalar * x }, offset, deadband, maxMag, absoluteOffset)
}

// NewSquaredCurve shapes with scalar*x*|x|, preserving the input sign.
func NewSquaredCurve(scalar, offset, deadband, maxMag float64, absoluteOffset bool) (*Curve, error) {
	return NewCurve(func(x float64) float64 { return scalar * x * math.Abs(x) }, offset, deadband, maxMag, absoluteOffset)
}

// NewCubicCurve shapes with scalar*x^3.
func NewCubicCurve(scalar, offset, deadband, maxMag float64, absoluteOffset bool) (*Curve, error) {
	return NewCurve(func(x float64) float64 { return scalar * x * x * x }, offset, deadband, maxMag, absoluteOffset)
}

// Apply maps one input sample to an output.
func (c *Curve) Apply(in float64) float64 {
	if math.Abs(in) < c.deadband {
		if c.absOffset {
			return c.offset
		}
		return 0
	}
	applied := c.offset
	if !c.absOffset && in < 0 {
		applied = -c.offset
	}
	out := c.fn(in) + applied
	if c.maxMag == 0 {
		return out
	}
	return Clamp(out, -c.maxMag, c.maxMag)
}

// SlewLimiter bounds the rate of change of a signal, with separate limits for
// rising and falling edges.
type SlewLimiter struct {
	rising  float64 // units per second
	falling float64 // units per second
	prev    float64
}

func NewSlewLimiter(risingRate, fallingRate, initial float64) (*SlewLimiter, error) {
	if risingRate <= 0 {
		return nil, fmt.Errorf("filter: rising rate must be > 0 (got %v)", risingRate)
	}
	if fallingRate <= 0 {
		return nil, fmt.Errorf("filter: falling rate must be > 0 (got %v)", fallingRate)
	}
	return &SlewLimiter{rising: risingRate, falling: fallingRate, prev: initial}, nil
}

// Calculate moves the previous output toward input by at most rising*dt when
// increasing or falling*dt when decreasing. dt is in seconds; non-positive
// deltas leave the output unchanged.
func (l *SlewLimiter) Calculate(input, dt float64) float64 {
	if dt <= 0 {
		return l.prev
	}
	diff := input - l.prev
	if diff > 0 {
		l.prev += math.Min(diff, l.rising*dt)
	} else {
		l.prev += math.Max(diff, -l.falling*dt)
	}
	return l.prev
}

// Last returns the last output value.
func (l *SlewLimiter) Last() float64 { return l.prev }

// Reset jumps the output to v without rate limiting.
func (l *SlewLimiter) Reset(v float64) { l.prev = v }

// OneWaySlewLimiter limits only the falling direction; rises pass through
// unmodified. Suitable for signals where positive overshoot is acceptable but
// large negative steps must be smoothed (e.g. cutting drive power).
type OneWaySlewLimiter struct {
	fallRate float64 // units per second, positive
	prev     float64
}

func NewOneWaySlewLimiter(fallRate float64) (*OneWaySlewLimiter, error) {
	if fallRate <= 0 {
		return nil, fmt.Errorf("filter: fall rate must be > 0 (got %v)", fallRate)
	}
	return &OneWaySlewLimiter{fallRate: fallRate}, nil
}

func (l *OneWaySlewLimiter) Calculate(input, dt float64) float64 {
	if input >= l.prev {
		l.prev = input
		return input
	}
	if dt <= 0 {
		return l.prev
	}
	candidate := l.prev - l.fallRate*dt
	if candidate > input {
		l.prev = candidate
	} else {
		l.prev = input
	}
	return l.prev
}

func (l *OneWaySlewLimiter) Last() float64 { return l.prev }

func (l *OneWaySlewLimiter) Reset(v float64) { l.prev = v }
