// Package control provides closed-loop controllers for robot mechanisms:
// PID with continuous-input wrapping and anti-windup, trapezoidal motion
// profiles, and feedforward models. Gains are grouped into named profiles
// that build controllers and fail fast when a required gain set is missing.
package control

import "fmt"

// PIDGains are the feedback gains.
type PIDGains struct {
	P float64
	I float64
	D float64
}

// FeedforwardGains model the plant: static friction, velocity, acceleration
// and gravity terms.
type FeedforwardGains struct {
	S float64
	V float64
	A float64
	G float64
}

// Constraints bound a trapezoidal motion profile.
type Constraints struct {
	MaxVelocity     float64 // units per second
	MaxAcceleration float64 // units per second squared
}

// ContinuousRange marks a measurement as circular, e.g. a heading in
// [-180, 180).
type ContinuousRange struct {
	Min float64
	Max float64
}

// Profile is a named bundle of gains for one mechanism. Factories build
// controllers from whichever gain sets are present and error on gaps, so a
// missing entry in the tuning table surfaces at startup rather than on the
// field.
type Profile struct {
	Name        string
	PID         *PIDGains
	Feedforward *FeedforwardGains
	Constraints *Constraints
	Continuous  *ContinuousRange
}

func (p Profile) missing(what string) error {
	return fmt.Errorf("control: profile %q has no %s gains", p.Name, what)
}

// PIDController builds a plain PID loop. Requires PID gains.
func (p Profile) PIDController() (*PID, error) {
	if p.PID == nil {
		return nil, p.missing("PID")
	}
	pid := NewPID(*p.PID)
	if p.Continuous != nil {
		pid.EnableContinuousInput(p.Continuous.Min, p.Continuous.Max)
	}
	return pid, nil
}

// ProfiledController builds a PID loop tracking a trapezoidal profile.
// Requires PID gains and profile constraints.
func (p Profile) ProfiledController() (*ProfiledPID, error) {
	if p.PID == nil {
		return nil, p.missing("PID")
	}
	if p.Constraints == nil {
		return nil, p.missing("constraint")
	}
	if p.Constraints.MaxVelocity <= 0 || p.Constraints.MaxAcceleration <= 0 {
		return nil, fmt.Errorf("control: profile %q constraints must be > 0", p.Name)
	}
	pid := NewPID(*p.PID)
	if p.Continuous != nil {
		pid.EnableContinuousInput(p.Continuous.Min, p.Continuous.Max)
	}
	return newProfiledPID(pid, *p.Constraints), nil
}

// SimpleFeedforward builds a velocity feedforward, e.g. for a flywheel.
// Requires feedforward gains with a velocity term.
func (p Profile) SimpleFeedforward() (*SimpleFeedforward, error) {
	if p.Feedforward == nil {
		return nil, p.missing("feedforward")
	}
	if p.Feedforward.V == 0 {
		return nil, fmt.Errorf("control: profile %q feedforward needs a velocity gain", p.Name)
	}
	return &SimpleFeedforward{g: *p.Feedforward}, nil
}

// ElevatorFeedforward adds a constant gravity term. Requires feedforward
// gains with a gravity term.
func (p Profile) ElevatorFeedforward() (*ElevatorFeedforward, error) {
	if p.Feedforward == nil {
		return nil, p.missing("feedforward")
	}
	if p.Feedforward.G == 0 {
		return nil, fmt.Errorf("control: profile %q feedforward needs a gravity gain", p.Name)
	}
	return &ElevatorFeedforward{g: *p.Feedforward}, nil
}

// ArmFeedforward scales the gravity term by the arm angle. Requires
// feedforward gains with a gravity term.
func (p Profile) ArmFeedforward() (*ArmFeedforward, error) {
	if p.Feedforward == nil {
		return nil, p.missing("feedforward")
	}
	if p.Feedforward.G == 0 {
		return nil, fmt.Errorf("control: profile %q feedforward needs a gravity gain", p.Name)
	}
	return &ArmFeedforward{g: *p.Feedforward}, nil
}
