package control

import "math"

// SimpleFeedforward models a mechanism with static friction, a velocity term
// and an acceleration term. Suitable for flywheels and drivetrains.
type SimpleFeedforward struct {
	g FeedforwardGains
}

// Calculate returns the output needed to sustain the given velocity and
// acceleration.
func (f *SimpleFeedforward) Calculate(velocity, acceleration float64) float64 {
	return f.g.S*sign(velocity) + f.g.V*velocity + f.g.A*acceleration
}

// ElevatorFeedforward adds a constant gravity term for vertical mechanisms.
type ElevatorFeedforward struct {
	g FeedforwardGains
}

func (f *ElevatorFeedforward) Calculate(velocity, acceleration float64) float64 {
	return f.g.G + f.g.S*sign(velocity) + f.g.V*velocity + f.g.A*acceleration
}

// ArmFeedforward scales the gravity term by the cosine of the arm angle,
// measured in radians from horizontal.
type ArmFeedforward struct {
	g FeedforwardGains
}

func (f *ArmFeedforward) Calculate(angleRad, velocity, acceleration float64) float64 {
	return f.g.G*math.Cos(angleRad) + f.g.S*sign(velocity) + f.g.V*velocity + f.g.A*acceleration
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
