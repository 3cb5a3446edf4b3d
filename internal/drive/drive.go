// Package drive implements the drivetrain controllers: a three-wheeled
// Killough (omnidirectional) drive with dead-reckoned odometry and a
// differential arcade drive with the swag overlay.
package drive

import "math"

// Motor is the minimal motor-controller surface the drivetrains talk to.
// Set takes a duty cycle in [-1, 1]; Get reports the last commanded value.
type Motor interface {
	Set(speed float64)
	Get() float64
}

// normalizeWheelSpeeds scales all speeds down proportionally when any
// magnitude exceeds 1, preserving the commanded direction of travel.
func normalizeWheelSpeeds(speeds []float64) {
	max := 0.0
	for _, s := range speeds {
		if a := math.Abs(s); a > max {
			max = a
		}
	}
	if max <= 1 {
		return
	}
	for i := range speeds {
		speeds[i] /= max
	}
}
