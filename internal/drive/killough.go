package drive

import (
	"errors"
	"fmt"
	"math"

	"lemonlib/internal/filter"
	"lemonlib/internal/geom"
)

// Default wheel placements, degrees clockwise from +X (robot forward).
const (
	DefaultLeftWheelAngle  = 60.0
	DefaultRightWheelAngle = 120.0
	DefaultBackWheelAngle  = 270.0
)

type KilloughConfig struct {
	// Wheel drive directions, degrees clockwise from robot forward.
	LeftAngle  float64
	RightAngle float64
	BackAngle  float64

	Deadband  float64 // stick inputs below this are ignored
	MaxOutput float64 // scales the final wheel duty cycles, (0, 1]

	// Odometry scale: chassis speed at full output.
	MaxSpeed    float64 // meters per second
	MaxTurnRate float64 // radians per second
}

func DefaultKilloughConfig() KilloughConfig {
	return KilloughConfig{
		LeftAngle:   DefaultLeftWheelAngle,
		RightAngle:  DefaultRightWheelAngle,
		BackAngle:   DefaultBackWheelAngle,
		Deadband:    0.02,
		MaxOutput:   1.0,
		MaxSpeed:    3.0,
		MaxTurnRate: math.Pi,
	}
}

// Killough drives three omni wheels by projecting the commanded translation
// onto each wheel's drive direction and adding the rotation term. It also
// dead-reckons a chassis pose from the commanded velocities.
type Killough struct {
	left, right, back Motor
	leftVec           geom.Vector2
	rightVec          geom.Vector2
	backVec           geom.Vector2
	cfg               KilloughConfig

	pose   geom.Pose
	speeds [3]float64
}

func NewKillough(left, right, back Motor, cfg KilloughConfig) (*Killough, error) {
	if left == nil || right == nil || back == nil {
		return nil, errors.New("drive: killough requires three motors")
	}
	if cfg.Deadband < 0 || cfg.Deadband >= 1 {
		return nil, fmt.Errorf("drive: deadband must be in [0, 1) (got %v)", cfg.Deadband)
	}
	if cfg.MaxOutput <= 0 || cfg.MaxOutput > 1 {
		return nil, fmt.Errorf("drive: max output must be in (0, 1] (got %v)", cfg.MaxOutput)
	}
	if cfg.MaxSpeed <= 0 || cfg.MaxTurnRate <= 0 {
		return nil, fmt.Errorf("drive: odometry scales must be > 0 (got speed %v, turn %v)", cfg.MaxSpeed, cfg.MaxTurnRate)
	}
	return &Killough{
		left:     left,
		right:    right,
		back:     back,
		leftVec:  geom.FromAngle(cfg.LeftAngle),
		rightVec: geom.FromAngle(cfg.RightAngle),
		backVec:  geom.FromAngle(cfg.BackAngle),
		cfg:      cfg,
	}, nil
}

// DriveCartesian commands the chassis with robot- or field-relative inputs.
// forward and strafe are stick values in [-1, 1] (strafe positive to the
// right), rotation is the turn command in [-1, 1] (positive clockwise).
// gyroDeg is the current robot heading; pass 0 for robot-relative driving.
// dt is the loop period in seconds and advances the odometry.
func (k *Killough) DriveCartesian(forward, strafe, rotation, gyroDeg, dt float64) {
	forward = filter.Deadband(filter.Clamp(forward, -1, 1), k.cfg.Deadband)
	strafe = filter.Deadband(filter.Clamp(strafe, -1, 1), k.cfg.Deadband)
	rotation = filter.Deadband(filter.Clamp(rotation, -1, 1), k.cfg.Deadband)

	// Rotate the field-relative stick vector into the robot frame.
	input := geom.Vector2{X: forward, Y: strafe}.Rotate(-gyroDeg)

	speeds := []float64{
		input.ScalarProject(k.leftVec) + rotation,
		input.ScalarProject(k.rightVec) + rotation,
		input.ScalarProject(k.backVec) + rotation,
	}
	normalizeWheelSpeeds(speeds)

	k.left.Set(speeds[0] * k.cfg.MaxOutput)
	k.right.Set(speeds[1] * k.cfg.MaxOutput)
	k.back.Set(speeds[2] * k.cfg.MaxOutput)
	copy(k.speeds[:], speeds)

	if dt > 0 {
		k.pose = k.pose.Integrate(
			input.X*k.cfg.MaxSpeed,
			input.Y*k.cfg.MaxSpeed,
			rotation*k.cfg.MaxTurnRate,
			dt,
		)
	}
}

// DrivePolar commands the chassis with a magnitude in [0, 1] and a travel
// direction in degrees clockwise from robot forward. Always robot-relative.
func (k *Killough) DrivePolar(magnitude, angleDeg, rotation, dt float64) {
	magnitude = filter.Clamp(magnitude, -1, 1)
	rad := angleDeg * math.Pi / 180
	k.DriveCartesian(magnitude*math.Cos(rad), magnitude*math.Sin(rad), rotation, 0, dt)
}

// StopMotors sets all wheel outputs to zero.
func (k *Killough) StopMotors() {
	k.left.Set(0)
	k.right.Set(0)
	k.back.Set(0)
	k.speeds = [3]float64{}
}

// WheelSpeeds reports the last normalized wheel commands (left, right, back),
// before MaxOutput scaling.
func (k *Killough) WheelSpeeds() [3]float64 { return k.speeds }

// Pose returns the dead-reckoned chassis pose.
func (k *Killough) Pose() geom.Pose { return k.pose }

// ResetPose re-zeroes the odometry.
func (k *Killough) ResetPose() { k.pose = geom.Pose{} }
