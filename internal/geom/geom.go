// Package geom provides the planar vector and pose algebra backing the drive
// kinematics.
package geom

import "math"

// Vector2 is a 2D vector. In the robot frame X points forward and Y right.
type Vector2 struct {
	X, Y float64
}

// FromAngle returns the unit vector at deg, measured clockwise from +X.
func FromAngle(deg float64) Vector2 {
	rad := deg * math.Pi / 180
	return Vector2{X: math.Cos(rad), Y: math.Sin(rad)}
}

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }

func (v Vector2) Scale(c float64) Vector2 { return Vector2{v.X * c, v.Y * c} }

func (v Vector2) Dot(o Vector2) float64 { return v.X*o.X + v.Y*o.Y }

func (v Vector2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Unit returns the unit vector in v's direction. The zero vector is returned
// unchanged.
func (v Vector2) Unit() Vector2 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Rotate rotates v by deg degrees (positive is clockwise, matching the
// heading convention used by FromAngle).
func (v Vector2) Rotate(deg float64) Vector2 {
	rad := deg * math.Pi / 180
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return Vector2{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// ScalarProject returns the signed length of v's projection onto the
// direction of onto. Projection onto the zero vector is 0.
func (v Vector2) ScalarProject(onto Vector2) float64 {
	n := onto.Norm()
	if n == 0 {
		return 0
	}
	return v.Dot(onto) / n
}

// Pose is a planar position plus heading (radians).
type Pose struct {
	X, Y    float64
	Heading float64
}

// Integrate advances the pose by one step of robot-frame velocities:
// vx forward, vy right, omega radians per second, over dt seconds.
func (p Pose) Integrate(vx, vy, omega, dt float64) Pose {
	heading := p.Heading + omega*dt
	cos := math.Cos(heading)
	sin := math.Sin(heading)
	return Pose{
		X:       p.X + (vx*cos-vy*sin)*dt,
		Y:       p.Y + (vx*sin+vy*cos)*dt,
		Heading: heading,
	}
}

// HeadingDegrees returns the heading in degrees.
func (p Pose) HeadingDegrees() float64 { return p.Heading * 180 / math.Pi }
