package control

import "math"

// State is a position and velocity sample along a motion profile.
type State struct {
	Position float64
	Velocity float64
}

// TrapezoidProfile plans motion that accelerates at the constraint limit,
// cruises at max velocity when the move is long enough, and decelerates to
// arrive at the goal state.
type TrapezoidProfile struct {
	c Constraints
}

func NewTrapezoidProfile(c Constraints) *TrapezoidProfile {
	return &TrapezoidProfile{c: c}
}

// Calculate returns the profile state dt seconds after current, heading for
// goal under the profile's constraints.
func (p *TrapezoidProfile) Calculate(dt float64, current, goal State) State {
	flip := current.Position > goal.Position
	if flip {
		current = invert(current)
		goal = invert(goal)
	}

	maxVel := p.c.MaxVelocity
	maxAcc := p.c.MaxAcceleration
	if current.Velocity > maxVel {
		current.Velocity = maxVel
	}

	// Extend the profile backward and forward to the zero-velocity points so
	// nonzero endpoint velocities reduce to the full-trapezoid case.
	cutoffBegin := current.Velocity / maxAcc
	cutoffDistBegin := cutoffBegin * cutoffBegin * maxAcc / 2

	cutoffEnd := goal.Velocity / maxAcc
	cutoffDistEnd := cutoffEnd * cutoffEnd * maxAcc / 2

	fullTrapezoidDist := cutoffDistBegin + (goal.Position - current.Position) + cutoffDistEnd
	accelTime := maxVel / maxAcc

	fullSpeedDist := fullTrapezoidDist - accelTime*accelTime*maxAcc
	if fullSpeedDist < 0 {
		// Triangle profile: never reaches max velocity.
		accelTime = math.Sqrt(fullTrapezoidDist / maxAcc)
		fullSpeedDist = 0
	}

	endAccel := accelTime - cutoffBegin
	endFullSpeed := endAccel + fullSpeedDist/maxVel
	endDecel := endFullSpeed + accelTime - cutoffEnd

	out := current
	switch {
	case dt < endAccel:
		out.Velocity += dt * maxAcc
		out.Position += (current.Velocity + dt*maxAcc/2) * dt
	case dt < endFullSpeed:
		out.Velocity = accelTime * maxAcc
		out.Position += (current.Velocity+endAccel*maxAcc/2)*endAccel +
			out.Velocity*(dt-endAccel)
	case dt <= endDecel:
		left := endDecel - dt
		out.Velocity = goal.Velocity + left*maxAcc
		out.Position = goal.Position - (goal.Velocity+left*maxAcc/2)*left
	default:
		out = goal
	}

	if flip {
		out = invert(out)
	}
	return out
}

func invert(s State) State {
	return State{Position: -s.Position, Velocity: -s.Velocity}
}

// ProfiledPID runs a PID loop whose setpoint follows a trapezoidal profile
// toward a goal, so step changes in the goal turn into smooth motion.
type ProfiledPID struct {
	pid     *PID
	profile *TrapezoidProfile
	goal    State
	sp      State
}

func newProfiledPID(pid *PID, c Constraints) *ProfiledPID {
	return &ProfiledPID{pid: pid, profile: NewTrapezoidProfile(c)}
}

// SetGoal sets the final state the profile converges to.
func (c *ProfiledPID) SetGoal(g State) { c.goal = g }

func (c *ProfiledPID) Goal() State { return c.goal }

// ProfileSetpoint returns the intermediate state the loop is tracking.
func (c *ProfiledPID) ProfileSetpoint() State { return c.sp }

func (c *ProfiledPID) Setpoint() float64 { return c.sp.Position }

func (c *ProfiledPID) SetTolerance(tol float64) { c.pid.SetTolerance(tol) }

// AtGoal reports whether the profile has reached the goal and the measured
// error is inside tolerance.
func (c *ProfiledPID) AtGoal() bool {
	return c.sp == c.goal && c.pid.AtSetpoint()
}

// Reset re-anchors the profile at the given measurement and clears the loop.
func (c *ProfiledPID) Reset(measurement float64) {
	c.pid.Reset()
	c.sp = State{Position: measurement}
}

// Calculate advances the profile by dt and runs the feedback loop against the
// new intermediate setpoint.
func (c *ProfiledPID) Calculate(measurement, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	c.sp = c.profile.Calculate(dt, c.sp, c.goal)
	c.pid.SetSetpoint(c.sp.Position)
	return c.pid.Calculate(measurement, dt)
}
