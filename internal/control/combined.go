package control

// Flywheel pairs velocity PID with a simple feedforward: the feedforward
// supplies the bulk of the output and PID trims the residual error.
type Flywheel struct {
	pid *PID
	ff  *SimpleFeedforward
}

// Flywheel requires PID gains and a feedforward velocity gain.
func (p Profile) Flywheel() (*Flywheel, error) {
	pid, err := p.PIDController()
	if err != nil {
		return nil, err
	}
	ff, err := p.SimpleFeedforward()
	if err != nil {
		return nil, err
	}
	return &Flywheel{pid: pid, ff: ff}, nil
}

// SetVelocity sets the target velocity.
func (f *Flywheel) SetVelocity(v float64) { f.pid.SetSetpoint(v) }

func (f *Flywheel) Setpoint() float64 { return f.pid.Setpoint() }

func (f *Flywheel) AtSetpoint() bool { return f.pid.AtSetpoint() }

func (f *Flywheel) SetTolerance(tol float64) { f.pid.SetTolerance(tol) }

func (f *Flywheel) Reset() { f.pid.Reset() }

func (f *Flywheel) Calculate(measurement, dt float64) float64 {
	return f.pid.Calculate(measurement, dt) + f.ff.Calculate(f.pid.Setpoint(), 0)
}

// Elevator pairs a profiled position loop with a gravity-holding
// feedforward fed by the profile velocity.
type Elevator struct {
	pp *ProfiledPID
	ff *ElevatorFeedforward
}

// Elevator requires PID gains, profile constraints and a feedforward
// gravity gain.
func (p Profile) Elevator() (*Elevator, error) {
	pp, err := p.ProfiledController()
	if err != nil {
		return nil, err
	}
	ff, err := p.ElevatorFeedforward()
	if err != nil {
		return nil, err
	}
	return &Elevator{pp: pp, ff: ff}, nil
}

// SetGoal sets the target height.
func (e *Elevator) SetGoal(position float64) {
	e.pp.SetGoal(State{Position: position})
}

func (e *Elevator) Setpoint() float64 { return e.pp.Setpoint() }

func (e *Elevator) AtGoal() bool { return e.pp.AtGoal() }

func (e *Elevator) SetTolerance(tol float64) { e.pp.SetTolerance(tol) }

// Reset re-anchors the profile at the current height.
func (e *Elevator) Reset(measurement float64) { e.pp.Reset(measurement) }

func (e *Elevator) Calculate(measurement, dt float64) float64 {
	out := e.pp.Calculate(measurement, dt)
	return out + e.ff.Calculate(e.pp.ProfileSetpoint().Velocity, 0)
}
