package control

import "lemonlib/internal/telemetry"

// Loop is a feedback controller driven once per robot tick. Both *PID and
// *ProfiledPID satisfy it.
type Loop interface {
	Calculate(measurement, dt float64) float64
	Setpoint() float64
}

// Controller wraps a Loop with telemetry: each update publishes the
// reference, measurement, error and output under control/<name>/.
type Controller struct {
	name string
	loop Loop
	tel  *telemetry.Table
}

// NewController wraps loop. tel may be nil to disable publishing.
func NewController(name string, loop Loop, tel *telemetry.Table) *Controller {
	return &Controller{name: name, loop: loop, tel: tel}
}

func (c *Controller) Name() string { return c.name }

// Update runs one loop iteration and publishes the sample.
func (c *Controller) Update(measurement, dt float64) float64 {
	out := c.loop.Calculate(measurement, dt)
	if c.tel != nil {
		ref := c.loop.Setpoint()
		prefix := "control/" + c.name + "/"
		_ = c.tel.PutDouble(prefix+"reference", ref)
		_ = c.tel.PutDouble(prefix+"measurement", measurement)
		_ = c.tel.PutDouble(prefix+"error", ref-measurement)
		_ = c.tel.PutDouble(prefix+"output", out)
	}
	return out
}
