// Package hid maps raw gamepad state onto a uniform control surface so robot
// code reads A() and LeftX() regardless of whether an Xbox or PS5 pad is
// plugged in.
package hid

import (
	"math"
	"strings"

	"lemonlib/internal/filter"
	"lemonlib/internal/geom"
)

// StateProvider is the raw device: button and axis state by index plus the
// POV hat angle in degrees clockwise from up, -1 when centered.
type StateProvider interface {
	Button(index int) bool
	Axis(index int) float64
	POV() int
}

// DeviceInfo identifies the attached device for layout detection.
type DeviceInfo interface {
	Name() string
}

// Layout maps logical controls to device button and axis indices.
type Layout struct {
	A, B, X, Y                int
	LeftBumper, RightBumper   int
	Back, Start               int
	LeftStick, RightStick     int
	LeftXAxis, LeftYAxis      int
	RightXAxis, RightYAxis    int
	LeftTrigger, RightTrigger int

	// TriggersCentered marks triggers that rest at -1 and saturate at +1;
	// the accessors normalize them to [0, 1].
	TriggersCentered bool
}

// XboxLayout is the stock Xbox controller map.
func XboxLayout() Layout {
	return Layout{
		A: 1, B: 2, X: 3, Y: 4,
		LeftBumper: 5, RightBumper: 6,
		Back: 7, Start: 8,
		LeftStick: 9, RightStick: 10,
		LeftXAxis: 0, LeftYAxis: 1,
		RightXAxis: 4, RightYAxis: 5,
		LeftTrigger: 2, RightTrigger: 3,
	}
}

// PS5Layout maps a DualSense pad onto the same logical controls: cross is A,
// circle is B, square is X, triangle is Y.
func PS5Layout() Layout {
	return Layout{
		A: 2, B: 3, X: 1, Y: 4,
		LeftBumper: 5, RightBumper: 6,
		Back: 9, Start: 10,
		LeftStick: 11, RightStick: 12,
		LeftXAxis: 0, LeftYAxis: 1,
		RightXAxis: 2, RightYAxis: 5,
		LeftTrigger: 3, RightTrigger: 4,
		TriggersCentered: true,
	}
}

// DetectLayout picks a layout from the reported device name. Unknown devices
// fall back to the Xbox map.
func DetectLayout(info DeviceInfo) Layout {
	if info == nil {
		return XboxLayout()
	}
	name := strings.ToLower(info.Name())
	for _, tag := range []string{"ps5", "dualsense", "wireless controller"} {
		if strings.Contains(name, tag) {
			return PS5Layout()
		}
	}
	return XboxLayout()
}

// DefaultDeadband is applied to stick axes unless overridden.
const DefaultDeadband = 0.06

// Gamepad reads a StateProvider through a Layout.
type Gamepad struct {
	src      StateProvider
	layout   Layout
	deadband float64
}

func New(src StateProvider, layout Layout) *Gamepad {
	return &Gamepad{src: src, layout: layout, deadband: DefaultDeadband}
}

// SetDeadband sets the stick deadband; values outside [0, 1) are ignored.
func (g *Gamepad) SetDeadband(b float64) {
	if b >= 0 && b < 1 {
		g.deadband = b
	}
}

func (g *Gamepad) A() bool { return g.src.Button(g.layout.A) }
func (g *Gamepad) B() bool { return g.src.Button(g.layout.B) }
func (g *Gamepad) X() bool { return g.src.Button(g.layout.X) }
func (g *Gamepad) Y() bool { return g.src.Button(g.layout.Y) }

func (g *Gamepad) LeftBumper() bool  { return g.src.Button(g.layout.LeftBumper) }
func (g *Gamepad) RightBumper() bool { return g.src.Button(g.layout.RightBumper) }
func (g *Gamepad) Back() bool        { return g.src.Button(g.layout.Back) }
func (g *Gamepad) Start() bool       { return g.src.Button(g.layout.Start) }
func (g *Gamepad) LeftStick() bool   { return g.src.Button(g.layout.LeftStick) }
func (g *Gamepad) RightStick() bool  { return g.src.Button(g.layout.RightStick) }

func (g *Gamepad) LeftX() float64  { return g.stick(g.layout.LeftXAxis) }
func (g *Gamepad) LeftY() float64  { return g.stick(g.layout.LeftYAxis) }
func (g *Gamepad) RightX() float64 { return g.stick(g.layout.RightXAxis) }
func (g *Gamepad) RightY() float64 { return g.stick(g.layout.RightYAxis) }

func (g *Gamepad) stick(idx int) float64 {
	return filter.Deadband(filter.Clamp(g.src.Axis(idx), -1, 1), g.deadband)
}

// LeftTriggerValue returns the trigger position in [0, 1].
func (g *Gamepad) LeftTriggerValue() float64 { return g.trigger(g.layout.LeftTrigger) }

// RightTriggerValue returns the trigger position in [0, 1].
func (g *Gamepad) RightTriggerValue() float64 { return g.trigger(g.layout.RightTrigger) }

func (g *Gamepad) trigger(idx int) float64 {
	v := filter.Clamp(g.src.Axis(idx), -1, 1)
	if g.layout.TriggersCentered {
		v = (v + 1) / 2
	}
	if v < 0 {
		v = 0
	}
	return v
}

// POV returns the hat angle in degrees clockwise from up, -1 when centered.
func (g *Gamepad) POV() int { return g.src.POV() }

// POVVector converts the hat angle to a unit vector with +X right and +Y up.
// ok is false while the hat is centered.
func (g *Gamepad) POVVector() (v geom.Vector2, ok bool) {
	deg := g.src.POV()
	if deg < 0 {
		return geom.Vector2{}, false
	}
	rad := float64(deg) * math.Pi / 180
	return geom.Vector2{X: math.Sin(rad), Y: math.Cos(rad)}, true
}
