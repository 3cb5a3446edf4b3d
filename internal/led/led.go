// Package led renders patterns into a fixed-length RGB buffer and pushes
// frames through a Writer, keeping hardware access behind one interface.
package led

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Color is one RGB pixel.
type Color struct {
	R, G, B uint8
}

// Writer flushes a frame to the strip hardware. The slice is owned by the
// caller and only valid for the duration of the call.
type Writer interface {
	Write(pixels []Color) error
}

// Strip is a fixed-length pixel buffer. Not safe for concurrent use.
type Strip struct {
	w      Writer
	pixels []Color

	solid     bool
	solidPrev Color
}

func NewStrip(w Writer, length int) (*Strip, error) {
	if w == nil {
		return nil, errors.New("led: nil writer")
	}
	if length <= 0 {
		return nil, fmt.Errorf("led: strip length %d must be > 0", length)
	}
	return &Strip{w: w, pixels: make([]Color, length)}, nil
}

func (s *Strip) Len() int { return len(s.pixels) }

func (s *Strip) flush() error { return s.w.Write(s.pixels) }

// Solid fills the strip with one color. Repeating the same color is a no-op,
// so callers can drive it every tick without flooding the bus.
func (s *Strip) Solid(c Color) error {
	if s.solid && s.solidPrev == c {
		return nil
	}
	for i := range s.pixels {
		s.pixels[i] = c
	}
	s.solid = true
	s.solidPrev = c
	return s.flush()
}

// SetPixel writes one pixel and flushes the frame.
func (s *Strip) SetPixel(i int, c Color) error {
	if i < 0 || i >= len(s.pixels) {
		return fmt.Errorf("led: pixel %d out of range [0, %d)", i, len(s.pixels))
	}
	s.pixels[i] = c
	s.solid = false
	return s.flush()
}

// Gradient renders a linear blend from one color to the other, inclusive of
// both endpoints.
func (s *Strip) Gradient(from, to Color) error {
	n := len(s.pixels)
	if n == 1 {
		s.pixels[0] = from
	} else {
		for i := range s.pixels {
			t := float64(i) / float64(n-1)
			s.pixels[i] = lerp(from, to, t)
		}
	}
	s.solid = false
	return s.flush()
}

// Rainbow renders a full hue cycle across the strip.
func (s *Strip) Rainbow() error { return s.rainbow(0) }

// ScrollingRainbow renders a hue cycle rotated by elapsed time; one period
// scrolls the pattern through a full revolution.
func (s *Strip) ScrollingRainbow(elapsed, period time.Duration) error {
	if period <= 0 {
		return errors.New("led: scroll period must be > 0")
	}
	offset := 360 * math.Mod(elapsed.Seconds()/period.Seconds(), 1)
	if offset < 0 {
		offset += 360
	}
	return s.rainbow(offset)
}

func (s *Strip) rainbow(offset float64) error {
	n := len(s.pixels)
	for i := range s.pixels {
		hue := math.Mod(float64(i)*360/float64(n)+offset, 360)
		s.pixels[i] = HSV(hue, 1, 1)
	}
	s.solid = false
	return s.flush()
}

func lerp(from, to Color, t float64) Color {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return Color{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B)}
}

// HSV converts hue in degrees and saturation/value in [0, 1] to RGB.
func HSV(h, s, v float64) Color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to8 := func(f float64) uint8 { return uint8(math.Round((f + m) * 255)) }
	return Color{R: to8(r), G: to8(g), B: to8(b)}
}
