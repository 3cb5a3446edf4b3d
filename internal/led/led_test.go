package led

import (
	"errors"
	"testing"
	"time"
)

type frameWriter struct {
	writes int
	last   []Color
	err    error
}

func (w *frameWriter) Write(pixels []Color) error {
	if w.err != nil {
		return w.err
	}
	w.writes++
	w.last = append(w.last[:0], pixels...)
	return nil
}

func TestNewStripValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewStrip(nil, 8); err == nil {
		t.Fatal("expected error for nil writer")
	}
	if _, err := NewStrip(&frameWriter{}, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestSolidIsIdempotent(t *testing.T) {
	t.Parallel()
	w := &frameWriter{}
	s, err := NewStrip(w, 4)
	if err != nil {
		t.Fatalf("NewStrip: %v", err)
	}

	red := Color{R: 255}
	if err := s.Solid(red); err != nil {
		t.Fatalf("Solid: %v", err)
	}
	if err := s.Solid(red); err != nil {
		t.Fatalf("Solid repeat: %v", err)
	}
	if w.writes != 1 {
		t.Fatalf("writes = %d, want 1 for repeated solid", w.writes)
	}
	for i, p := range w.last {
		if p != red {
			t.Fatalf("pixel %d = %+v, want red", i, p)
		}
	}

	if err := s.Solid(Color{B: 255}); err != nil {
		t.Fatalf("Solid new color: %v", err)
	}
	if w.writes != 2 {
		t.Fatalf("writes = %d, want 2 after color change", w.writes)
	}
}

func TestSetPixelBreaksSolidState(t *testing.T) {
	t.Parallel()
	w := &frameWriter{}
	s, _ := NewStrip(w, 4)

	red := Color{R: 255}
	if err := s.Solid(red); err != nil {
		t.Fatalf("Solid: %v", err)
	}
	if err := s.SetPixel(2, Color{G: 255}); err != nil {
		t.Fatalf("SetPixel: %v", err)
	}
	if w.last[2] != (Color{G: 255}) {
		t.Fatalf("pixel 2 = %+v", w.last[2])
	}
	// Restoring solid after a pixel edit must flush again.
	if err := s.Solid(red); err != nil {
		t.Fatalf("Solid restore: %v", err)
	}
	if w.writes != 3 {
		t.Fatalf("writes = %d, want 3", w.writes)
	}

	if err := s.SetPixel(4, red); err == nil {
		t.Fatal("expected error for out-of-range pixel")
	}
}

func TestGradientEndpoints(t *testing.T) {
	t.Parallel()
	w := &frameWriter{}
	s, _ := NewStrip(w, 5)

	from := Color{R: 255}
	to := Color{B: 255}
	if err := s.Gradient(from, to); err != nil {
		t.Fatalf("Gradient: %v", err)
	}
	if w.last[0] != from {
		t.Fatalf("first pixel = %+v, want %+v", w.last[0], from)
	}
	if w.last[4] != to {
		t.Fatalf("last pixel = %+v, want %+v", w.last[4], to)
	}
	// Midpoint blends both channels.
	mid := w.last[2]
	if mid.R == 0 || mid.B == 0 || mid.G != 0 {
		t.Fatalf("mid pixel = %+v, want a red/blue mix", mid)
	}
}

func TestHSVPrimaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		hue  float64
		want Color
	}{
		{0, Color{R: 255}},
		{120, Color{G: 255}},
		{240, Color{B: 255}},
		{-120, Color{B: 255}},
		{360, Color{R: 255}},
	}
	for _, tc := range tests {
		if got := HSV(tc.hue, 1, 1); got != tc.want {
			t.Fatalf("HSV(%v) = %+v, want %+v", tc.hue, got, tc.want)
		}
	}
	if got := HSV(0, 0, 0); got != (Color{}) {
		t.Fatalf("HSV black = %+v", got)
	}
}

func TestScrollingRainbowRotates(t *testing.T) {
	t.Parallel()
	w := &frameWriter{}
	s, _ := NewStrip(w, 6)

	if err := s.ScrollingRainbow(0, 0); err == nil {
		t.Fatal("expected error for zero period")
	}

	if err := s.ScrollingRainbow(0, time.Second); err != nil {
		t.Fatalf("ScrollingRainbow: %v", err)
	}
	frame0 := append([]Color(nil), w.last...)

	// One sixth of the period shifts the pattern by exactly one pixel.
	if err := s.ScrollingRainbow(time.Second/6, time.Second); err != nil {
		t.Fatalf("ScrollingRainbow: %v", err)
	}
	for i := range frame0 {
		want := frame0[(i+1)%len(frame0)]
		if w.last[i] != want {
			t.Fatalf("pixel %d = %+v, want %+v", i, w.last[i], want)
		}
	}

	// A full period lands back on the first frame.
	if err := s.ScrollingRainbow(time.Second, time.Second); err != nil {
		t.Fatalf("ScrollingRainbow: %v", err)
	}
	for i := range frame0 {
		if w.last[i] != frame0[i] {
			t.Fatalf("pixel %d after full period = %+v, want %+v", i, w.last[i], frame0[i])
		}
	}
}

func TestWriterErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("bus stalled")
	s, _ := NewStrip(&frameWriter{err: boom}, 3)
	if err := s.Solid(Color{R: 1}); !errors.Is(err, boom) {
		t.Fatalf("Solid err = %v, want %v", err, boom)
	}
}
