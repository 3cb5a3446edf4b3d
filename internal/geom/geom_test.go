package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) <= eps }

func TestRotate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    Vector2
		deg  float64
		want Vector2
	}{
		{name: "identity", v: Vector2{1, 0}, deg: 0, want: Vector2{1, 0}},
		{name: "quarter turn", v: Vector2{1, 0}, deg: 90, want: Vector2{0, 1}},
		{name: "half turn", v: Vector2{1, 2}, deg: 180, want: Vector2{-1, -2}},
		{name: "negative", v: Vector2{0, 1}, deg: -90, want: Vector2{1, 0}},
	}
	for _, tt := range tests {
		got := tt.v.Rotate(tt.deg)
		if !approx(got.X, tt.want.X) || !approx(got.Y, tt.want.Y) {
			t.Fatalf("%s: Rotate = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestScalarProject(t *testing.T) {
	t.Parallel()
	v := Vector2{3, 4}
	if got := v.ScalarProject(Vector2{1, 0}); !approx(got, 3) {
		t.Fatalf("project onto x = %v, want 3", got)
	}
	// Projection magnitude is independent of the target's length.
	if got := v.ScalarProject(Vector2{10, 0}); !approx(got, 3) {
		t.Fatalf("project onto long x = %v, want 3", got)
	}
	if got := v.ScalarProject(Vector2{}); got != 0 {
		t.Fatalf("project onto zero = %v, want 0", got)
	}
}

func TestFromAngleUnit(t *testing.T) {
	t.Parallel()
	for _, deg := range []float64{0, 30, 60, 120, 270, -45} {
		v := FromAngle(deg)
		if !approx(v.Norm(), 1) {
			t.Fatalf("FromAngle(%v) norm = %v", deg, v.Norm())
		}
	}
}

func TestPoseIntegrate(t *testing.T) {
	t.Parallel()
	// Driving straight ahead with no rotation accumulates X only.
	p := Pose{}
	for i := 0; i < 50; i++ {
		p = p.Integrate(1, 0, 0, 0.02)
	}
	if !approx(p.X, 1) || !approx(p.Y, 0) || !approx(p.Heading, 0) {
		t.Fatalf("straight drive pose = %+v", p)
	}

	// Pure rotation leaves position untouched.
	p = Pose{}
	p = p.Integrate(0, 0, math.Pi, 0.5)
	if !approx(p.X, 0) || !approx(p.Y, 0) || !approx(p.HeadingDegrees(), 90) {
		t.Fatalf("rotation pose = %+v", p)
	}
}
