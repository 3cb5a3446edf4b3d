package vision

import (
	"testing"
	"time"

	"lemonlib/internal/geom"
)

type fakeSource struct {
	obs []Observation
	ok  bool
}

func (f *fakeSource) Observations() ([]Observation, bool) { return f.obs, f.ok }

func TestEmptyCamera(t *testing.T) {
	t.Parallel()
	c := NewCamera(&fakeSource{})
	if c.Refresh() {
		t.Fatal("Refresh with no frame must report false")
	}
	if c.HasTargets() {
		t.Fatal("HasTargets on empty camera")
	}
	if _, ok := c.BestTarget(); ok {
		t.Fatal("BestTarget on empty camera")
	}
	if _, ok := c.Latency(); ok {
		t.Fatal("Latency on empty camera")
	}
	if NewCamera(nil).Refresh() {
		t.Fatal("nil source must never refresh")
	}
}

func TestBestTargetByAmbiguity(t *testing.T) {
	t.Parallel()
	src := &fakeSource{
		ok: true,
		obs: []Observation{
			{ID: 4, Ambiguity: 0.3, Latency: 40 * time.Millisecond},
			{ID: 7, Ambiguity: 0.05, Latency: 25 * time.Millisecond, Pose: geom.Pose{X: 1.5}},
			{ID: 2, Ambiguity: 0.6},
		},
	}
	c := NewCamera(src)
	if !c.Refresh() {
		t.Fatal("Refresh failed with a fresh frame")
	}

	if !c.HasTargets() {
		t.Fatal("HasTargets = false")
	}
	best, ok := c.BestTarget()
	if !ok || best.ID != 7 {
		t.Fatalf("BestTarget = %+v, ok %v, want tag 7", best, ok)
	}
	if best.Pose.X != 1.5 {
		t.Fatalf("best pose = %+v", best.Pose)
	}

	if !c.HasTag(2) || c.HasTag(9) {
		t.Fatalf("HasTag: 2=%v 9=%v", c.HasTag(2), c.HasTag(9))
	}
	got, ok := c.Target(4)
	if !ok || got.Ambiguity != 0.3 {
		t.Fatalf("Target(4) = %+v, ok %v", got, ok)
	}

	lat, ok := c.Latency()
	if !ok || lat != 25*time.Millisecond {
		t.Fatalf("Latency = %v, ok %v", lat, ok)
	}

	order := c.Targets()
	if len(order) != 3 || order[0].ID != 7 || order[1].ID != 4 || order[2].ID != 2 {
		t.Fatalf("Targets order = %+v", order)
	}
}

func TestStaleFrameKeepsLastObservations(t *testing.T) {
	t.Parallel()
	src := &fakeSource{ok: true, obs: []Observation{{ID: 3, Ambiguity: 0.1}}}
	c := NewCamera(src)
	if !c.Refresh() {
		t.Fatal("Refresh failed")
	}

	// Camera loses its frame: old observations stand, Refresh reports it.
	src.ok = false
	src.obs = nil
	if c.Refresh() {
		t.Fatal("Refresh must report false without a fresh frame")
	}
	if !c.HasTag(3) {
		t.Fatal("stale refresh dropped previous observations")
	}

	// An empty fresh frame clears them.
	src.ok = true
	if !c.Refresh() {
		t.Fatal("Refresh failed with empty fresh frame")
	}
	if c.HasTargets() {
		t.Fatal("HasTargets after empty frame")
	}
}
