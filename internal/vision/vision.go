// Package vision filters fiducial-target observations from a camera pipeline
// and picks the most trustworthy target for aiming.
package vision

import (
	"sort"
	"time"

	"lemonlib/internal/geom"
)

// Observation is one fiducial sighting from the pipeline. Ambiguity is the
// pose-solve ambiguity in [0, 1]; lower is more trustworthy.
type Observation struct {
	ID        int
	Pose      geom.Pose
	Ambiguity float64
	Latency   time.Duration
}

// Source produces the latest pipeline result. ok is false when the camera
// has no fresh frame.
type Source interface {
	Observations() (obs []Observation, ok bool)
}

// Camera wraps a Source with target queries. Results are pulled per call;
// the caller decides when a tick's worth of queries should share a frame via
// Refresh.
type Camera struct {
	src Source

	obs  []Observation
	seen bool
}

func NewCamera(src Source) *Camera {
	return &Camera{src: src}
}

// Refresh pulls the latest frame from the source. With no fresh frame the
// previous observations are kept and Refresh reports false.
func (c *Camera) Refresh() bool {
	if c.src == nil {
		return false
	}
	obs, ok := c.src.Observations()
	if !ok {
		return false
	}
	c.obs = append(c.obs[:0], obs...)
	sort.SliceStable(c.obs, func(i, j int) bool {
		return c.obs[i].Ambiguity < c.obs[j].Ambiguity
	})
	c.seen = true
	return true
}

// HasTargets reports whether the last frame contained any target.
func (c *Camera) HasTargets() bool { return c.seen && len(c.obs) > 0 }

// HasTag reports whether the last frame contained the given fiducial.
func (c *Camera) HasTag(id int) bool {
	for _, o := range c.obs {
		if o.ID == id {
			return true
		}
	}
	return false
}

// BestTarget returns the observation with the lowest ambiguity.
func (c *Camera) BestTarget() (Observation, bool) {
	if !c.HasTargets() {
		return Observation{}, false
	}
	return c.obs[0], true
}

// Target returns the observation of a specific fiducial.
func (c *Camera) Target(id int) (Observation, bool) {
	for _, o := range c.obs {
		if o.ID == id {
			return o, true
		}
	}
	return Observation{}, false
}

// Targets returns the last frame's observations ordered by ambiguity.
func (c *Camera) Targets() []Observation {
	return append([]Observation(nil), c.obs...)
}

// Latency returns the pipeline latency of the best target. ok is false when
// there is nothing to measure, so callers never read a stale zero.
func (c *Camera) Latency() (time.Duration, bool) {
	best, ok := c.BestTarget()
	if !ok {
		return 0, false
	}
	return best.Latency, true
}
