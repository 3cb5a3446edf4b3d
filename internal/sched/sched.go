package sched

import (
	"container/heap"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "lemonlib/pkg/logx"
)

type entry struct {
	name   string
	fn     func() error
	period time.Duration
	offset time.Duration

	// expiry is the absolute next due time. Zero until the entry is primed
	// by the first Tick that observes it.
	expiry time.Time

	index int // heap index
}

// Failure records one callback that returned an error or panicked during a tick.
type Failure struct {
	Name     string
	Err      error
	Panicked bool
	Stack    string
}

// Report aggregates what happened during one Tick.
type Report struct {
	Fired    int
	Failures []Failure
}

func (r Report) OK() bool { return len(r.Failures) == 0 }

// Scheduler runs independently-periodic callbacks from within a
// single-threaded cooperative loop tick.
type Scheduler struct {
	log logx.Logger

	h       expiryHeap
	pending []*entry
	seq     int
}

func New(log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{log: log}
}

// Register schedules fn to first fire at start+offset+period and every period
// thereafter, where start is the time of the first Tick that observes the
// registration. Offsets stagger callbacks sharing a period across ticks.
func (s *Scheduler) Register(name string, period, offset time.Duration, fn func() error) error {
	if fn == nil {
		return errors.New("sched: nil callback")
	}
	if period <= 0 {
		return fmt.Errorf("sched: period must be > 0 (got %v)", period)
	}
	if offset < 0 {
		return fmt.Errorf("sched: offset must be >= 0 (got %v)", offset)
	}
	s.seq++
	if name == "" {
		name = fmt.Sprintf("periodic-%d", s.seq)
	}
	s.pending = append(s.pending, &entry{name: name, fn: fn, period: period, offset: offset})
	return nil
}

// Len reports how many callbacks are registered (primed or pending).
func (s *Scheduler) Len() int { return s.h.Len() + len(s.pending) }

// NextExpiry returns the earliest due time among primed callbacks.
func (s *Scheduler) NextExpiry() (time.Time, bool) {
	if s.h.Len() == 0 {
		return time.Time{}, false
	}
	return s.h[0].expiry, true
}

// Tick runs every callback due at or before now, in ascending expiry order,
// and reschedules each one past now. It is invoked once per loop iteration.
func (s *Scheduler) Tick(now time.Time) Report {
	// Prime registrations picked up since the last tick.
	if len(s.pending) > 0 {
		for _, e := range s.pending {
			e.expiry = now.Add(e.offset + e.period)
			heap.Push(&s.h, e)
		}
		s.pending = s.pending[:0]
	}

	var rep Report
	for s.h.Len() > 0 && !s.h[0].expiry.After(now) {
		e := s.h[0]

		err, stack := runCallback(e.fn)
		rep.Fired++
		if err != nil {
			rep.Failures = append(rep.Failures, Failure{
				Name:     e.name,
				Err:      err,
				Panicked: stack != "",
				Stack:    stack,
			})
			s.log.Warn("periodic callback failed",
				logx.String("name", e.name),
				logx.Err(err),
				logx.Stack(stack),
			)
		}

		// Advance by whole multiples of the period to the smallest aligned
		// instant strictly after now. Stalled loops skip missed intervals
		// instead of burst-firing them.
		missed := now.Sub(e.expiry) / e.period
		e.expiry = e.expiry.Add(e.period * (missed + 1))
		heap.Fix(&s.h, e.index)
	}
	return rep
}

func runCallback(fn func() error) (err error, stack string) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			stack = string(debug.Stack())
		}
	}()
	err = fn()
	return
}

// ---- min-heap keyed by expiry ----

type expiryHeap []*entry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiry.Before(h[j].expiry) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
