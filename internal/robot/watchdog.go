package robot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Epoch is the measured runtime of one component within a tick.
type Epoch struct {
	Name string
	Took time.Duration
}

// Overrun captures one tick that blew its budget.
type Overrun struct {
	At     time.Time
	Took   time.Duration
	Epochs []Epoch
}

// watchdog tracks tick durations against the loop budget and keeps the most
// recent overrun for diagnosis.
type watchdog struct {
	threshold time.Duration
	count     atomic.Uint64

	mu   sync.Mutex
	have bool
	over Overrun
}

func (w *watchdog) observe(at time.Time, took time.Duration, epochs []Epoch) {
	if took <= w.threshold {
		return
	}
	w.count.Add(1)
	w.mu.Lock()
	w.have = true
	w.over = Overrun{At: at, Took: took, Epochs: append([]Epoch(nil), epochs...)}
	w.mu.Unlock()
}

func (w *watchdog) last() (Overrun, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.over, w.have
}
