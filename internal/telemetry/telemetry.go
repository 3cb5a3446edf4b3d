// Package telemetry provides the typed key-value table components publish
// dashboard data into.
//
// Entries are typed at first put (tagged variants, one kind per key) and a
// kind can never change afterwards. Reads are cheap (RWMutex) so the control
// loop can publish every tick; consumers subscribe to updates or take
// snapshots off-loop.
//
// Fanout contract (same as an in-memory event bus):
//   - publishes never block
//   - subscribers use buffered channels
//   - slow subscribers drop updates
package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var ErrKindMismatch = errors.New("telemetry: entry kind mismatch")

type Kind int

const (
	KindDouble Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged variant. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Double float64
	Bool   bool
	Str    string
}

// Update is delivered to subscribers on every put that changes a value.
type Update struct {
	Key   string
	Value Value
	Time  time.Time
}

type Table struct {
	mu      sync.RWMutex
	entries map[string]Value

	subMu sync.RWMutex
	subs  map[uint64]chan Update
	seq   atomic.Uint64
}

func New() *Table {
	return &Table{
		entries: map[string]Value{},
		subs:    map[uint64]chan Update{},
	}
}

func (t *Table) PutDouble(key string, v float64) error {
	return t.put(key, Value{Kind: KindDouble, Double: v})
}

func (t *Table) PutBool(key string, v bool) error {
	return t.put(key, Value{Kind: KindBool, Bool: v})
}

func (t *Table) PutString(key string, v string) error {
	return t.put(key, Value{Kind: KindString, Str: v})
}

func (t *Table) put(key string, v Value) error {
	t.mu.Lock()
	old, ok := t.entries[key]
	if ok && old.Kind != v.Kind {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q is %s, put %s", ErrKindMismatch, key, old.Kind, v.Kind)
	}
	changed := !ok || old != v
	t.entries[key] = v
	t.mu.Unlock()

	if changed {
		t.publish(Update{Key: key, Value: v, Time: time.Now()})
	}
	return nil
}

// GetDouble returns the entry's value, or def when the key is missing or not
// a double.
func (t *Table) GetDouble(key string, def float64) float64 {
	t.mu.RLock()
	v, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok || v.Kind != KindDouble {
		return def
	}
	return v.Double
}

func (t *Table) GetBool(key string, def bool) bool {
	t.mu.RLock()
	v, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok || v.Kind != KindBool {
		return def
	}
	return v.Bool
}

func (t *Table) GetString(key string, def string) string {
	t.mu.RLock()
	v, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok || v.Kind != KindString {
		return def
	}
	return v.Str
}

// Keys returns all entry keys, sorted.
func (t *Table) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a stable copy of the table for persistence or status output.
func (t *Table) Snapshot() map[string]Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make(map[string]Value, len(t.entries))
	for k, v := range t.entries {
		cp[k] = v
	}
	return cp
}

// Subscribe registers for update fanout. The returned unsubscribe func is
// idempotent.
func (t *Table) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Update, buffer)
	id := t.seq.Add(1)

	t.subMu.Lock()
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			// Closing is safe because publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}

func (t *Table) publish(u Update) {
	// Snapshot subscribers so publish doesn't hold locks while sending.
	t.subMu.RLock()
	chs := make([]chan Update, 0, len(t.subs))
	for _, ch := range t.subs {
		chs = append(chs, ch)
	}
	t.subMu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; if a subscriber unsubscribes concurrently
		// and the channel closes, recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- u:
			default:
			}
		}()
	}
}
