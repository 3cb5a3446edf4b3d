// Package prefs provides tunable robot preferences: typed values registered
// in code with defaults and validation, overridden from a YAML or JSON file
// that can be hot-reloaded while the robot runs.
package prefs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"lemonlib/internal/telemetry"
	"lemonlib/pkg/logx"
)

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

type definition struct {
	name string
	kind Kind

	// current values; guarded by Manager.mu
	d float64
	b bool
	s string

	validateD func(float64) error
	validateS func(string) error
}

// Manager owns the preference registry and the backing file.
type Manager struct {
	path string
	log  logx.Logger
	tel  *telemetry.Table

	mu   sync.RWMutex
	defs map[string]*definition

	// names changed since the last Changed() call
	changed map[string]struct{}

	lastHash uint64

	subsMu sync.Mutex
	subs   []chan []string
}

// NewManager builds the registry. path may be empty for code-only defaults;
// tel may be nil to skip publishing values under "prefs/".
func NewManager(path string, log logx.Logger, tel *telemetry.Table) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		path:    path,
		log:     log,
		tel:     tel,
		defs:    map[string]*definition{},
		changed: map[string]struct{}{},
	}
}

type DoubleOption func(*definition)

// WithRange rejects values outside [min, max].
func WithRange(min, max float64) DoubleOption {
	return func(d *definition) {
		d.validateD = func(v float64) error {
			if v < min || v > max {
				return fmt.Errorf("prefs: %s: %v outside [%v, %v]", d.name, v, min, max)
			}
			return nil
		}
	}
}

type StringOption func(*definition)

// WithOneOf rejects values not in the allowed set.
func WithOneOf(allowed ...string) StringOption {
	return func(d *definition) {
		d.validateS = func(v string) error {
			for _, a := range allowed {
				if v == a {
					return nil
				}
			}
			return fmt.Errorf("prefs: %s: %q not one of %v", d.name, v, allowed)
		}
	}
}

func (m *Manager) register(name string, kind Kind) (*definition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("prefs: name is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[name]; ok {
		return nil, fmt.Errorf("prefs: %q already registered", name)
	}
	d := &definition{name: name, kind: kind}
	m.defs[name] = d
	return d, nil
}

// Double registers a float preference. The default must pass its own
// validation.
func (m *Manager) Double(name string, def float64, opts ...DoubleOption) (*Double, error) {
	d, err := m.register(name, KindDouble)
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		o(d)
	}
	if d.validateD != nil {
		if err := d.validateD(def); err != nil {
			m.drop(name)
			return nil, err
		}
	}
	d.d = def
	m.publishOne(d)
	return &Double{m: m, def: d}, nil
}

// Bool registers a boolean preference.
func (m *Manager) Bool(name string, def bool) (*Bool, error) {
	d, err := m.register(name, KindBool)
	if err != nil {
		return nil, err
	}
	d.b = def
	m.publishOne(d)
	return &Bool{m: m, def: d}, nil
}

// String registers a string preference.
func (m *Manager) String(name string, def string, opts ...StringOption) (*String, error) {
	d, err := m.register(name, KindString)
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		o(d)
	}
	if d.validateS != nil {
		if err := d.validateS(def); err != nil {
			m.drop(name)
			return nil, err
		}
	}
	d.s = def
	m.publishOne(d)
	return &String{m: m, def: d}, nil
}

func (m *Manager) drop(name string) {
	m.mu.Lock()
	delete(m.defs, name)
	m.mu.Unlock()
}

// Changed returns the preference names updated since the previous call and
// clears the set.
func (m *Manager) Changed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.changed))
	for name := range m.changed {
		out = append(out, name)
	}
	m.changed = map[string]struct{}{}
	return out
}

// Subscribe delivers the list of changed names after each successful reload
// or Set. Slow subscribers lose the oldest batch.
func (m *Manager) Subscribe(buffer int) chan []string {
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan []string, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan []string) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *Manager) notify(names []string) {
	if len(names) == 0 {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		select {
		case ch <- names:
		default:
			// Drop the oldest batch, then deliver the newest best-effort.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- names:
			default:
			}
		}
	}
}

// Snapshot returns the current values keyed by name, for persistence.
func (m *Manager) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.defs))
	for name, d := range m.defs {
		switch d.kind {
		case KindDouble:
			out[name] = d.d
		case KindBool:
			out[name] = d.b
		case KindString:
			out[name] = d.s
		}
	}
	return out
}

func (m *Manager) markChanged(d *definition) {
	m.changed[d.name] = struct{}{}
}

func (m *Manager) publishOne(d *definition) {
	if m.tel == nil {
		return
	}
	key := "prefs/" + d.name
	switch d.kind {
	case KindDouble:
		_ = m.tel.PutDouble(key, d.d)
	case KindBool:
		_ = m.tel.PutBool(key, d.b)
	case KindString:
		_ = m.tel.PutString(key, d.s)
	}
}

// Double is a registered float preference.
type Double struct {
	m   *Manager
	def *definition
}

func (p *Double) Name() string { return p.def.name }

func (p *Double) Get() float64 {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return p.def.d
}

// Set updates the value in memory. The backing file is not rewritten.
func (p *Double) Set(v float64) error {
	if p.def.validateD != nil {
		if err := p.def.validateD(v); err != nil {
			return err
		}
	}
	p.m.mu.Lock()
	changed := p.def.d != v
	p.def.d = v
	if changed {
		p.m.markChanged(p.def)
	}
	p.m.mu.Unlock()
	if changed {
		p.m.publishOne(p.def)
		p.m.notify([]string{p.def.name})
	}
	return nil
}

// Bool is a registered boolean preference.
type Bool struct {
	m   *Manager
	def *definition
}

func (p *Bool) Name() string { return p.def.name }

func (p *Bool) Get() bool {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return p.def.b
}

func (p *Bool) Set(v bool) {
	p.m.mu.Lock()
	changed := p.def.b != v
	p.def.b = v
	if changed {
		p.m.markChanged(p.def)
	}
	p.m.mu.Unlock()
	if changed {
		p.m.publishOne(p.def)
		p.m.notify([]string{p.def.name})
	}
}

// String is a registered string preference.
type String struct {
	m   *Manager
	def *definition
}

func (p *String) Name() string { return p.def.name }

func (p *String) Get() string {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return p.def.s
}

func (p *String) Set(v string) error {
	if p.def.validateS != nil {
		if err := p.def.validateS(v); err != nil {
			return err
		}
	}
	p.m.mu.Lock()
	changed := p.def.s != v
	p.def.s = v
	if changed {
		p.m.markChanged(p.def)
	}
	p.m.mu.Unlock()
	if changed {
		p.m.publishOne(p.def)
		p.m.notify([]string{p.def.name})
	}
	return nil
}
