package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes converts a YAML override file to JSON bytes so both
// formats go through the same strict decode path.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)
	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Load reads the override file and applies it transactionally: every key must
// name a registered preference, carry the right type and pass validation, or
// nothing is applied. A missing file is not an error (defaults stand).
func (m *Manager) Load() error {
	if m.path == "" {
		return nil
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return m.apply(raw)
}

type stagedValue struct {
	def *definition
	d   float64
	b   bool
	s   string
}

func (m *Manager) apply(raw []byte) error {
	jb, err := coerceToJSONBytes(m.path, raw)
	if err != nil {
		return err
	}

	overrides := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.UseNumber()
	if err := dec.Decode(&overrides); err != nil {
		return err
	}
	// Reject trailing tokens (e.g. concatenated documents).
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("prefs: trailing data in %s", m.path)
		}
		return err
	}

	// Stage everything before touching live values.
	staged, err := m.stage(overrides)
	if err != nil {
		return err
	}

	changed := m.commit(staged)
	for _, d := range staged {
		if _, ok := changedSet(changed)[d.def.name]; ok {
			m.publishOne(d.def)
		}
	}
	m.notify(changed)
	return nil
}

func changedSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (m *Manager) stage(overrides map[string]any) ([]stagedValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	staged := make([]stagedValue, 0, len(overrides))
	for name, v := range overrides {
		def, ok := m.defs[name]
		if !ok {
			return nil, fmt.Errorf("prefs: unknown preference %q", name)
		}
		sv := stagedValue{def: def}
		switch def.kind {
		case KindDouble:
			num, ok := v.(json.Number)
			if !ok {
				return nil, fmt.Errorf("prefs: %s: expected a number, got %T", name, v)
			}
			f, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("prefs: %s: %w", name, err)
			}
			if def.validateD != nil {
				if err := def.validateD(f); err != nil {
					return nil, err
				}
			}
			sv.d = f
		case KindBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("prefs: %s: expected a bool, got %T", name, v)
			}
			sv.b = b
		case KindString:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("prefs: %s: expected a string, got %T", name, v)
			}
			if def.validateS != nil {
				if err := def.validateS(s); err != nil {
					return nil, err
				}
			}
			sv.s = s
		}
		staged = append(staged, sv)
	}
	return staged, nil
}

func (m *Manager) commit(staged []stagedValue) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []string
	for _, sv := range staged {
		d := sv.def
		switch d.kind {
		case KindDouble:
			if d.d != sv.d {
				d.d = sv.d
				changed = append(changed, d.name)
				m.markChanged(d)
			}
		case KindBool:
			if d.b != sv.b {
				d.b = sv.b
				changed = append(changed, d.name)
				m.markChanged(d)
			}
		case KindString:
			if d.s != sv.s {
				d.s = sv.s
				changed = append(changed, d.name)
				m.markChanged(d)
			}
		}
	}
	return changed
}
