package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lemonlib/pkg/logx"
)

// fileStore is the dependency-free backend.
//
// Files:
//   - <prefix>.events.jsonl       (append-only JSON Lines)
//   - <prefix>.prefs.json         (atomic snapshot, tmp+rename)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	eventsFile *os.File
	prefsPath  string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	ef, err := os.OpenFile(prefix+".events.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:        log,
		eventsFile: ef,
		prefsPath:  prefix + ".prefs.json",
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsFile == nil {
		return nil
	}
	err := s.eventsFile.Close()
	s.eventsFile = nil
	return err
}

func (s *fileStore) AppendEvent(ctx context.Context, e Event) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsFile == nil {
		return errors.New("event log closed")
	}
	return json.NewEncoder(s.eventsFile).Encode(e)
}

func (s *fileStore) SavePreferences(ctx context.Context, values map[string]any) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	// Atomic replace so a crash mid-write never corrupts the snapshot.
	tmp := s.prefsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(values); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.prefsPath)
}

func (s *fileStore) LoadPreferences(ctx context.Context) (map[string]any, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.prefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var values map[string]any
	if err := json.NewDecoder(f).Decode(&values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}
