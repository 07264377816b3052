// Package insertstore implements the keyed, ordered mapping that is the
// sole communication channel between tasks: local entries, a read-only
// file-backed fallback directory, and transient computed keys (clock,
// positional CLI arguments).
//
// Grounded on internal/history.Store's file-backed JSON persistence shape
// (os.ReadFile/os.WriteFile against a directory of named files) and
// internal/config.Manager's layered-fallback lookup order (project
// overrides user overrides default) from the teacher, generalized here to
// local-overrides-file-overrides-computed.
package insertstore

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tallowoak/taskline/internal/interp"
	"github.com/tallowoak/taskline/internal/pattern"
	"github.com/tallowoak/taskline/internal/value"
)

// Clock lets tests substitute a fixed time for the HH:MM / HH:MM:SS keys.
type Clock func() time.Time

// Store is the runtime inserts store described in §3 and §4.5.
type Store struct {
	mu          sync.RWMutex
	order       []string
	values      map[string]value.Value
	fallbackDir string
	args        []string // already escaped, ARG1 at index 0
	now         Clock
}

// New creates an empty store. fallbackDir may be empty to disable the file
// fallback. args are the positional startup arguments; each is escaped
// (interp.Escape) before being exposed as ARG1, ARG2, ....
func New(fallbackDir string, args []string) *Store {
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = interp.Escape(a)
	}
	return &Store{
		values:      make(map[string]value.Value),
		fallbackDir: fallbackDir,
		args:        escaped,
		now:         time.Now,
	}
}

// SetClock overrides the time source, for deterministic tests.
func (s *Store) SetClock(c Clock) { s.now = c }

// Get implements interp.Store: local mapping, then file fallback, then
// special computed keys (local wins when both a local insert and a
// file-backed entry exist for the same key).
func (s *Store) Get(key string) (value.Value, bool) {
	s.mu.RLock()
	if v, ok := s.values[key]; ok {
		s.mu.RUnlock()
		return v, true
	}
	s.mu.RUnlock()

	if v, ok := s.getFromFile(key); ok {
		return v, true
	}
	return s.getSpecial(key)
}

func (s *Store) getFromFile(key string) (value.Value, bool) {
	if s.fallbackDir == "" {
		return value.Value{}, false
	}
	data, err := os.ReadFile(filepath.Join(s.fallbackDir, key))
	if err != nil {
		return value.Value{}, false
	}
	return value.String(string(data)), true
}

func (s *Store) getSpecial(key string) (value.Value, bool) {
	switch key {
	case "HH:MM":
		return value.String(s.now().Local().Format("15:04")), true
	case "HH:MM:SS":
		return value.String(s.now().Local().Format("15:04:05")), true
	}
	if idx, ok := argIndex(key); ok && idx >= 1 && idx <= len(s.args) {
		return value.String(s.args[idx-1]), true
	}
	return value.Value{}, false
}

// argIndex parses "ARGn" into n.
func argIndex(key string) (int, bool) {
	if len(key) < 4 || key[:3] != "ARG" {
		return 0, false
	}
	n := 0
	for _, c := range key[3:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Set stores v under key, clobbering any existing local entry.
func (s *Store) Set(key string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = v
}

// Delete removes key from the local mapping. File-backed and special keys
// are unaffected — they are never represented in the local mapping.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
}

func (s *Store) deleteLocked(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// DeleteMatching removes every local key matching any of patterns.
// File-backed entries are never deleted; special keys are always
// protected since they are never present in the local mapping.
func (s *Store) DeleteMatching(patterns []*pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range append([]string(nil), s.order...) {
		if pattern.MatchAny(patterns, pattern.Str(key)) {
			s.deleteLocked(key)
		}
	}
}

// DeleteExceptMatching removes every local key matching none of patterns.
func (s *Store) DeleteExceptMatching(patterns []*pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range append([]string(nil), s.order...) {
		if !pattern.MatchAny(patterns, pattern.Str(key)) {
			s.deleteLocked(key)
		}
	}
}

// Snapshot returns a new ordered map holding the local mapping's entries
// in insertion order, used by show_inserts and by save-slot serialization.
// Later Set/Delete calls on the store do not affect it; the values
// themselves are shared, not deep-copied.
func (s *Store) Snapshot() *value.OrderedMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := value.NewOrderedMap()
	for _, k := range s.order {
		out.Set(k, s.values[k])
	}
	return out
}

// Clone produces an independent copy of the store's local state, sharing
// the fallback directory and args.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Store{
		values:      make(map[string]value.Value, len(s.values)),
		order:       append([]string(nil), s.order...),
		fallbackDir: s.fallbackDir,
		args:        s.args,
		now:         s.now,
	}
	for k, v := range s.values {
		clone.values[k] = v
	}
	return clone
}
