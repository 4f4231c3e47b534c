// Package mem implements an in-memory annotation.Store, used by tests and
// as the default store when no remote base URL is configured (§6).
// Grounded on the teacher's (`viant/linager`) in-memory fixture stores used
// throughout `analyzer/analyzer_test.go`, which load a fixed record set once
// and serve it back through simple field matching.
package mem

import (
	"context"
	"sync"

	"github.com/viant/flowgraph/annotation"
)

// Store holds a fixed, in-process set of annotation records.
type Store struct {
	mu      sync.RWMutex
	records []*annotation.Record
	loaded  map[string]bool
}

// New returns a Store seeded with records; additional records can be added
// later with Add.
func New(records ...*annotation.Record) *Store {
	return &Store{records: append([]*annotation.Record{}, records...), loaded: map[string]bool{}}
}

// Add registers additional records, used by tests building up a fixture
// incrementally; LoadPackage does not add records.
func (s *Store) Add(records ...*annotation.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

func (s *Store) Get(ctx context.Context, query annotation.Query) (*annotation.Record, error) {
	matches, err := s.Filter(ctx, query)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, annotation.ErrAmbiguous
	}
}

func (s *Store) Filter(ctx context.Context, query annotation.Query) ([]*annotation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*annotation.Record
	for _, r := range s.records {
		if annotation.Match(r, query) {
			out = append(out, r)
		}
	}
	return out, nil
}

// LoadPackage is a no-op beyond bookkeeping: every record this store will
// ever serve is already resident, so "loading" a package name is cheap and
// idempotent by construction (§6).
func (s *Store) LoadPackage(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded == nil {
		s.loaded = map[string]bool{}
	}
	s.loaded[name] = true
	return nil
}

// Loaded reports whether LoadPackage has been called for name, exposed for
// tests asserting the annotator's package-loading behaviour.
func (s *Store) Loaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[name]
}
