package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/chargram/pkg/chargram/histogram"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
	"github.com/cognicore/chargram/pkg/chargram/store"
)

// Store is an in-memory implementation of store.Container for tests and
// dry runs.
type Store struct {
	mu         sync.RWMutex
	counts     map[string]*histogram.Histogram
	normalized *histogram.Tensor
	attrs      map[string]store.Attrs
}

// New creates an empty in-memory container.
func New() *Store {
	return &Store{
		counts: make(map[string]*histogram.Histogram),
		attrs:  make(map[string]store.Attrs),
	}
}

// Close implements store.Container.
func (s *Store) Close() error { return nil }

// WriteCounts implements store.Container. It drops any normalized data.
func (s *Store) WriteCounts(ctx context.Context, h *histogram.Histogram, attrs store.Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCounts(store.DatasetCounts, h, attrs)
	s.normalized = nil
	delete(s.attrs, store.DatasetNormalized)
	return nil
}

// PutLegacy stores h under the legacy results name. Real containers only
// ever read that name; this exists to build fixtures.
func (s *Store) PutLegacy(h *histogram.Histogram, attrs store.Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCounts(store.DatasetLegacyCounts, h, attrs)
	return nil
}

// putCounts stores a copy of h under name. The caller holds s.mu.
func (s *Store) putCounts(name string, h *histogram.Histogram, attrs store.Attrs) {
	cp := histogram.New(h.A, h.W)
	copy(cp.Counts, h.Counts)
	s.counts[name] = cp
	s.attrs[name] = attrs.Clone()
}

// ReadCounts implements store.Container.
func (s *Store) ReadCounts(ctx context.Context) (*histogram.Histogram, store.Attrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range []string{store.DatasetCounts, store.DatasetLegacyCounts} {
		h, ok := s.counts[name]
		if !ok {
			continue
		}
		cp := histogram.New(h.A, h.W)
		copy(cp.Counts, h.Counts)
		return cp, s.attrs[name].Clone(), nil
	}
	return nil, nil, fmt.Errorf("dataset %s: %w", store.DatasetCounts, internalerr.ErrNotFound)
}

// WriteNormalized implements store.Container. Existing attributes are kept
// unless attrs overrides them.
func (s *Store) WriteNormalized(ctx context.Context, t *histogram.Tensor, attrs store.Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := histogram.NewTensor(t.A, t.W)
	copy(cp.Values, t.Values)
	s.normalized = cp

	merged := s.attrs[store.DatasetNormalized]
	if merged == nil {
		merged = store.Attrs{}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	s.attrs[store.DatasetNormalized] = merged
	return nil
}

// ReadNormalized implements store.Container.
func (s *Store) ReadNormalized(ctx context.Context) (*histogram.Tensor, store.Attrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.normalized == nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", store.DatasetNormalized, internalerr.ErrNotFound)
	}
	cp := histogram.NewTensor(s.normalized.A, s.normalized.W)
	copy(cp.Values, s.normalized.Values)
	return cp, s.attrs[store.DatasetNormalized].Clone(), nil
}

// Datasets implements store.Container.
func (s *Store) Datasets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.counts {
		names = append(names, name)
	}
	if s.normalized != nil {
		names = append(names, store.DatasetNormalized)
	}
	sort.Strings(names)
	return names, nil
}
