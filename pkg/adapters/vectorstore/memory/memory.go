package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/wilhg/kit/pkg/adapters/vectorstore"
)

// Store is an in-memory VectorStore implementation intended for tests and single-node runs.
type Store struct {
	mu     sync.RWMutex
	byNSID map[string]map[string]vectorstore.Item // namespace -> id -> item
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{byNSID: make(map[string]map[string]vectorstore.Item)}
}

func namespace(ns string) string {
	if ns == "" {
		return vectorstore.DefaultNamespace
	}
	return ns
}

// Upsert inserts or replaces items.
func (s *Store) Upsert(ctx context.Context, items []vectorstore.Item) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			return errors.New("memory vectorstore: empty id")
		}
		if len(it.Vector) == 0 {
			return errors.New("memory vectorstore: empty vector")
		}
		ns := namespace(it.Namespace)
		bucket, ok := s.byNSID[ns]
		if !ok {
			bucket = make(map[string]vectorstore.Item)
			s.byNSID[ns] = bucket
		}
		it.Namespace = ns
		bucket[it.ID] = it
	}
	return nil
}

// Query performs cosine similarity search with optional namespace and metadata equality filter.
func (s *Store) Query(ctx context.Context, query vectorstore.Vector, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	qnorm := dot(query, query)
	if qnorm == 0 {
		return nil, errors.New("memory vectorstore: zero-norm query vector")
	}
	qnorm = math.Sqrt(qnorm)

	items := s.snapshot(filter)
	matches := make([]vectorstore.Match, 0, len(items))
	for _, it := range items {
		if len(it.Vector) != len(query) {
			continue
		}
		matches = append(matches, vectorstore.Match{Item: it, Score: cosine(query, it.Vector, qnorm)})
	}

	// Ties break on ID so results are stable.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Item.ID < matches[j].Item.ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// List returns items in the filtered namespace ordered by ID.
func (s *Store) List(ctx context.Context, filter vectorstore.Filter) ([]vectorstore.Item, error) {
	items := s.snapshot(filter)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Delete removes one item.
func (s *Store) Delete(ctx context.Context, ns, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket := s.byNSID[namespace(ns)]; bucket != nil {
		delete(bucket, id)
	}
	return nil
}

func (s *Store) snapshot(filter vectorstore.Filter) []vectorstore.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.byNSID[namespace(filter.Namespace)]
	out := make([]vectorstore.Item, 0, len(bucket))
	for _, it := range bucket {
		if metaEquals(it.Metadata, filter.Equals) {
			out = append(out, it)
		}
	}
	return out
}

func metaEquals(have map[string]any, want map[string]any) bool {
	if len(want) == 0 {
		return true
	}
	if have == nil {
		return false
	}
	for k, v := range want {
		if hv, ok := have[k]; !ok || hv != v {
			return false
		}
	}
	return true
}

func cosine(a, b vectorstore.Vector, qnorm float64) float32 {
	denom := qnorm * math.Sqrt(dot(b, b))
	if denom == 0 {
		return 0
	}
	return float32(dot(a, b) / denom)
}

func dot(a, b vectorstore.Vector) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Factory builds an empty in-memory store.
func Factory(ctx context.Context, cfg map[string]any) (vectorstore.VectorStore, error) { // nolint: revive
	_ = ctx
	_ = cfg
	return New(), nil
}

func init() {
	_ = vectorstore.Register("memory", Factory)
}
