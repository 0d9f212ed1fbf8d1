// Package memstore is an in-memory store.Store, used by default and in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/tool"
)

// Store keeps everything in maps guarded by a RWMutex.
type Store struct {
	mu           sync.RWMutex
	tools        map[string]*tool.Definition
	interactions map[string]store.Interaction
	recycle      []store.RecycleRecord
	now          func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tools:        map[string]*tool.Definition{},
		interactions: map[string]store.Interaction{},
		now:          time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) GetTool(_ context.Context, slug string) (*tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.tools[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

func (s *Store) ListTools(_ context.Context, f store.ToolFilter) ([]*tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tool.Definition, 0, len(s.tools))
	for _, d := range s.tools {
		if f.Match(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

func (s *Store) CreateTool(_ context.Context, d *tool.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[d.Slug]; ok {
		return store.ErrConflict
	}
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.tools[d.Slug] = d.Clone()
	return nil
}

func (s *Store) UpdateTool(_ context.Context, d *tool.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tools[d.Slug]
	if !ok {
		return store.ErrNotFound
	}
	d.ID, d.CreatedAt = cur.ID, cur.CreatedAt
	d.UpdatedAt = s.now().UTC()
	s.tools[d.Slug] = d.Clone()
	return nil
}

func (s *Store) DeleteTool(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[slug]; !ok {
		return store.ErrNotFound
	}
	delete(s.tools, slug)
	return nil
}

func (s *Store) AddInteraction(_ context.Context, in store.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interactions[in.ID]; ok {
		return store.ErrConflict
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}
	s.interactions[in.ID] = cloneInteraction(in)
	return nil
}

func (s *Store) GetInteraction(_ context.Context, id string) (store.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.interactions[id]
	if !ok {
		return store.Interaction{}, store.ErrNotFound
	}
	return cloneInteraction(in), nil
}

func (s *Store) ListInteractions(_ context.Context, f store.InteractionFilter) ([]store.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Interaction
	for _, in := range s.interactions {
		if in.Owner != f.Owner {
			continue
		}
		if f.ToolSlug != "" && in.ToolSlug != f.ToolSlug {
			continue
		}
		out = append(out, cloneInteraction(in))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteInteraction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.interactions, id)
	return nil
}

func (s *Store) AddRecycle(_ context.Context, r store.RecycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.DeletedAt.IsZero() {
		r.DeletedAt = s.now().UTC()
	}
	r.Data = append(json.RawMessage(nil), r.Data...)
	s.recycle = append(s.recycle, r)
	return nil
}

func (s *Store) ListRecycle(_ context.Context, owner string, limit int) ([]store.RecycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.RecycleRecord
	for _, r := range s.recycle {
		if r.Owner == "" || r.Owner == owner {
			r.Data = append(json.RawMessage(nil), r.Data...)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.After(out[j].DeletedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneInteraction(in store.Interaction) store.Interaction {
	in.Input = append(json.RawMessage(nil), in.Input...)
	in.Output = append(json.RawMessage(nil), in.Output...)
	return in
}

var _ store.Store = (*Store)(nil)
