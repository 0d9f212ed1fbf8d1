// Package chromadb stores memory vectors in a ChromaDB server over its
// v1 REST API.
package chromadb

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/kit/pkg/adapters/vectorstore"
)

const (
	// DefaultURL is used when neither base_url nor KIT_CHROMADB_URL is set.
	DefaultURL = "http://localhost:8000"
	// namespaceKey carries the item namespace in Chroma metadata so a
	// shared collection can still be filtered per owner.
	namespaceKey = "kit_namespace"
)

// Store is a VectorStore backed by ChromaDB collections. With a fixed
// collection every namespace shares it; otherwise each namespace gets
// its own collection.
type Store struct {
	baseURL    *url.URL
	collection string
	autoCreate bool
	http       *http.Client

	mu  sync.RWMutex
	ids map[string]string // collection name -> id
}

func init() { _ = vectorstore.Register("chromadb", Factory) }

// Factory builds a Store. Config keys: base_url (string), collection
// (string) and create_if_missing (bool, default true).
func Factory(ctx context.Context, cfg map[string]any) (vectorstore.VectorStore, error) {
	base := os.Getenv("KIT_CHROMADB_URL")
	if v, ok := cfg["base_url"].(string); ok && v != "" {
		base = v
	}
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("chromadb: invalid base_url %q", base)
	}
	s := &Store{
		baseURL:    u,
		autoCreate: true,
		http:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		ids:        make(map[string]string),
	}
	if v, ok := cfg["collection"].(string); ok {
		s.collection = v
	}
	if v, ok := cfg["create_if_missing"].(bool); ok {
		s.autoCreate = v
	}
	return s, nil
}

func namespace(ns string) string {
	if ns == "" {
		return vectorstore.DefaultNamespace
	}
	return ns
}

func (s *Store) collectionFor(ns string) string {
	if s.collection != "" {
		return s.collection
	}
	return ns
}

// Upsert inserts or replaces items, grouped by collection.
func (s *Store) Upsert(ctx context.Context, items []vectorstore.Item) error {
	if len(items) == 0 {
		return nil
	}
	groups := map[string]*upsertRequest{}
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("chromadb: empty id")
		}
		if len(it.Vector) == 0 {
			return fmt.Errorf("chromadb: empty vector for %q", it.ID)
		}
		ns := namespace(it.Namespace)
		coll := s.collectionFor(ns)
		req, ok := groups[coll]
		if !ok {
			req = &upsertRequest{}
			groups[coll] = req
		}
		md := make(map[string]any, len(it.Metadata)+1)
		for k, v := range it.Metadata {
			md[k] = v
		}
		md[namespaceKey] = ns
		req.IDs = append(req.IDs, it.ID)
		req.Embeddings = append(req.Embeddings, []float32(it.Vector))
		req.Metadatas = append(req.Metadatas, md)
	}
	for coll, req := range groups {
		id, err := s.ensureCollection(ctx, coll)
		if err != nil {
			return err
		}
		if err := s.postJSON(ctx, path.Join("/api/v1/collections", id, "upsert"), req, nil); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the k nearest items. Chroma reports distances, so the
// score is the negated distance.
func (s *Store) Query(ctx context.Context, query vectorstore.Vector, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	ns := namespace(filter.Namespace)
	id, err := s.ensureCollection(ctx, s.collectionFor(ns))
	if err != nil {
		return nil, err
	}
	req := queryRequest{
		QueryEmbeddings: [][]float32{[]float32(query)},
		NResults:        k,
		Where:           where(ns, filter.Equals),
		Include:         []string{"distances", "metadatas"},
	}
	var resp queryResponse
	if err := s.postJSON(ctx, path.Join("/api/v1/collections", id, "query"), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	out := make([]vectorstore.Match, 0, len(resp.IDs[0]))
	for i, itemID := range resp.IDs[0] {
		m := vectorstore.Match{Item: vectorstore.Item{ID: itemID, Namespace: ns}}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			m.Item.Metadata = stripNamespace(resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			m.Score = -resp.Distances[0][i]
		}
		out = append(out, m)
	}
	return out, nil
}

// List returns every item matching filter, ordered by ID.
func (s *Store) List(ctx context.Context, filter vectorstore.Filter) ([]vectorstore.Item, error) {
	ns := namespace(filter.Namespace)
	id, err := s.ensureCollection(ctx, s.collectionFor(ns))
	if err != nil {
		return nil, err
	}
	req := getRequest{Where: where(ns, filter.Equals), Include: []string{"metadatas", "embeddings"}}
	var resp getResponse
	if err := s.postJSON(ctx, path.Join("/api/v1/collections", id, "get"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Item, 0, len(resp.IDs))
	for i, itemID := range resp.IDs {
		it := vectorstore.Item{ID: itemID, Namespace: ns}
		if i < len(resp.Metadatas) {
			it.Metadata = stripNamespace(resp.Metadatas[i])
		}
		if i < len(resp.Embeddings) {
			it.Vector = vectorstore.Vector(resp.Embeddings[i])
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes one item. Chroma ignores unknown ids.
func (s *Store) Delete(ctx context.Context, ns, itemID string) error {
	ns = namespace(ns)
	id, err := s.ensureCollection(ctx, s.collectionFor(ns))
	if err != nil {
		return err
	}
	req := deleteRequest{IDs: []string{itemID}, Where: where(ns, nil)}
	return s.postJSON(ctx, path.Join("/api/v1/collections", id, "delete"), req, nil)
}

// where builds a Chroma filter. More than one clause must be wrapped in
// $and; keys are sorted so requests are stable.
func where(ns string, equals map[string]any) map[string]any {
	keys := make([]string, 0, len(equals))
	for k := range equals {
		if k != namespaceKey {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return map[string]any{namespaceKey: ns}
	}
	sort.Strings(keys)
	clauses := []map[string]any{{namespaceKey: ns}}
	for _, k := range keys {
		clauses = append(clauses, map[string]any{k: equals[k]})
	}
	return map[string]any{"$and": clauses}
}

func stripNamespace(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		if k != namespaceKey {
			out[k] = v
		}
	}
	return out
}

func (s *Store) ensureCollection(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	id, ok := s.ids[name]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}
	var c collection
	if s.autoCreate {
		if err := s.postJSON(ctx, "/api/v1/collections", createCollectionRequest{Name: name, GetOrCreate: true}, &c); err != nil {
			return "", err
		}
	} else if err := s.getJSON(ctx, path.Join("/api/v1/collections", url.PathEscape(name)), &c); err != nil {
		return "", fmt.Errorf("chromadb: collection %q: %w", name, err)
	}
	if c.ID == "" {
		return "", fmt.Errorf("chromadb: collection %q has no id", name)
	}
	s.mu.Lock()
	s.ids[name] = c.ID
	s.mu.Unlock()
	return c.ID, nil
}

func (s *Store) endpoint(p string) string {
	u := *s.baseURL
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (s *Store) getJSON(ctx context.Context, p string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(p), nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *Store) postJSON(ctx context.Context, p string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(p), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *Store) do(req *http.Request, out any) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chromadb: %s %s => %s", req.Method, req.URL.Path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	GetOrCreate bool   `json:"get_or_create"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include,omitempty"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float32        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

type getRequest struct {
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include,omitempty"`
}

type getResponse struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type deleteRequest struct {
	IDs   []string       `json:"ids"`
	Where map[string]any `json:"where,omitempty"`
}
