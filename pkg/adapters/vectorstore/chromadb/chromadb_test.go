package chromadb

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/wilhg/kit/pkg/adapters/vectorstore"
)

type storedItem struct {
	embedding []float32
	metadata  map[string]any
}

// fakeChroma implements the handful of v1 endpoints the store calls.
type fakeChroma struct {
	mu          sync.Mutex
	collections map[string]map[string]storedItem // collection id -> item id -> item
	wheres      []map[string]any
}

func newFakeChroma(t *testing.T) (*fakeChroma, *httptest.Server) {
	t.Helper()
	f := &fakeChroma{collections: map[string]map[string]storedItem{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeChroma) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/collections"), "/")
	var body map[string]any
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	reply := func(v any) { _ = json.NewEncoder(w).Encode(v) }

	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		name := body["name"].(string)
		id := "c-" + name
		if _, ok := f.collections[id]; !ok {
			f.collections[id] = map[string]storedItem{}
		}
		reply(collection{ID: id, Name: name})
	case len(parts) == 2 && r.Method == http.MethodGet:
		id := "c-" + parts[1]
		if _, ok := f.collections[id]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		reply(collection{ID: id, Name: parts[1]})
	case len(parts) == 3:
		items, ok := f.collections[parts[1]]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		where, _ := body["where"].(map[string]any)
		f.wheres = append(f.wheres, where)
		switch parts[2] {
		case "upsert":
			ids := body["ids"].([]any)
			embs := body["embeddings"].([]any)
			mds := body["metadatas"].([]any)
			for i, id := range ids {
				var vec []float32
				for _, x := range embs[i].([]any) {
					vec = append(vec, float32(x.(float64)))
				}
				items[id.(string)] = storedItem{embedding: vec, metadata: mds[i].(map[string]any)}
			}
			reply(true)
		case "get":
			ids := matching(items, where)
			resp := getResponse{IDs: ids}
			for _, id := range ids {
				resp.Embeddings = append(resp.Embeddings, items[id].embedding)
				resp.Metadatas = append(resp.Metadatas, items[id].metadata)
			}
			reply(resp)
		case "query":
			ids := matching(items, where)
			resp := queryResponse{IDs: [][]string{ids}, Distances: [][]float32{{}}, Metadatas: [][]map[string]any{{}}}
			for i, id := range ids {
				resp.Distances[0] = append(resp.Distances[0], float32(i)/2)
				resp.Metadatas[0] = append(resp.Metadatas[0], items[id].metadata)
			}
			reply(resp)
		case "delete":
			for _, id := range body["ids"].([]any) {
				delete(items, id.(string))
			}
			reply([]string{})
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

// matching returns ids whose namespace metadata matches the filter, in
// reverse order so callers that sort are observable.
func matching(items map[string]storedItem, where map[string]any) []string {
	ns, _ := where[namespaceKey].(string)
	if and, ok := where["$and"].([]any); ok {
		ns, _ = and[0].(map[string]any)[namespaceKey].(string)
	}
	var ids []string
	for id, it := range items {
		if it.metadata[namespaceKey] == ns {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

func newStore(t *testing.T, cfg map[string]any) vectorstore.VectorStore {
	t.Helper()
	vs, err := vectorstore.New(t.Context(), "chromadb", cfg)
	if err != nil {
		t.Fatal(err)
	}
	return vs
}

func TestUpsertListDeleteSharedCollection(t *testing.T) {
	_, srv := newFakeChroma(t)
	vs := newStore(t, map[string]any{"base_url": srv.URL, "collection": "kit"})
	ctx := t.Context()

	items := []vectorstore.Item{
		{ID: "a1", Namespace: "alice", Vector: vectorstore.Vector{1, 0}, Metadata: map[string]any{"content": "likes tea"}},
		{ID: "a2", Namespace: "alice", Vector: vectorstore.Vector{0, 1}, Metadata: map[string]any{"content": "vegan"}},
		{ID: "b1", Namespace: "bob", Vector: vectorstore.Vector{1, 1}},
	}
	if err := vs.Upsert(ctx, items); err != nil {
		t.Fatal(err)
	}

	got, err := vs.List(ctx, vectorstore.Filter{Namespace: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("list=%+v", got)
	}
	if !reflect.DeepEqual(got[0].Metadata, map[string]any{"content": "likes tea"}) || got[0].Namespace != "alice" {
		t.Fatalf("item=%+v", got[0])
	}
	if !reflect.DeepEqual(got[1].Vector, vectorstore.Vector{0, 1}) {
		t.Fatalf("vector=%v", got[1].Vector)
	}

	if err := vs.Delete(ctx, "alice", "a1"); err != nil {
		t.Fatal(err)
	}
	got, _ = vs.List(ctx, vectorstore.Filter{Namespace: "alice"})
	if len(got) != 1 || got[0].ID != "a2" {
		t.Fatalf("after delete=%+v", got)
	}
	bob, _ := vs.List(ctx, vectorstore.Filter{Namespace: "bob"})
	if len(bob) != 1 {
		t.Fatalf("bob=%+v", bob)
	}
}

func TestQueryNegatesDistanceAndBuildsWhere(t *testing.T) {
	fake, srv := newFakeChroma(t)
	vs := newStore(t, map[string]any{"base_url": srv.URL})
	ctx := t.Context()

	if err := vs.Upsert(ctx, []vectorstore.Item{
		{ID: "x", Vector: vectorstore.Vector{1}, Metadata: map[string]any{"tag": "t"}},
		{ID: "y", Vector: vectorstore.Vector{1}, Metadata: map[string]any{"tag": "t"}},
	}); err != nil {
		t.Fatal(err)
	}
	matches, err := vs.Query(ctx, vectorstore.Vector{1}, 5, vectorstore.Filter{Equals: map[string]any{"tag": "t"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].Score != 0 || matches[1].Score != -0.5 {
		t.Fatalf("matches=%+v", matches)
	}
	if matches[0].Item.Namespace != vectorstore.DefaultNamespace || matches[0].Item.Metadata["tag"] != "t" {
		t.Fatalf("item=%+v", matches[0].Item)
	}

	last := fake.wheres[len(fake.wheres)-1]
	and, ok := last["$and"].([]any)
	if !ok || len(and) != 2 {
		t.Fatalf("where=%v", last)
	}
	if _, ok := fake.collections["c-"+vectorstore.DefaultNamespace]; !ok {
		t.Fatalf("collections=%v", fake.collections)
	}
}

func TestFactoryConfig(t *testing.T) {
	if _, err := Factory(t.Context(), map[string]any{"base_url": "::bad"}); err == nil {
		t.Fatal("bad url accepted")
	}

	_, srv := newFakeChroma(t)
	vs := newStore(t, map[string]any{"base_url": srv.URL, "collection": "absent", "create_if_missing": false})
	if _, err := vs.List(t.Context(), vectorstore.Filter{}); err == nil || !strings.Contains(err.Error(), "absent") {
		t.Fatalf("err=%v", err)
	}
	if err := vs.Upsert(t.Context(), []vectorstore.Item{{ID: "a"}}); err == nil {
		t.Fatal("empty vector accepted")
	}
}
