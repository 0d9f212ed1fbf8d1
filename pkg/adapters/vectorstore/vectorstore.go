package vectorstore

import (
	"context"

	"github.com/wilhg/kit/pkg/adapters"
)

// Vector is a single dense embedding vector.
type Vector []float32

// Item represents a vectorized document chunk with metadata for filtering and citation.
type Item struct {
	// ID is provider-assigned or caller-provided unique identifier for the item.
	ID string
	// Namespace groups items logically (e.g., by dataset, tenant, or collection).
	Namespace string
	// Vector is the dense embedding.
	Vector Vector
	// Metadata carries arbitrary attributes for filtering (e.g., source, doc_id, tags).
	Metadata map[string]any
}

// Match is a search result with similarity score and original item.
type Match struct {
	Item  Item
	Score float32 // higher is more similar
}

// VectorStore defines upsert and similarity query operations.
type VectorStore interface {
	// Upsert inserts or replaces items by ID within a namespace.
	Upsert(ctx context.Context, items []Item) error
	// Query returns top-k most similar items to the query vector, optionally filtered by namespace and metadata.
	Query(ctx context.Context, query Vector, k int, filter Filter) ([]Match, error)
	// List returns every item matching filter, ordered by ID.
	List(ctx context.Context, filter Filter) ([]Item, error)
	// Delete removes an item by ID within a namespace. Missing items are not an error.
	Delete(ctx context.Context, namespace, id string) error
}

// DefaultNamespace is used when an item or filter leaves Namespace empty.
const DefaultNamespace = "default"

// Filter constrains query results.
type Filter struct {
	Namespace string
	// Equals matches exact key/value pairs in metadata (AND semantics across keys).
	Equals map[string]any
}

// New builds a VectorStore from a registered provider.
func New(ctx context.Context, provider string, cfg map[string]any) (VectorStore, error) {
	f, ok := providers.Resolve(provider)
	if !ok {
		return nil, providers.Unknown(provider)
	}
	return f(ctx, cfg)
}

// Factory constructs a VectorStore instance from a provider-specific configuration.
type Factory func(ctx context.Context, cfg map[string]any) (VectorStore, error)

var providers = adapters.NewRegistry[Factory]("vectorstore")

// Register registers a factory under a provider name.
func Register(name string, f Factory) error { return providers.Register(name, f) }

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) { return providers.Resolve(name) }

// Providers lists the registered provider names, sorted.
func Providers() []string { return providers.Names() }
