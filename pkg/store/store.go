// Package store defines persistence interfaces for tools, interactions and
// the recycle bin. Implementations must provide identical semantics across
// backends; storetest holds the shared conformance suite.
package store

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wilhg/kit/pkg/tool"
)

// Sentinel errors returned by every backend.
var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

// DefaultInteractionLimit bounds ListInteractions when no limit is given.
const DefaultInteractionLimit = 20

// Recycle-bin item types.
const (
	ItemTool        = "tool"
	ItemInteraction = "interaction"
)

// Interaction is one logged tool run.
type Interaction struct {
	ID        string          `json:"id"`
	ToolSlug  string          `json:"tool_slug"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Owner     string          `json:"owner,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecycleRecord is a copy of a deleted item.
type RecycleRecord struct {
	ID          string          `json:"id"`
	ItemType    string          `json:"item_type"`
	OriginalID  string          `json:"original_id"`
	DisplayText string          `json:"display_text"`
	Data        json.RawMessage `json:"data"`
	Owner       string          `json:"owner,omitempty"`
	DeletedAt   time.Time       `json:"deleted_at"`
}

// ToolFilter selects tools. With All unset only tools visible to Session
// (global or owned by it) are returned.
type ToolFilter struct {
	Session string
	All     bool
}

// Match reports whether d passes the filter.
func (f ToolFilter) Match(d *tool.Definition) bool {
	return f.All || d.VisibleTo(f.Session)
}

// InteractionFilter selects interactions, newest first.
type InteractionFilter struct {
	Owner    string
	ToolSlug string
	Limit    int
}

// EffectiveLimit returns Limit or DefaultInteractionLimit.
func (f InteractionFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultInteractionLimit
	}
	return f.Limit
}

// ToolStore persists tool definitions keyed by slug. Lists are ordered by
// name, then slug.
type ToolStore interface {
	GetTool(ctx context.Context, slug string) (*tool.Definition, error)
	ListTools(ctx context.Context, f ToolFilter) ([]*tool.Definition, error)
	// CreateTool returns ErrConflict when the slug is taken.
	CreateTool(ctx context.Context, d *tool.Definition) error
	// UpdateTool returns ErrNotFound when the slug does not exist.
	UpdateTool(ctx context.Context, d *tool.Definition) error
	DeleteTool(ctx context.Context, slug string) error
}

// InteractionStore persists tool runs.
type InteractionStore interface {
	AddInteraction(ctx context.Context, in Interaction) error
	GetInteraction(ctx context.Context, id string) (Interaction, error)
	ListInteractions(ctx context.Context, f InteractionFilter) ([]Interaction, error)
	DeleteInteraction(ctx context.Context, id string) error
}

// RecycleStore keeps records of deleted items.
type RecycleStore interface {
	AddRecycle(ctx context.Context, r RecycleRecord) error
	// ListRecycle returns global records and those owned by owner, newest first.
	ListRecycle(ctx context.Context, owner string, limit int) ([]RecycleRecord, error)
}

// Store aggregates all stores.
type Store interface {
	ToolStore
	InteractionStore
	RecycleStore
	Close() error
}
