// Package registry applies ownership rules on top of a store: visibility,
// immutable global tools, move-to-recycle-bin deletes and the per-session
// tool forge copy.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/tool"
)

// Service is safe for concurrent use.
type Service struct {
	store        store.Store
	defaultModel string
	log          *slog.Logger
	now          func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithDefaultModel sets the model given to tools that name none.
func WithDefaultModel(m string) Option { return func(s *Service) { s.defaultModel = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a Service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// DefaultModel returns the model used when a tool names none.
func (s *Service) DefaultModel() string {
	if s.defaultModel == "" {
		return tool.DefaultModel
	}
	return s.defaultModel
}

// Get returns a tool visible to session.
func (s *Service) Get(ctx context.Context, session, slug string) (*tool.Definition, error) {
	d, err := s.store.GetTool(ctx, slug)
	if err != nil {
		return nil, storeError(err, "tool", slug)
	}
	if !d.VisibleTo(session) {
		return nil, errmodel.NotFound("tool not found", map[string]any{"slug": slug})
	}
	return d, nil
}

// List returns the tools visible to session ordered by name.
func (s *Service) List(ctx context.Context, session string) ([]*tool.Definition, error) {
	return s.store.ListTools(ctx, store.ToolFilter{Session: session})
}

// SaveResult describes a Save.
type SaveResult struct {
	Tool     *tool.Definition `json:"tool"`
	Created  bool             `json:"created"`
	Previous *tool.Definition `json:"-"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Save validates d and creates or updates it on behalf of session. New tools
// are owned by session; an empty session creates global tools. Global tools
// can only be changed with an empty session, and tools owned by another
// session are never touched.
func (s *Service) Save(ctx context.Context, session string, d *tool.Definition) (SaveResult, error) {
	d = d.Clone()
	d.ApplyDefaults(s.DefaultModel())
	warnings, err := tool.Validate(d)
	if err != nil {
		return SaveResult{}, err
	}
	cur, err := s.store.GetTool(ctx, d.Slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.Owner = session
		if err := s.store.CreateTool(ctx, d); err != nil {
			return SaveResult{}, storeError(err, "tool", d.Slug)
		}
		s.log.InfoContext(ctx, "tool created", "slug", d.Slug, "owner", d.Owner)
		return SaveResult{Tool: d, Created: true, Warnings: warnings}, nil
	case err != nil:
		return SaveResult{}, storeError(err, "tool", d.Slug)
	}
	if cur.IsGlobal() && session != "" {
		return SaveResult{}, errmodel.Forbidden("global tools are read-only", map[string]any{"slug": d.Slug})
	}
	if !cur.IsGlobal() && cur.Owner != session {
		return SaveResult{}, errmodel.Conflict("slug is already taken", map[string]any{"slug": d.Slug})
	}
	d.Owner = cur.Owner
	if err := s.store.UpdateTool(ctx, d); err != nil {
		return SaveResult{}, storeError(err, "tool", d.Slug)
	}
	s.log.InfoContext(ctx, "tool updated", "slug", d.Slug, "owner", d.Owner)
	return SaveResult{Tool: d, Previous: cur, Warnings: warnings}, nil
}

// Delete moves a tool owned by session to the recycle bin. Global tools
// cannot be deleted this way.
func (s *Service) Delete(ctx context.Context, session, slug string) error {
	d, err := s.Get(ctx, session, slug)
	if err != nil {
		return err
	}
	if d.IsGlobal() {
		return errmodel.Forbidden("global tools cannot be deleted", map[string]any{"slug": slug})
	}
	return s.recycleTool(ctx, d)
}

// Remove deletes any tool, global ones included. It backs administrative
// tooling and still records the tool in the recycle bin.
func (s *Service) Remove(ctx context.Context, slug string) error {
	d, err := s.store.GetTool(ctx, slug)
	if err != nil {
		return storeError(err, "tool", slug)
	}
	return s.recycleTool(ctx, d)
}

func (s *Service) recycleTool(ctx context.Context, d *tool.Definition) error {
	data, err := tool.EncodeJSON(d)
	if err != nil {
		return err
	}
	rec := store.RecycleRecord{
		ID:          uuid.NewString(),
		ItemType:    store.ItemTool,
		OriginalID:  d.ID,
		DisplayText: d.Name,
		Data:        data,
		Owner:       d.Owner,
		DeletedAt:   s.now().UTC(),
	}
	if err := s.store.AddRecycle(ctx, rec); err != nil {
		return storeError(err, "recycle", rec.ID)
	}
	if err := s.store.DeleteTool(ctx, d.Slug); err != nil {
		return storeError(err, "tool", d.Slug)
	}
	s.log.InfoContext(ctx, "tool deleted", "slug", d.Slug, "recycle_id", rec.ID)
	return nil
}

// Interactions lists the runs of session, newest first.
func (s *Service) Interactions(ctx context.Context, session, toolSlug string, limit int) ([]store.Interaction, error) {
	return s.store.ListInteractions(ctx, store.InteractionFilter{Owner: session, ToolSlug: toolSlug, Limit: limit})
}

// LogInteraction records one run of slug by session.
func (s *Service) LogInteraction(ctx context.Context, session, slug string, input, output any) (store.Interaction, error) {
	in, err := jsonv.Encode(input)
	if err != nil {
		return store.Interaction{}, err
	}
	out, err := jsonv.Encode(output)
	if err != nil {
		return store.Interaction{}, err
	}
	rec := store.Interaction{
		ID:        uuid.NewString(),
		ToolSlug:  slug,
		Input:     in,
		Output:    out,
		Owner:     session,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddInteraction(ctx, rec); err != nil {
		return store.Interaction{}, storeError(err, "interaction", rec.ID)
	}
	return rec, nil
}

// DeleteInteraction moves one of session's runs to the recycle bin.
func (s *Service) DeleteInteraction(ctx context.Context, session, id string) error {
	in, err := s.store.GetInteraction(ctx, id)
	if err != nil {
		return storeError(err, "interaction", id)
	}
	if in.Owner != session {
		return errmodel.NotFound("interaction not found", map[string]any{"id": id})
	}
	data, err := jsonv.Encode(in)
	if err != nil {
		return err
	}
	rec := store.RecycleRecord{
		ID:          uuid.NewString(),
		ItemType:    store.ItemInteraction,
		OriginalID:  in.ID,
		DisplayText: in.ToolSlug + " run " + in.CreatedAt.Format(time.RFC3339),
		Data:        data,
		Owner:       in.Owner,
		DeletedAt:   s.now().UTC(),
	}
	if err := s.store.AddRecycle(ctx, rec); err != nil {
		return storeError(err, "recycle", rec.ID)
	}
	if err := s.store.DeleteInteraction(ctx, id); err != nil {
		return storeError(err, "interaction", id)
	}
	return nil
}

// RecycleBin lists global records and those of session, newest first.
func (s *Service) RecycleBin(ctx context.Context, session string, limit int) ([]store.RecycleRecord, error) {
	return s.store.ListRecycle(ctx, session, limit)
}

// Bootstrap gives session its own editable copy of the global tool forge.
// It is idempotent and returns the slug of the copy.
func (s *Service) Bootstrap(ctx context.Context, session string) (slug string, created bool, err error) {
	slug = ForgeSlugFor(session)
	if session == "" || slug == "" {
		return "", false, errmodel.Validation(errmodel.CodeBadInput, "session id required", nil)
	}
	cur, err := s.store.GetTool(ctx, slug)
	switch {
	case err == nil && cur.Owner == session:
		return slug, false, nil
	case err == nil:
		return "", false, errmodel.Conflict("tool forge slug is taken", map[string]any{"slug": slug})
	case !errors.Is(err, store.ErrNotFound):
		return "", false, storeError(err, "tool", slug)
	}
	global, err := s.store.GetTool(ctx, tool.ForgeSlug)
	if err != nil {
		return "", false, errmodel.System(errmodel.CodeInternal, "global tool forge not found", nil, err)
	}
	cp := global.Clone()
	cp.ID = uuid.NewString()
	cp.Slug = slug
	cp.Name = "Tool Forge User"
	cp.Description = "Your personal, editable Tool Forge."
	cp.Color = "from-purple-600 to-indigo-600"
	cp.Owner = session
	cp.CreatedAt, cp.UpdatedAt = time.Time{}, time.Time{}
	if err := s.store.CreateTool(ctx, cp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// lost a race with a concurrent bootstrap of the same session
			return slug, false, nil
		}
		return "", false, storeError(err, "tool", slug)
	}
	s.log.InfoContext(ctx, "tool forge provisioned", "slug", slug, "owner", session)
	return slug, true, nil
}

// ForgeSlugFor returns the slug of session's tool forge copy, built from
// the first eight slug-safe characters of the session id.
func ForgeSlugFor(session string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(session) {
		if b.Len() == 8 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return tool.ForgeSlug + "-user-" + b.String()
}

// Seed creates every definition whose slug does not exist yet as a global
// tool. Existing tools are left alone.
func (s *Service) Seed(ctx context.Context, defs []*tool.Definition) (int, error) {
	n := 0
	for _, d := range defs {
		if _, err := s.store.GetTool(ctx, d.Slug); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return n, storeError(err, "tool", d.Slug)
		}
		if _, err := s.Save(ctx, "", d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func storeError(err error, kind, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errmodel.NotFound(kind+" not found", map[string]any{"id": id})
	case errors.Is(err, store.ErrConflict):
		return errmodel.Conflict(kind+" already exists", map[string]any{"id": id})
	default:
		return errmodel.System(errmodel.CodeInternal, "store failure", map[string]any{kind: id}, err)
	}
}
