// Package gormstore implements store.Store with GORM on PostgreSQL or SQLite.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/tool"
)

// Option allows configuring DB connection.
type Option func(*config)

type config struct {
	Logger logger.Interface
}

// WithLogger sets a custom GORM logger.
func WithLogger(l logger.Interface) Option { return func(c *config) { c.Logger = l } }

// Open opens a GORM connection and migrates the schema. DSNs starting with
// "sqlite:" use SQLite, anything else is handed to the Postgres driver.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := &config{Logger: logger.Default.LogMode(logger.Silent)}
	for _, o := range opts {
		o(cfg)
	}
	gormCfg := &gorm.Config{Logger: cfg.Logger, TranslateError: true}
	var dialector gorm.Dialector
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialector = sqlite.Open(rest)
	} else {
		dialector = postgres.Open(dsn)
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	if dialector.Name() == "sqlite" {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&ToolModel{}, &InteractionModel{}, &RecycleModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// ToolModel represents the GORM model for tools.
type ToolModel struct {
	Slug          string `gorm:"primaryKey;type:text"`
	ID            string `gorm:"type:text;not null"`
	Name          string `gorm:"type:text;not null"`
	Description   string `gorm:"type:text;not null;default:''"`
	Icon          string `gorm:"type:text;not null;default:''"`
	Color         string `gorm:"type:text;not null;default:''"`
	SystemPrompt  string `gorm:"type:text;not null"`
	InputSchema   string `gorm:"type:text;not null;default:''"`
	OutputSchema  string `gorm:"type:text;not null;default:''"`
	Model         string `gorm:"type:text;not null;default:''"`
	Owner         string `gorm:"index;type:text;not null;default:''"`
	SchemaVersion int    `gorm:"not null"`
	CreatedAt     int64  `gorm:"autoCreateTime:false;not null"`
	UpdatedAt     int64  `gorm:"autoUpdateTime:false;not null"`
}

func (ToolModel) TableName() string { return "tools" }

// InteractionModel represents the GORM model for interactions.
type InteractionModel struct {
	ID        string `gorm:"primaryKey;type:text"`
	ToolSlug  string `gorm:"type:text;not null"`
	Input     string `gorm:"type:text;not null;default:''"`
	Output    string `gorm:"type:text;not null;default:''"`
	Owner     string `gorm:"index:interactions_owner_created;type:text;not null;default:''"`
	CreatedAt int64  `gorm:"index:interactions_owner_created;autoCreateTime:false;not null"`
}

func (InteractionModel) TableName() string { return "interactions" }

// RecycleModel represents the GORM model for recycle-bin records.
type RecycleModel struct {
	ID          string `gorm:"primaryKey;type:text"`
	ItemType    string `gorm:"type:text;not null"`
	OriginalID  string `gorm:"type:text;not null"`
	DisplayText string `gorm:"type:text;not null;default:''"`
	Data        string `gorm:"type:text;not null;default:''"`
	Owner       string `gorm:"index;type:text;not null;default:''"`
	DeletedAt   int64  `gorm:"not null"`
}

func (RecycleModel) TableName() string { return "recycle_bin" }

// Store implements store.Store using GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetTool(ctx context.Context, slug string) (*tool.Definition, error) {
	var m ToolModel
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.definition(), nil
}

func (s *Store) ListTools(ctx context.Context, f store.ToolFilter) ([]*tool.Definition, error) {
	q := s.db.WithContext(ctx)
	if !f.All {
		q = q.Where("owner = ? OR owner = ?", "", f.Session)
	}
	var models []ToolModel
	if err := q.Order("name asc, slug asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*tool.Definition, 0, len(models))
	for i := range models {
		out = append(out, models[i].definition())
	}
	return out, nil
}

func (s *Store) CreateTool(ctx context.Context, d *tool.Definition) error {
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	m := toolModel(d)
	return translate(s.db.WithContext(ctx).Create(&m).Error)
}

func (s *Store) UpdateTool(ctx context.Context, d *tool.Definition) error {
	cur, err := s.GetTool(ctx, d.Slug)
	if err != nil {
		return err
	}
	d.ID, d.CreatedAt = cur.ID, cur.CreatedAt
	d.UpdatedAt = s.now().UTC()
	m := toolModel(d)
	res := s.db.WithContext(ctx).Model(&ToolModel{}).Where("slug = ?", d.Slug).Updates(map[string]any{
		"name":           m.Name,
		"description":    m.Description,
		"icon":           m.Icon,
		"color":          m.Color,
		"system_prompt":  m.SystemPrompt,
		"input_schema":   m.InputSchema,
		"output_schema":  m.OutputSchema,
		"model":          m.Model,
		"owner":          m.Owner,
		"schema_version": m.SchemaVersion,
		"updated_at":     m.UpdatedAt,
	})
	return affectedOne(res)
}

func (s *Store) DeleteTool(ctx context.Context, slug string) error {
	return affectedOne(s.db.WithContext(ctx).Where("slug = ?", slug).Delete(&ToolModel{}))
}

func (s *Store) AddInteraction(ctx context.Context, in store.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}
	m := InteractionModel{
		ID:        in.ID,
		ToolSlug:  in.ToolSlug,
		Input:     string(in.Input),
		Output:    string(in.Output),
		Owner:     in.Owner,
		CreatedAt: in.CreatedAt.UnixNano(),
	}
	return translate(s.db.WithContext(ctx).Create(&m).Error)
}

func (s *Store) GetInteraction(ctx context.Context, id string) (store.Interaction, error) {
	var m InteractionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Interaction{}, store.ErrNotFound
	}
	if err != nil {
		return store.Interaction{}, err
	}
	return m.interaction(), nil
}

func (s *Store) ListInteractions(ctx context.Context, f store.InteractionFilter) ([]store.Interaction, error) {
	q := s.db.WithContext(ctx).Where("owner = ?", f.Owner)
	if f.ToolSlug != "" {
		q = q.Where("tool_slug = ?", f.ToolSlug)
	}
	var models []InteractionModel
	if err := q.Order("created_at desc, id desc").Limit(f.EffectiveLimit()).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Interaction, 0, len(models))
	for _, m := range models {
		out = append(out, m.interaction())
	}
	return out, nil
}

func (s *Store) DeleteInteraction(ctx context.Context, id string) error {
	return affectedOne(s.db.WithContext(ctx).Where("id = ?", id).Delete(&InteractionModel{}))
}

func (s *Store) AddRecycle(ctx context.Context, r store.RecycleRecord) error {
	if r.DeletedAt.IsZero() {
		r.DeletedAt = s.now().UTC()
	}
	m := RecycleModel{
		ID:          r.ID,
		ItemType:    r.ItemType,
		OriginalID:  r.OriginalID,
		DisplayText: r.DisplayText,
		Data:        string(r.Data),
		Owner:       r.Owner,
		DeletedAt:   r.DeletedAt.UnixNano(),
	}
	return translate(s.db.WithContext(ctx).Create(&m).Error)
}

func (s *Store) ListRecycle(ctx context.Context, owner string, limit int) ([]store.RecycleRecord, error) {
	q := s.db.WithContext(ctx).Where("owner = ? OR owner = ?", "", owner).Order("deleted_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []RecycleModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.RecycleRecord, 0, len(models))
	for _, m := range models {
		out = append(out, store.RecycleRecord{
			ID:          m.ID,
			ItemType:    m.ItemType,
			OriginalID:  m.OriginalID,
			DisplayText: m.DisplayText,
			Data:        raw(m.Data),
			Owner:       m.Owner,
			DeletedAt:   fromNanos(m.DeletedAt),
		})
	}
	return out, nil
}

func toolModel(d *tool.Definition) ToolModel {
	return ToolModel{
		Slug:          d.Slug,
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Icon:          d.Icon,
		Color:         d.Color,
		SystemPrompt:  d.SystemPrompt,
		InputSchema:   string(d.InputSchema),
		OutputSchema:  string(d.OutputSchema),
		Model:         d.Model,
		Owner:         d.Owner,
		SchemaVersion: d.SchemaVersion,
		CreatedAt:     d.CreatedAt.UnixNano(),
		UpdatedAt:     d.UpdatedAt.UnixNano(),
	}
}

func (m *ToolModel) definition() *tool.Definition {
	return &tool.Definition{
		ID:            m.ID,
		Slug:          m.Slug,
		Name:          m.Name,
		Description:   m.Description,
		Icon:          m.Icon,
		Color:         m.Color,
		SystemPrompt:  m.SystemPrompt,
		InputSchema:   raw(m.InputSchema),
		OutputSchema:  raw(m.OutputSchema),
		Model:         m.Model,
		Owner:         m.Owner,
		SchemaVersion: m.SchemaVersion,
		CreatedAt:     fromNanos(m.CreatedAt),
		UpdatedAt:     fromNanos(m.UpdatedAt),
	}
}

func (m *InteractionModel) interaction() store.Interaction {
	return store.Interaction{
		ID:        m.ID,
		ToolSlug:  m.ToolSlug,
		Input:     raw(m.Input),
		Output:    raw(m.Output),
		Owner:     m.Owner,
		CreatedAt: fromNanos(m.CreatedAt),
	}
}

func affectedOne(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrConflict
	}
	return err
}

func raw(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

var _ store.Store = (*Store)(nil)
