// Package tool defines the AI tool definition: a system prompt plus the
// input and output schemas that drive form generation and rendering.
package tool

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wilhg/kit/pkg/schema"
)

// Defaults applied to definitions that leave presentation fields empty.
const (
	DefaultIcon          = "Zap"
	DefaultColor         = "from-gray-500 to-gray-700"
	DefaultModel         = "google/gemini-2.0-flash-lite-001"
	DefaultSchemaVersion = 1
)

// ForgeSlug is the global meta-tool whose output is itself a Definition.
const ForgeSlug = "tool-forge"

// Definition is one AI tool. An empty Owner means the tool is global.
type Definition struct {
	ID            string          `json:"id,omitempty"`
	Slug          string          `json:"slug" validate:"required,slug,max=100"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Icon          string          `json:"icon,omitempty"`
	Color         string          `json:"color,omitempty"`
	SystemPrompt  string          `json:"system_prompt" validate:"required"`
	InputSchema   json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema  json.RawMessage `json:"output_schema,omitempty"`
	Model         string          `json:"model,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	SchemaVersion int             `json:"schema_version,omitempty" validate:"gte=0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsGlobal reports whether the tool belongs to nobody.
func (d *Definition) IsGlobal() bool { return d.Owner == "" }

// VisibleTo reports whether session may see the tool: global tools are
// visible to everyone, owned tools only to their owner.
func (d *Definition) VisibleTo(session string) bool {
	return d.Owner == "" || d.Owner == session
}

// Input returns the parsed input schema; an absent or broken schema
// yields an empty node.
func (d *Definition) Input() *schema.Node { return parseOrEmpty(d.InputSchema) }

// Output returns the parsed output schema; an absent or broken schema
// yields an empty node.
func (d *Definition) Output() *schema.Node { return parseOrEmpty(d.OutputSchema) }

func parseOrEmpty(raw []byte) *schema.Node {
	if len(raw) == 0 {
		return &schema.Node{}
	}
	n, err := schema.Parse(raw)
	if err != nil {
		return &schema.Node{}
	}
	return n
}

// ApplyDefaults fills presentation fields, the model and empty schemas.
// defaultModel may be empty to use DefaultModel.
func (d *Definition) ApplyDefaults(defaultModel string) {
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
	if d.Color == "" {
		d.Color = DefaultColor
	}
	if d.Model == "" {
		d.Model = defaultModel
		if d.Model == "" {
			d.Model = DefaultModel
		}
	}
	if d.SchemaVersion == 0 {
		d.SchemaVersion = DefaultSchemaVersion
	}
	if len(d.InputSchema) == 0 {
		d.InputSchema = json.RawMessage("{}")
	}
	if len(d.OutputSchema) == 0 {
		d.OutputSchema = json.RawMessage("{}")
	}
}

// Clone returns a copy that shares no byte slices with d.
func (d *Definition) Clone() *Definition {
	c := *d
	c.InputSchema = append(json.RawMessage(nil), d.InputSchema...)
	c.OutputSchema = append(json.RawMessage(nil), d.OutputSchema...)
	return &c
}

// IsForge reports whether slug names the tool forge or a per-session copy
// of it.
func IsForge(slug string) bool {
	return slug == ForgeSlug || strings.HasPrefix(slug, ForgeSlug+"-user-")
}
