// Package form turns a tool's input schema into an ordered list of input
// controls. The package is UI-agnostic: it describes controls, it does not
// draw them.
package form

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wilhg/kit/pkg/schema"
)

// Kind is the input control used for one field.
type Kind string

const (
	KindImageUpload Kind = "image_upload"
	KindCheckbox    Kind = "checkbox"
	KindSlider      Kind = "slider"
	KindMultiSelect Kind = "multi_select"
	KindRadioGroup  Kind = "radio_group"
	KindTextArea    Kind = "text_area"
	KindTextInput   Kind = "text_input"
)

// Radio group orientations.
const (
	Horizontal = "horizontal"
	Vertical   = "vertical"
)

// Textarea heuristics.
const (
	longTextMaxLength = 100
	defaultTextRows   = 4
	cvTextRows        = 10
)

var longTextKeyHints = []string{"context", "description", "notes", "text", "cv_text"}

// Control describes one input field.
type Control struct {
	Key         string   `json:"key"`
	Kind        Kind     `json:"kind"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	HelpText    string   `json:"help_text,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Orientation string   `json:"orientation,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Rows        int      `json:"rows,omitempty"`
	InputType   string   `json:"input_type,omitempty"`
	Value       any      `json:"value,omitempty"`
}

// Classify picks the control for one property. Rules are tried in order
// and the first match wins.
func Classify(key string, n *schema.Node) Kind {
	if n == nil {
		n = &schema.Node{}
	}
	switch {
	case key == "image" || n.Component == "image" || (n.Type == "string" && n.Format == "data-url"):
		return KindImageUpload
	case n.Type == "boolean":
		return KindCheckbox
	case n.Type == "integer" && n.Minimum != nil && n.Maximum != nil:
		return KindSlider
	case n.Type == "array" && n.Items != nil && len(n.Items.Enum) > 0:
		return KindMultiSelect
	case len(n.Enum) > 0:
		return KindRadioGroup
	case n.Type == "string" && isLongText(key, n):
		return KindTextArea
	default:
		return KindTextInput
	}
}

func isLongText(key string, n *schema.Node) bool {
	if n.MaxLength != nil && *n.MaxLength > longTextMaxLength {
		return true
	}
	lk := strings.ToLower(key)
	for _, h := range longTextKeyHints {
		if strings.Contains(lk, h) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(n.Description), "long")
}

// Label is the schema title, else the key with underscores turned into
// spaces and each word capitalized.
func Label(key string, n *schema.Node) string {
	if n != nil && n.Title != "" {
		return n.Title
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Build classifies one property and fills in the kind-specific parameters.
func Build(key string, n *schema.Node, required bool, value any, present bool) Control {
	if n == nil {
		n = &schema.Node{}
	}
	c := Control{
		Key:      key,
		Kind:     Classify(key, n),
		Label:    Label(key, n),
		Required: required,
	}
	if present {
		c.Value = value
	}
	if n.Description != "" && n.Type != "boolean" && n.Type != "string" {
		c.HelpText = n.Description
	}
	switch c.Kind {
	case KindSlider:
		c.Min, c.Max, c.Unit = n.Minimum, n.Maximum, n.Unit
		if !present || value == nil {
			c.Value = *n.Minimum
		}
	case KindMultiSelect:
		c.Options = n.Items.Enum
		if !present || value == nil {
			c.Value = []any{}
		}
	case KindRadioGroup:
		c.Options = n.Enum
		c.Orientation = Vertical
		if len(n.Enum) <= 4 {
			c.Orientation = Horizontal
		}
	case KindTextArea:
		c.Placeholder = placeholder(c.Label, n)
		c.Rows = defaultTextRows
		if key == "cv_text" {
			c.Rows = cvTextRows
		}
	case KindTextInput:
		c.Placeholder = placeholder(c.Label, n)
		c.InputType = "text"
		if n.Type == "integer" || n.Type == "number" {
			c.InputType = "number"
		}
	case KindCheckbox:
		if !present || value == nil {
			c.Value = false
		}
	}
	return c
}

func placeholder(label string, n *schema.Node) string {
	if n.Description != "" {
		return n.Description
	}
	return "Enter " + label + "..."
}
