// Package schema models the subset of JSON Schema that drives forms and
// rendering, plus the display extensions `unit` and `x-component`.
package schema

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wilhg/kit/pkg/jsonv"
)

// Property is a named sub-schema. Properties keep document order.
type Property struct {
	Name string
	Node *Node
}

// Node is one schema node. Absent attributes keep their zero value; a
// nil *Node behaves like the empty schema.
type Node struct {
	Type        string
	Title       string
	Description string
	Format      string
	Unit        string
	Component   string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	MaxLength   *int
	Required    []string
	Items       *Node
	Properties  []Property

	raw []byte
}

// Parse decodes a JSON schema document.
func Parse(raw []byte) (*Node, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &Node{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("schema: invalid json")
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return nil, fmt.Errorf("schema: expected object, got %s", r.Type)
	}
	n := fromResult(r)
	n.raw = append([]byte(nil), raw...)
	return n, nil
}

// MustParse is Parse for literals in tests and seed data.
func MustParse(raw string) *Node {
	n, err := Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return n
}

func fromResult(r gjson.Result) *Node {
	n := &Node{}
	if !r.IsObject() {
		return n
	}
	r.ForEach(func(k, v gjson.Result) bool {
		switch k.Str {
		case "type":
			// ["string","null"] picks the first non-null entry.
			if v.IsArray() {
				for _, t := range v.Array() {
					if t.Str != "null" {
						n.Type = t.Str
						break
					}
				}
			} else {
				n.Type = v.String()
			}
		case "title":
			n.Title = v.String()
		case "description":
			n.Description = v.String()
		case "format":
			n.Format = v.String()
		case "unit":
			n.Unit = v.String()
		case "x-component":
			n.Component = v.String()
		case "enum":
			for _, e := range v.Array() {
				n.Enum = append(n.Enum, e.String())
			}
		case "minimum":
			if v.Type == gjson.Number {
				f := v.Num
				n.Minimum = &f
			}
		case "maximum":
			if v.Type == gjson.Number {
				f := v.Num
				n.Maximum = &f
			}
		case "maxLength":
			if v.Type == gjson.Number {
				i := int(v.Int())
				n.MaxLength = &i
			}
		case "required":
			for _, e := range v.Array() {
				n.Required = append(n.Required, e.String())
			}
		case "items":
			if v.IsObject() {
				n.Items = fromResult(v)
			}
		case "properties":
			v.ForEach(func(pk, pv gjson.Result) bool {
				n.Properties = append(n.Properties, Property{Name: pk.Str, Node: fromResult(pv)})
				return true
			})
		}
		return true
	})
	return n
}

// UnmarshalJSON lets Node sit directly inside decoded request bodies.
func (n *Node) UnmarshalJSON(b []byte) error {
	p, err := Parse(b)
	if err != nil {
		return err
	}
	*n = *p
	return nil
}

// MarshalJSON returns the source document when the node was parsed, and a
// canonical rendering of the modelled attributes otherwise.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("{}"), nil
	}
	if n.raw != nil {
		return n.raw, nil
	}
	return jsonv.Encode(n.object())
}

func (n *Node) object() *jsonv.Object {
	o := jsonv.NewObject()
	if n.Type != "" {
		o.Set("type", n.Type)
	}
	if n.Title != "" {
		o.Set("title", n.Title)
	}
	if n.Description != "" {
		o.Set("description", n.Description)
	}
	if n.Format != "" {
		o.Set("format", n.Format)
	}
	if n.Unit != "" {
		o.Set("unit", n.Unit)
	}
	if n.Component != "" {
		o.Set("x-component", n.Component)
	}
	if len(n.Enum) > 0 {
		o.Set("enum", n.Enum)
	}
	if n.Minimum != nil {
		o.Set("minimum", *n.Minimum)
	}
	if n.Maximum != nil {
		o.Set("maximum", *n.Maximum)
	}
	if n.MaxLength != nil {
		o.Set("maxLength", *n.MaxLength)
	}
	if len(n.Required) > 0 {
		o.Set("required", n.Required)
	}
	if n.Items != nil {
		o.Set("items", n.Items.object())
	}
	if len(n.Properties) > 0 {
		props := jsonv.NewObject()
		for _, p := range n.Properties {
			props.Set(p.Name, p.Node.object())
		}
		o.Set("properties", props)
	}
	return o
}

// Property returns the named sub-schema.
func (n *Node) Property(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Node, true
		}
	}
	return nil, false
}

// PropertyNames lists property names in document order.
func (n *Node) PropertyNames() []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Properties))
	for _, p := range n.Properties {
		out = append(out, p.Name)
	}
	return out
}

// HasProperties reports whether the node declares at least one property.
func (n *Node) HasProperties() bool {
	return n != nil && len(n.Properties) > 0
}

// IsRequired reports whether name is listed in the node's required set.
func (n *Node) IsRequired(name string) bool {
	if n == nil {
		return false
	}
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Resolve finds the sub-schema for a dot path. Each segment is looked up
// in the current node's properties, then in its items' properties. A
// missing segment yields the empty schema, never nil.
func Resolve(root *Node, path string) *Node {
	if root == nil || path == "" || !root.HasProperties() {
		return &Node{}
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		if next, ok := cur.Property(seg); ok {
			cur = next
			continue
		}
		if cur.Items != nil {
			if next, ok := cur.Items.Property(seg); ok {
				cur = next
				continue
			}
		}
		return &Node{}
	}
	if cur == nil {
		return &Node{}
	}
	return cur
}
