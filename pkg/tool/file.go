package tool

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/wilhg/kit/pkg/jsonv"
)

// LoadFile reads one definition from a .json, .yaml or .yml file.
func LoadFile(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(b)
	case ".yaml", ".yml":
		return ParseYAML(b)
	default:
		return nil, fmt.Errorf("tool: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadDir reads every definition file in dir, sorted by file name.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []*Definition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		d, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseJSON decodes a definition. Schema bytes are kept verbatim so their
// property order survives.
func ParseJSON(b []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("tool: decode json: %w", err)
	}
	return &d, nil
}

// ParseYAML decodes a YAML definition. Mappings are converted to ordered
// JSON objects so schemas keep the order they were written in.
func ParseYAML(b []byte) (*Definition, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(b)).Decode(&root); err != nil {
		return nil, fmt.Errorf("tool: decode yaml: %w", err)
	}
	v, err := fromYAML(&root)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*jsonv.Object); !ok {
		return nil, fmt.Errorf("tool: yaml document must be a mapping")
	}
	raw, err := jsonv.Encode(v)
	if err != nil {
		return nil, err
	}
	return ParseJSON(raw)
}

func fromYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		obj := jsonv.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("tool: line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("tool: unsupported yaml node at line %d", n.Line)
	}
}

// EncodeJSON renders d as indented JSON, keeping schema bytes as stored.
func EncodeJSON(d *Definition) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
