// Package prompt assembles the model request for a tool run and cleans up
// the model's reply.
package prompt

import (
	"regexp"
	"strings"

	"github.com/wilhg/kit/pkg/adapters/llm"
	"github.com/wilhg/kit/pkg/jsonv"
)

const schemaDirective = "\n\nCRITICAL: Output strict JSON matching this schema:\n"

var (
	layoutHintPattern = regexp.MustCompile(`(?i)LAYOUT INSTRUCTIONS:.*?(?:Return a _layout field: )?(\[\[.*?\]\](?:\s+\[\[.*?\]\])*)`)
	fencePattern      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")
)

// System builds the system message: the tool prompt, the retrieved
// context block, then the output schema the reply must follow.
func System(systemPrompt, contextBlock string, outputSchema []byte) string {
	schema := strings.TrimSpace(string(outputSchema))
	if schema == "" {
		schema = "{}"
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString(contextBlock)
	b.WriteString(schemaDirective)
	b.WriteString(schema)
	return b.String()
}

// Messages returns the system and user messages for one run. The user
// message is the input encoded as JSON.
func Messages(system string, input any) ([]llm.Message, error) {
	b, err := jsonv.Encode(input)
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: string(b)},
	}, nil
}

// StripFences removes a surrounding Markdown code fence and any prose
// around the outermost JSON object.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") {
		return s
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// LayoutHint extracts a layout string announced in a system prompt under
// "LAYOUT INSTRUCTIONS:".
func LayoutHint(systemPrompt string) (string, bool) {
	m := layoutHintPattern.FindStringSubmatch(systemPrompt)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}
