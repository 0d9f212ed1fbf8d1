package render

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

const (
	shortTextLimit = 100
	pngDataPrefix  = "data:image/png;base64,"
)

var (
	imageKeyHints  = []string{"image", "img", "photo", "picture", "screenshot", "thumbnail"}
	titleKeyHints  = []string{"food_name", "title", "name", "heading"}
	statusKeyHints = []string{"rating", "grade", "verdict", "risk", "status", "level"}

	kcalKeyHints    = []string{"cal", "energy"}
	gramKeyHints    = []string{"protein", "carbs", "fat", "fiber", "sugar"}
	percentKeyHints = []string{"score", "confidence", "pct", "percent"}
	groupGramKeys   = map[string]bool{"protein": true, "carbs": true, "fat": true}

	positiveWords = []string{"a", "high", "pass", "low", "safe", "good"}
	cautionWords  = []string{"b", "moderate", "medium", "warning"}
	negativeWords = []string{"c", "d", "f", "bad", "fail", "critical"}
)

// Classify picks the component for one resolved value. It only looks at
// its arguments. The boolean is false when the value renders as nothing
// (empty arrays, values with no JSON meaning).
func Classify(key string, value any, sub *schema.Node) (Component, bool) {
	if sub == nil {
		sub = &schema.Node{}
	}
	v, ok := jsonv.Normalize(value)
	if !ok || v == nil {
		return Component{}, false
	}
	c := Component{Key: key, Label: label(key, sub)}

	switch sub.Component {
	case "metric":
		c.Kind, c.Value, c.Unit, c.Text = KindMetric, v, sub.Unit, display(v)
		return c, true
	case "image":
		c.Kind = KindImage
		if s, isStr := v.(string); isStr {
			c.Src = imageSrc(s)
		}
		return c, true
	}

	if s, isStr := v.(string); isImageKey(key) || (isStr && strings.HasPrefix(s, "data:image")) {
		c.Kind = KindImage
		if isStr {
			c.Src = imageSrc(s)
		}
		return c, true
	}

	switch t := v.(type) {
	case float64:
		unit := sub.Unit
		if unit == "" {
			unit = inferUnit(key)
		}
		c.Kind, c.Value, c.Unit, c.Text = KindMetric, t, unit, display(t)
		return c, true
	case []any:
		return classifyArray(c, t)
	case *jsonv.Object:
		return classifyObject(c, t, sub)
	case string:
		if utf8.RuneCountInString(t) < shortTextLimit {
			lk := strings.ToLower(key)
			switch {
			case containsAny(lk, titleKeyHints):
				c.Kind, c.Text = KindTitle, t
			case containsAny(lk, statusKeyHints):
				c.Kind, c.Text, c.Color = KindBadge, t, BadgeColor(key, t)
			default:
				c.Kind, c.Text = KindText, t
			}
			return c, true
		}
		c.Kind, c.Text = KindProse, t
		return c, true
	}
	c.Kind, c.Text = KindProse, display(v)
	return c, true
}

func label(key string, sub *schema.Node) string {
	if sub.Title != "" {
		return sub.Title
	}
	return strings.ReplaceAll(key, "_", " ")
}

// isImageKey holds for any value type; only strings get a Src. Raw base64
// payloads only count under image-like keys, so this rule covers them.
func isImageKey(key string) bool {
	return containsAny(strings.ToLower(key), imageKeyHints)
}

func imageSrc(s string) string {
	if strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "http") {
		return s
	}
	return pngDataPrefix + s
}

func inferUnit(key string) string {
	lk := strings.ToLower(key)
	switch {
	case containsAny(lk, kcalKeyHints):
		return "kcal"
	case containsAny(lk, gramKeyHints):
		return "g"
	case containsAny(lk, percentKeyHints):
		if strings.Contains(lk, "pct") {
			return "%"
		}
		return "/ 100"
	}
	return ""
}

func classifyArray(c Component, arr []any) (Component, bool) {
	if len(arr) == 0 {
		return Component{}, false
	}
	if _, isStr := arr[0].(string); isStr {
		c.Kind = KindList
		c.Items = make([]string, 0, len(arr))
		for _, e := range arr {
			c.Items = append(c.Items, cellText(e))
		}
		return c, true
	}
	c.Kind = KindTable
	if first, isObj := arr[0].(*jsonv.Object); isObj {
		c.Columns = first.Keys()
	} else {
		c.Columns = []string{"value"}
	}
	c.Rows = make([][]string, 0, len(arr))
	for _, e := range arr {
		row := make([]string, len(c.Columns))
		obj, isObj := e.(*jsonv.Object)
		for i, col := range c.Columns {
			switch {
			case isObj:
				if cell, found := obj.Get(col); found {
					row[i] = cellText(cell)
				}
			case i == 0 && col == "value":
				row[i] = cellText(e)
			}
		}
		c.Rows = append(c.Rows, row)
	}
	return c, true
}

// classifyObject renders an all-number object, the empty one included, as
// a metric group and anything else as a JSON dump.
func classifyObject(c Component, obj *jsonv.Object, sub *schema.Node) (Component, bool) {
	allNumbers := true
	obj.Range(func(_ string, v any) bool {
		_, allNumbers = v.(float64)
		return allNumbers
	})
	if !allNumbers {
		b, err := jsonv.EncodeIndent(obj)
		if err != nil {
			return Component{}, false
		}
		c.Kind, c.Text = KindJSON, string(b)
		return c, true
	}
	c.Kind, c.Metrics = KindMetricGroup, []Component{}
	obj.Range(func(k string, v any) bool {
		n := v.(float64)
		m := Component{Kind: KindMetric, Key: k, Label: k, Value: n, Text: display(n)}
		if p, ok := sub.Property(k); ok {
			if p.Title != "" {
				m.Label = p.Title
			}
			m.Unit = p.Unit
		}
		if m.Unit == "" {
			m.Unit = inferUnit(k)
		}
		if m.Unit == "" && groupGramKeys[strings.ToLower(k)] {
			m.Unit = "g"
		}
		c.Metrics = append(c.Metrics, m)
		return true
	})
	return c, true
}

// BadgeColor colors a status badge from its lowercased value. Matches on
// the positive lexicon turn red when the key names a risk.
func BadgeColor(key, value string) Color {
	lv := strings.ToLower(value)
	switch {
	case containsAny(lv, positiveWords):
		if strings.Contains(strings.ToLower(key), "risk") {
			return ColorRed
		}
		return ColorGreen
	case containsAny(lv, cautionWords):
		return ColorAmber
	case containsAny(lv, negativeWords):
		return ColorRed
	}
	return ColorNeutral
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func display(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	b, err := jsonv.Encode(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func cellText(v any) string {
	switch v.(type) {
	case *jsonv.Object, []any:
		b, err := jsonv.Encode(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return display(v)
}
