package memory

import (
	"sort"
	"strings"
)

// PinImportance marks facts that are considered before any other.
const PinImportance = 0.9

// Fact is one remembered statement about a user.
type Fact struct {
	ID         string  `json:"id"`
	Owner      string  `json:"owner"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	CreatedAt  int64   `json:"created_at"`
	// Score is the similarity to the current query; zero outside retrieval.
	Score float32 `json:"score,omitempty"`
}

// SelectionLog summarizes a Select decision.
type SelectionLog struct {
	IncludedTokens int // tokens of included facts
	DroppedCount   int // facts excluded by the budget; duplicates are not counted
}

// Select picks facts for the prompt under a token budget.
// Behavior:
// - Deduplicate by case-folded content, keeping the highest scoring copy.
// - Consider pinned facts (importance >= PinImportance) first.
// - Within each group order by score, then importance, then ID.
// - Never exceed maxTokens; maxTokens <= 0 means unlimited.
func Select(facts []Fact, maxTokens int, estimate TokenEstimator) ([]Fact, SelectionLog) {
	if estimate == nil {
		estimate = RuneEstimator
	}
	best := make(map[string]Fact, len(facts))
	for _, f := range facts {
		k := strings.ToLower(strings.TrimSpace(f.Content))
		if k == "" {
			continue
		}
		if cur, ok := best[k]; !ok || better(f, cur) {
			best[k] = f
		}
	}
	var pinned, others []Fact
	for _, f := range best {
		if f.Importance >= PinImportance {
			pinned = append(pinned, f)
		} else {
			others = append(others, f)
		}
	}
	sort.Slice(pinned, func(i, j int) bool { return better(pinned[i], pinned[j]) })
	sort.Slice(others, func(i, j int) bool { return better(others[i], others[j]) })

	budget := maxTokens
	result := make([]Fact, 0, len(best))
	var log SelectionLog
	take := func(f Fact) {
		cost := estimate(f.Content)
		if maxTokens > 0 && cost > budget {
			log.DroppedCount++
			return
		}
		budget -= cost
		log.IncludedTokens += cost
		result = append(result, f)
	}
	for _, f := range pinned {
		take(f)
	}
	for _, f := range others {
		take(f)
	}
	return result, log
}

func better(a, b Fact) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	return a.ID < b.ID
}
