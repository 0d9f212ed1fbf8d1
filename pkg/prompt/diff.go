package prompt

import (
	"strings"
)

// UnifiedDiff returns a line diff of two system prompts in unified style:
// a "---"/"+++" header naming both sides, then every line prefixed with
// ' ', '-' or '+'. Identical inputs yield "". Lines are matched by their
// longest common subsequence so edits in the middle of a prompt keep the
// surrounding lines as context.
func UnifiedDiff(fromLabel, toLabel, a, b string) string {
	if a == b {
		return ""
	}
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")

	// lcs[i][j] is the common subsequence length of al[i:] and bl[j:].
	lcs := make([][]int, len(al)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(bl)+1)
	}
	for i := len(al) - 1; i >= 0; i-- {
		for j := len(bl) - 1; j >= 0; j-- {
			if al[i] == bl[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("--- " + fromLabel + "\n")
	sb.WriteString("+++ " + toLabel + "\n")
	i, j := 0, 0
	for i < len(al) && j < len(bl) {
		switch {
		case al[i] == bl[j]:
			sb.WriteString(" " + al[i] + "\n")
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			sb.WriteString("-" + al[i] + "\n")
			i++
		default:
			sb.WriteString("+" + bl[j] + "\n")
			j++
		}
	}
	for ; i < len(al); i++ {
		sb.WriteString("-" + al[i] + "\n")
	}
	for ; j < len(bl); j++ {
		sb.WriteString("+" + bl[j] + "\n")
	}
	return sb.String()
}
