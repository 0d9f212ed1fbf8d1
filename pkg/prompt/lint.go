package prompt

import "strings"

// Issue describes a lint finding.
type Issue struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

var secretMarkers = []string{"aws_secret_access_key", "begin private key", "sk-"}

// Lint runs basic checks on a tool's system prompt.
func Lint(name, body string) []Issue {
	var issues []Issue
	if name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if strings.TrimSpace(body) == "" {
		issues = append(issues, Issue{Rule: "body.required", Message: "system prompt is empty"})
	}
	// naive patterns; can be extended
	lb := strings.ToLower(body)
	for _, m := range secretMarkers {
		if strings.Contains(lb, m) {
			issues = append(issues, Issue{Rule: "security.secrets", Message: "system prompt appears to contain secrets-like content"})
			break
		}
	}
	return issues
}
