package tools

import "github.com/google/uuid"

// generateSubagentID returns a short unique identifier for a subagent task.
func generateSubagentID() string {
	return "sub_" + uuid.NewString()
}

// truncate shortens s to at most max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
