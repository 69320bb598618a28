package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/goclaw/internal/skills"
)

// SkillSearchTool lets an agent look up which installed skills apply to a
// task description, listing each match's name and description.
type SkillSearchTool struct {
	loader *skills.Loader
}

func NewSkillSearchTool(loader *skills.Loader) *SkillSearchTool {
	return &SkillSearchTool{loader: loader}
}

func (t *SkillSearchTool) Name() string        { return "skill_search" }
func (t *SkillSearchTool) Description() string { return "Find installed skills relevant to a task description." }

func (t *SkillSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "task description to match against skill triggers"},
		},
		"required": []string{"query"},
	}
}

func (t *SkillSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	names := t.loader.SelectForMessage(query, 5)
	if len(names) == 0 {
		return SilentResult("No matching skills.")
	}

	var b strings.Builder
	for _, name := range names {
		sk, ok := t.loader.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", sk.Name, sk.Description)
	}
	return NewResult(b.String())
}
