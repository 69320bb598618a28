package tools

import (
	"context"
	"fmt"
)

// SubagentTool runs a task in a subagent synchronously and returns its
// result inline, for callers that need the answer before continuing.
type SubagentTool struct {
	manager      *SubagentManager
	defaultAgent string
	depth        int
}

func NewSubagentTool(manager *SubagentManager, defaultAgent string, depth int) *SubagentTool {
	return &SubagentTool{manager: manager, defaultAgent: defaultAgent, depth: depth}
}

func (t *SubagentTool) Name() string { return "subagent" }
func (t *SubagentTool) Description() string {
	return "Run a task in a subagent and block until it completes, returning its result directly."
}

func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task":  map[string]interface{}{"type": "string", "description": "the task for the subagent to perform"},
			"label": map[string]interface{}{"type": "string", "description": "short human-readable label for the task"},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	result, iterations, err := t.manager.RunSync(ctx, t.defaultAgent, t.depth, task, label, channel, chatID)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent failed after %d iterations: %v", iterations, err)).WithError(err)
	}
	return NewResult(result)
}
