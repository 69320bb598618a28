package tools

import (
	"context"
	"fmt"
)

// SpawnTool lets an agent delegate a task to a subagent that runs in the
// background; the result is announced back once it finishes instead of
// blocking the caller.
type SpawnTool struct {
	manager      *SubagentManager
	defaultAgent string
	depth        int
}

func NewSpawnTool(manager *SubagentManager, defaultAgent string, depth int) *SpawnTool {
	return &SpawnTool{manager: manager, defaultAgent: defaultAgent, depth: depth}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a background subagent to work on a task asynchronously; its result is announced back when done."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task":  map[string]interface{}{"type": "string", "description": "the task for the subagent to perform"},
			"label": map[string]interface{}{"type": "string", "description": "short human-readable label for the task"},
			"model": map[string]interface{}{"type": "string", "description": "optional model override for this subagent"},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	model, _ := args["model"].(string)

	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	peerKind := ToolPeerKindFromCtx(ctx)
	callback := ToolAsyncCBFromCtx(ctx)

	msg, err := t.manager.Spawn(ctx, t.defaultAgent, t.depth, task, label, model, channel, chatID, peerKind, callback)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to spawn subagent: %v", err)).WithError(err)
	}
	return AsyncResult(msg)
}
