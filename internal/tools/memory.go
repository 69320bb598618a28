package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/memory"
)

// MemoryRecallTool surfaces the workspace's persistent memory (facts,
// today's working notes, and accumulated learnings) on request, for agents
// that want to re-check memory mid-conversation rather than relying solely
// on the bootstrap-time context injection.
type MemoryRecallTool struct {
	store *memory.Store
}

func NewMemoryRecallTool(store *memory.Store) *MemoryRecallTool {
	return &MemoryRecallTool{store: store}
}

func (t *MemoryRecallTool) Name() string { return "memory_recall" }

func (t *MemoryRecallTool) Description() string {
	return "Recall persistent memory: stored facts, today's working notes, and past learnings."
}

func (t *MemoryRecallTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *MemoryRecallTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content := t.store.Context()
	if content == "" {
		return SilentResult("No memory recorded yet.")
	}
	return NewResult(content)
}

// MemoryWriteTool lets an agent persist a fact or learning for future
// sessions to recall via memory_recall or the bootstrap-time context files.
type MemoryWriteTool struct {
	store *memory.Store
}

func NewMemoryWriteTool(store *memory.Store) *MemoryWriteTool {
	return &MemoryWriteTool{store: store}
}

func (t *MemoryWriteTool) Name() string { return "memory_write" }

func (t *MemoryWriteTool) Description() string {
	return "Persist a fact or learning to memory so future sessions can recall it. kind is \"fact\", \"note\", or \"learning\"."
}

func (t *MemoryWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"kind": map[string]interface{}{
				"type": "string",
				"enum": []string{"fact", "note", "learning"},
			},
			"content": map[string]interface{}{"type": "string"},
			"slug":    map[string]interface{}{"type": "string", "description": "required for kind=\"learning\": a short filename slug"},
		},
		"required": []string{"kind", "content"},
	}
}

func (t *MemoryWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	kind, _ := args["kind"].(string)
	content, _ := args["content"].(string)
	if content == "" {
		return ErrorResult("content is required")
	}

	switch kind {
	case "fact":
		existing := t.store.Facts()
		if existing != "" {
			content = existing + "\n" + content
		}
		if err := t.store.SetFacts(content); err != nil {
			return ErrorResult(fmt.Sprintf("failed to save fact: %v", err)).WithError(err)
		}
		return SilentResult("Fact saved.")
	case "note":
		if err := t.store.AppendTodayNote(content); err != nil {
			return ErrorResult(fmt.Sprintf("failed to save note: %v", err)).WithError(err)
		}
		return SilentResult("Note saved.")
	case "learning":
		slug, _ := args["slug"].(string)
		if slug == "" {
			return ErrorResult("slug is required for kind=\"learning\"")
		}
		if err := t.store.WriteLearning(slug, content); err != nil {
			return ErrorResult(fmt.Sprintf("failed to save learning: %v", err)).WithError(err)
		}
		return SilentResult("Learning saved.")
	default:
		return ErrorResult(`kind must be "fact", "note", or "learning"`)
	}
}
