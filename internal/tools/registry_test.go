package tools

import (
	"context"
	"testing"
)

type fakeTool struct {
	name     string
	required []string
	execute  func(ctx context.Context, args map[string]interface{}) *Result
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool for tests" }
func (f *fakeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "string"},
		},
		"required": f.required,
	}
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if f.execute != nil {
		return f.execute(ctx, args)
	}
	return NewResult("ok")
}

func TestRegistryRegisterGetList(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "alpha"})
	r.Register(&fakeTool{name: "beta"})

	if r.Count() != 2 {
		t.Fatalf("expected 2 tools, got %d", r.Count())
	}
	if got := r.List(); len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("expected registration order [alpha beta], got %v", got)
	}
	if _, ok := r.Get("alpha"); !ok {
		t.Fatalf("expected alpha to be registered")
	}

	r.Unregister("alpha")
	if _, ok := r.Get("alpha"); ok {
		t.Fatalf("expected alpha to be gone after Unregister")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 tool after unregister, got %d", r.Count())
	}
}

func TestExecuteWithContextUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.ExecuteWithContext(context.Background(), "missing", nil, "cli", "chat", "direct", "sess", nil)
	if !result.IsError || result.ForLLM != "Error: Tool 'missing' not found" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteWithContextSchemaValidation(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "needs_value", required: []string{"value"}})

	result := r.ExecuteWithContext(context.Background(), "needs_value", map[string]interface{}{}, "cli", "chat", "direct", "sess", nil)
	if !result.IsError {
		t.Fatalf("expected schema validation failure, got %+v", result)
	}

	result = r.ExecuteWithContext(context.Background(), "needs_value", map[string]interface{}{"value": "x"}, "cli", "chat", "direct", "sess", nil)
	if result.IsError {
		t.Fatalf("expected success once required arg is present, got %+v", result)
	}
}

func TestExecuteWithContextRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "boom", execute: func(ctx context.Context, args map[string]interface{}) *Result {
		panic("kaboom")
	}})

	result := r.ExecuteWithContext(context.Background(), "boom", map[string]interface{}{}, "cli", "chat", "direct", "sess", nil)
	if !result.IsError || result.ForLLM != "Error executing boom: kaboom" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteWithContextInjectsToolContext(t *testing.T) {
	r := NewRegistry()
	var gotChannel, gotChatID, gotPeerKind, gotSandboxKey string
	r.Register(&fakeTool{name: "introspect", execute: func(ctx context.Context, args map[string]interface{}) *Result {
		gotChannel = ToolChannelFromCtx(ctx)
		gotChatID = ToolChatIDFromCtx(ctx)
		gotPeerKind = ToolPeerKindFromCtx(ctx)
		gotSandboxKey = ToolSandboxKeyFromCtx(ctx)
		return NewResult("ok")
	}})

	r.ExecuteWithContext(context.Background(), "introspect", map[string]interface{}{}, "telegram", "chat-1", "group", "sess-1", nil)
	if gotChannel != "telegram" || gotChatID != "chat-1" || gotPeerKind != "group" || gotSandboxKey != "sess-1" {
		t.Fatalf("context values not injected: channel=%q chatID=%q peerKind=%q sandboxKey=%q", gotChannel, gotChatID, gotPeerKind, gotSandboxKey)
	}
}

func TestToolRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewToolRateLimiter(1)
	if !rl.Allow("sess") {
		t.Fatalf("expected first call to be allowed")
	}
	if rl.Allow("sess") {
		t.Fatalf("expected second call within the same window to be blocked")
	}
}

func TestToolRateLimiterDisabledWhenZero(t *testing.T) {
	rl := NewToolRateLimiter(0)
	for i := 0; i < 5; i++ {
		if !rl.Allow("sess") {
			t.Fatalf("expected disabled limiter to always allow")
		}
	}
}

func TestToProviderDefMapsSchema(t *testing.T) {
	def := ToProviderDef(&fakeTool{name: "alpha", required: []string{"value"}})
	if def.Type != "function" || def.Function.Name != "alpha" {
		t.Fatalf("unexpected provider def: %+v", def)
	}
}
