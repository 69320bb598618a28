package browser

import (
	"context"
	"testing"
)

func TestToolExecuteRequiresURL(t *testing.T) {
	tool := NewBrowserTool(New())
	res := tool.Execute(context.Background(), map[string]interface{}{"action": "navigate"})
	if !res.IsError {
		t.Fatalf("expected error result when url is missing")
	}
}

func TestToolExecuteRequiresSelectorForClick(t *testing.T) {
	tool := NewBrowserTool(New())
	res := tool.Execute(context.Background(), map[string]interface{}{"action": "click", "url": "https://example.com"})
	if !res.IsError {
		t.Fatalf("expected error result when selector is missing for click")
	}
}

func TestToolExecuteRejectsUnknownAction(t *testing.T) {
	tool := NewBrowserTool(New())
	res := tool.Execute(context.Background(), map[string]interface{}{"action": "scroll", "url": "https://example.com"})
	if !res.IsError {
		t.Fatalf("expected error result for unknown action")
	}
}

func TestToolName(t *testing.T) {
	tool := NewBrowserTool(New())
	if tool.Name() != "browser" {
		t.Fatalf("expected tool name 'browser', got %q", tool.Name())
	}
}
