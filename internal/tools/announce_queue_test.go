package tools

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

func TestAnnounceQueueBatchesWithinWindow(t *testing.T) {
	b := bus.New()

	q := NewAnnounceQueue(b, 20*time.Millisecond)
	q.Enqueue("announce:agent1:chat1", AnnounceQueueItem{SubagentID: "a", Label: "task-a", Status: "completed", Iterations: 2}, AnnounceMetadata{OriginChatID: "chat1"})
	q.Enqueue("announce:agent1:chat1", AnnounceQueueItem{SubagentID: "b", Label: "task-b", Status: "completed", Iterations: 1}, AnnounceMetadata{OriginChatID: "chat1"})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatalf("expected a batched announce to be published")
	}
	if msg.ChatID != "chat1" {
		t.Fatalf("unexpected chat id: %q", msg.ChatID)
	}
	if !contains(msg.Content, "task-a") || !contains(msg.Content, "task-b") {
		t.Fatalf("expected batched content to mention both tasks, got: %s", msg.Content)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

func TestFormatBatchedAnnounceSingle(t *testing.T) {
	out := FormatBatchedAnnounce([]AnnounceQueueItem{{Label: "solo", Status: "completed", Iterations: 3, Result: "done"}}, 0)
	if !contains(out, "solo") || !contains(out, "done") {
		t.Fatalf("unexpected output: %s", out)
	}
}
