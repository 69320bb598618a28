package sessions

import (
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

func TestSessionRoundTripsThroughJSONL(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	base := "agent:default:telegram:direct:123"
	s := m.GetOrCreate(base)
	activeKey := s.Key

	m.AddMessageWithMedia(activeKey, providers.Message{Role: "user", Content: "hello"}, nil)
	m.AddMessageWithMedia(activeKey, providers.Message{Role: "assistant", Content: "hi there"}, []string{"/tmp/reply.png"})
	m.SetSummary(activeKey, "greeting exchanged")
	if err := m.Save(activeKey); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewManager(dir)
	history := reloaded.GetHistory(base)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages after reload, got %d", len(history))
	}
	if history[0].Content != "hello" || history[1].Content != "hi there" {
		t.Fatalf("unexpected reloaded content: %+v", history)
	}
	if got := reloaded.GetSummary(base); got != "greeting exchanged" {
		t.Fatalf("expected summary to survive reload, got %q", got)
	}
}

func TestStartNewMintsStrictlyGreaterActiveKey(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	base := "agent:default:telegram:direct:123"
	first := m.GetOrCreate(base)
	m.AddMessage(first.Key, providers.Message{Role: "user", Content: "first session"})
	if err := m.Save(first.Key); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := m.StartNew(base)
	if second.Key <= first.Key {
		t.Fatalf("expected StartNew to mint an active key greater than %s, got %s", first.Key, second.Key)
	}
	if len(m.GetHistory(second.Key)) != 0 {
		t.Fatalf("expected fresh session to start empty")
	}

	// Prior session file remains readable directly by its pinned key.
	priorHistory := m.GetHistory(first.Key)
	if len(priorHistory) != 1 || priorHistory[0].Content != "first session" {
		t.Fatalf("expected prior session still readable, got %+v", priorHistory)
	}

	// GetOrCreate(base) now resolves to the new active session.
	current := m.GetOrCreate(base)
	if current.Key != second.Key {
		t.Fatalf("expected base key to resolve to newest active key %s, got %s", second.Key, current.Key)
	}
}

func TestPinnedKeyBypassesActivePointerIndex(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	pinned := "web:chat1:main#20250101120000"
	m.AddMessage(pinned, providers.Message{Role: "user", Content: "pinned message"})
	if err := m.Save(pinned); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A bare base-key lookup must NOT resolve to the pinned session.
	base := "web:chat1:main"
	fresh := m.GetOrCreate(base)
	if fresh.Key == pinned {
		t.Fatalf("expected base-key lookup to mint its own session, not reuse pinned key")
	}
	if len(m.GetHistory(pinned)) != 1 {
		t.Fatalf("expected pinned session directly readable by its exact key")
	}
}
