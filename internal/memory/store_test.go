package memory

import (
	"strings"
	"testing"
)

func TestContextSanitizesRuntimeDiagnostics(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetFacts("The user prefers concise answers.\nanthropic api key not configured\nuser timezone is UTC+8"); err != nil {
		t.Fatalf("SetFacts: %v", err)
	}

	ctx := s.Context()
	if strings.Contains(strings.ToLower(ctx), "not configured") {
		t.Fatalf("expected diagnostic line to be sanitized, got: %q", ctx)
	}
	if !strings.Contains(ctx, "concise answers") {
		t.Fatalf("expected real fact to survive sanitization, got: %q", ctx)
	}
}

func TestAppendHistoryIsAppendOnly(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.AppendHistory("first event"); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := s.AppendHistory("second event"); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	content := readFile(s.path(historyFile))
	if !strings.Contains(content, "first event") || !strings.Contains(content, "second event") {
		t.Fatalf("expected both entries present, got: %q", content)
	}
}

func TestConsolidateRewritesFactsAndAppendsHistory(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetFacts("old facts"); err != nil {
		t.Fatalf("SetFacts: %v", err)
	}
	if err := s.Consolidate(ConsolidationArtifact{
		HistoryEntry: "session rolled over",
		MemoryUpdate: "new consolidated facts",
	}); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	if got := s.Facts(); got != "new consolidated facts" {
		t.Fatalf("expected facts overwritten, got: %q", got)
	}
	if hist := readFile(s.path(historyFile)); !strings.Contains(hist, "session rolled over") {
		t.Fatalf("expected history entry appended, got: %q", hist)
	}
}

func TestLearningsListedSorted(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.WriteLearning("zeta-topic", "# zeta"); err != nil {
		t.Fatalf("WriteLearning: %v", err)
	}
	if err := s.WriteLearning("alpha-topic", "# alpha"); err != nil {
		t.Fatalf("WriteLearning: %v", err)
	}

	got := s.Learnings()
	want := []string{"alpha-topic.md", "zeta-topic.md"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected sorted %v, got %v", want, got)
	}
}
