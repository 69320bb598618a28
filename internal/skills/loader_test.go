package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, dir, name, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, "skills", name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\n" + frontmatter + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSelectForMessageRoutingDeterminism(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "weather", `name: weather
description: check the weather
metadata:
  nanobot:
    triggers: ["forecast", "temperature"]
    aliases: ["weatherbot"]
`, "# weather skill body")

	writeSkill(t, dir, "news", `name: news
description: fetch today's news
metadata:
  nanobot:
    triggers: ["headlines"]
`, "# news skill body")

	loader := NewLoader(dir, "", "")

	got1 := loader.SelectForMessage("what's the forecast for tomorrow?", 5)
	got2 := loader.SelectForMessage("what's the forecast for tomorrow?", 5)

	if len(got1) != 1 || got1[0] != "weather" {
		t.Fatalf("expected [weather], got %v", got1)
	}
	if len(got1) != len(got2) || got1[0] != got2[0] {
		t.Fatalf("routing not deterministic: %v vs %v", got1, got2)
	}
}

func TestSelectForMessageEmptyOrSlash(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "weather", `name: weather
description: check the weather
metadata:
  nanobot:
    triggers: ["forecast"]
`, "body")
	loader := NewLoader(dir, "", "")

	if got := loader.SelectForMessage("", 5); got != nil {
		t.Fatalf("expected nil for empty message, got %v", got)
	}
	if got := loader.SelectForMessage("/new forecast", 5); got != nil {
		t.Fatalf("expected nil for slash-command message, got %v", got)
	}
}

func TestWorkflowPolicyForMergesRetriesAndFailureMode(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "research", `name: research
description: research skill
metadata:
  nanobot:
    workflow:
      enforcement_retries: 2
      failure_mode: explain_missing
      require_tool_calls:
        - name: write_file
          args:
            path: ^memory/learnings/[^/]+\.md$
`, "body")
	writeSkill(t, dir, "strict", `name: strict
description: strict skill
metadata:
  nanobot:
    workflow:
      enforcement_retries: 1
      failure_mode: hard_fail
`, "body")

	loader := NewLoader(dir, "", "")
	merged := loader.WorkflowPolicyFor([]string{"research", "strict"})

	if merged.EnforcementRetries != 2 {
		t.Fatalf("expected max retries 2, got %d", merged.EnforcementRetries)
	}
	if merged.FailureMode != "hard_fail" {
		t.Fatalf("expected hard_fail to dominate, got %s", merged.FailureMode)
	}
	if len(merged.RequireToolCalls) != 1 || merged.RequireToolCalls[0].Name != "write_file" {
		t.Fatalf("expected merged completion rule preserved, got %+v", merged.RequireToolCalls)
	}
}
