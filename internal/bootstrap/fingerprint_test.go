package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFingerprintChangesOnByteEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AgentsFile, "you are an assistant")

	before := Fingerprint(dir)
	writeFile(t, dir, AgentsFile, "you are an assistant.")
	after := Fingerprint(dir)

	if before == after {
		t.Fatalf("expected fingerprint to change after editing %s", AgentsFile)
	}
}

func TestFingerprintChangesOnFileRemoval(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AgentsFile, "core instructions")
	writeFile(t, dir, SoulFile, "be terse")

	before := Fingerprint(dir)
	if err := os.Remove(filepath.Join(dir, SoulFile)); err != nil {
		t.Fatal(err)
	}
	after := Fingerprint(dir)

	if before == after {
		t.Fatalf("expected fingerprint to change after removing %s", SoulFile)
	}
}

func TestFingerprintStableAcrossUnrelatedEdits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AgentsFile, "core instructions")

	before := Fingerprint(dir)
	writeFile(t, dir, "NOTES_SCRATCH.md", "unrelated scratch file")
	after := Fingerprint(dir)

	if before != after {
		t.Fatalf("expected fingerprint stable across unrelated workspace edits")
	}
}

func TestBuildContextFilesTruncatesPerFileAndTotal(t *testing.T) {
	raw := []RawFile{
		{Path: "AGENTS.md", Content: "0123456789"},
		{Path: "SOUL.md", Content: "abcdefghij"},
	}
	cfg := TruncateConfig{MaxCharsPerFile: 5, TotalMaxChars: 8}

	out := BuildContextFiles(raw, cfg)
	if len(out) == 0 {
		t.Fatalf("expected at least one context file")
	}
	if out[0].Content != "01234" {
		t.Fatalf("expected per-file truncation to 5 chars, got %q", out[0].Content)
	}
	if !out[0].Truncated {
		t.Fatalf("expected first file marked truncated")
	}
	if len(out) != 2 || out[1].Content != "abc" || !out[1].Truncated {
		t.Fatalf("expected second file cut to the remaining total budget (\"abc\", truncated), got %+v", out)
	}
}
