package cmd

import "testing"

func TestContainsString(t *testing.T) {
	list := []string{"memory_recall", "cron", "gateway"}
	if !containsString(list, "cron") {
		t.Fatalf("expected %q to be found in %v", "cron", list)
	}
	if containsString(list, "spawn") {
		t.Fatalf("did not expect %q in %v", "spawn", list)
	}
	if containsString(nil, "anything") {
		t.Fatalf("expected nil list to contain nothing")
	}
}
