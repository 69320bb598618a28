package pairing

import (
	"path/filepath"
	"testing"
)

func TestRequestPairingDedupesPending(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "pairing.json"))

	code1, err := s.RequestPairing("user-1", "telegram", "chat-1", "default")
	if err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}
	code2, err := s.RequestPairing("user-1", "telegram", "chat-1", "default")
	if err != nil {
		t.Fatalf("RequestPairing (retry): %v", err)
	}
	if code1 != code2 {
		t.Fatalf("expected retrying a pending request to return the same code, got %q and %q", code1, code2)
	}

	if s.IsPaired("user-1", "telegram") {
		t.Fatalf("expected user not yet paired before approval")
	}
}

func TestApproveDenyAndListPending(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "pairing.json"))

	code, err := s.RequestPairing("user-1", "telegram", "chat-1", "default")
	if err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}
	if _, err := s.RequestPairing("user-2", "discord", "chat-2", "default"); err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}

	pending := s.ListPending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(pending))
	}

	req, err := s.Approve(code)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !req.Approved {
		t.Fatalf("expected approved request to be marked Approved")
	}
	if !s.IsPaired("user-1", "telegram") {
		t.Fatalf("expected user-1/telegram paired after approval")
	}

	pending = s.ListPending()
	if len(pending) != 1 || pending[0].UserID != "user-2" {
		t.Fatalf("expected only user-2's request still pending, got %+v", pending)
	}

	if err := s.Deny(pending[0].Code); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("expected no pending requests after deny")
	}
	if s.IsPaired("user-2", "discord") {
		t.Fatalf("expected denied request to not be paired")
	}
}

func TestApproveUnknownCode(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "pairing.json"))
	if _, err := s.Approve("000000"); err == nil {
		t.Fatalf("expected approving an unknown code to fail")
	}
}

func TestPairingPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairing.json")
	s := NewService(path)

	code, err := s.RequestPairing("user-1", "telegram", "chat-1", "default")
	if err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}
	if _, err := s.Approve(code); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	reloaded := NewService(path)
	if !reloaded.IsPaired("user-1", "telegram") {
		t.Fatalf("expected pairing to survive reload from disk")
	}
	if len(reloaded.ListPending()) != 0 {
		t.Fatalf("expected no pending requests after reload")
	}
}
