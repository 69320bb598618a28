// Package pairing implements a file-backed channel-identity approval
// workflow: a new (userID, channel) identity must be paired with a short
// code before the agent will respond to it in a 1-1 context.
package pairing

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

type record struct {
	Request store.PairingRequest
	Paired  bool
}

// Service is a file-backed store.PairingStore.
type Service struct {
	mu     sync.Mutex
	path   string
	byCode map[string]*record
	paired map[string]bool // key: userID+"\x00"+channel
}

// NewService loads (or initializes) the pairing file at path.
func NewService(path string) *Service {
	s := &Service{
		path:   path,
		byCode: make(map[string]*record),
		paired: make(map[string]bool),
	}
	s.load()
	return s
}

func pairKey(userID, channel string) string {
	return userID + "\x00" + channel
}

func (s *Service) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var records []*record
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	for _, r := range records {
		s.byCode[r.Request.Code] = r
		if r.Paired {
			s.paired[pairKey(r.Request.UserID, r.Request.Channel)] = true
		}
	}
}

func (s *Service) saveLocked() error {
	records := make([]*record, 0, len(s.byCode))
	for _, r := range s.byCode {
		records = append(records, r)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Service) IsPaired(userID, channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paired[pairKey(userID, channel)]
}

func (s *Service) RequestPairing(userID, channel, chatID, agentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-requesting while a pending code exists for this identity returns
	// the same code rather than minting a fresh one every retry.
	for _, r := range s.byCode {
		if !r.Paired && r.Request.UserID == userID && r.Request.Channel == channel {
			return r.Request.Code, nil
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	s.byCode[code] = &record{Request: store.PairingRequest{
		Code:      code,
		UserID:    userID,
		Channel:   channel,
		ChatID:    chatID,
		AgentID:   agentID,
		CreatedAt: time.Now().UTC(),
	}}
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) Approve(code string) (*store.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byCode[code]
	if !ok {
		return nil, fmt.Errorf("pairing code %q not found", code)
	}
	r.Paired = true
	r.Request.Approved = true
	s.paired[pairKey(r.Request.UserID, r.Request.Channel)] = true
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	req := r.Request
	return &req, nil
}

func (s *Service) Deny(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[code]; !ok {
		return fmt.Errorf("pairing code %q not found", code)
	}
	delete(s.byCode, code)
	return s.saveLocked()
}

func (s *Service) ListPending() []store.PairingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.PairingRequest
	for _, r := range s.byCode {
		if !r.Paired {
			out = append(out, r.Request)
		}
	}
	return out
}

func generateCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("%06d", n%1000000), nil
}
