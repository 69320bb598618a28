// Package agents implements a file-backed store.AgentStore: stable UUIDs
// for config-defined agent keys, and per-group file-writer allowlists for
// channel commands like /writer.
package agents

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

type writerRecord struct {
	GroupID string               `json:"groupID"`
	Writers []store.GroupFileWriter `json:"writers"`
}

type fileState struct {
	AgentIDs map[string]uuid.UUID      `json:"agentIDs"` // key -> stable id
	Writers  map[string][]writerRecord `json:"writers"`  // agent id (string) -> groups
}

// Service is a file-backed store.AgentStore.
type Service struct {
	mu    sync.Mutex
	path  string
	state fileState
}

// NewService loads (or initializes) the agent registry file at path.
func NewService(path string) *Service {
	s := &Service{
		path: path,
		state: fileState{
			AgentIDs: make(map[string]uuid.UUID),
			Writers:  make(map[string][]writerRecord),
		},
	}
	s.load()
	return s
}

func (s *Service) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return
	}
	if st.AgentIDs == nil {
		st.AgentIDs = make(map[string]uuid.UUID)
	}
	if st.Writers == nil {
		st.Writers = make(map[string][]writerRecord)
	}
	s.state = st
}

func (s *Service) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
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

// stableID derives a deterministic UUID from the agent key so the same
// config-defined agent always gets the same ID across restarts, without
// needing a separate ID-allocation step at startup.
func stableID(key string) uuid.UUID {
	sum := sha1.Sum([]byte("goclaw-agent:" + key))
	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x40 // version 4
	id[8] = (id[8] & 0x3f) | 0x80 // variant 10
	return id
}

// GetByKey resolves key to its AgentData, minting and persisting a stable
// ID the first time key is seen.
func (s *Service) GetByKey(ctx context.Context, key string) (*store.AgentData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.state.AgentIDs[key]
	if !ok {
		id = stableID(key)
		s.state.AgentIDs[key] = id
		if err := s.saveLocked(); err != nil {
			return nil, fmt.Errorf("persist agent id for %q: %w", key, err)
		}
	}
	return &store.AgentData{ID: id, Key: key}, nil
}

func (s *Service) IsGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRecordLocked(agentID, groupID)
	if rec == nil {
		return false, nil
	}
	for _, w := range rec.Writers {
		if w.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) AddGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, targetID, firstName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findOrCreateRecordLocked(agentID, groupID)
	for _, w := range rec.Writers {
		if w.UserID == targetID {
			return nil // already a writer
		}
	}

	var usernamePtr, displayNamePtr *string
	if username != "" {
		usernamePtr = &username
	}
	if firstName != "" {
		displayNamePtr = &firstName
	}
	rec.Writers = append(rec.Writers, store.GroupFileWriter{
		UserID:      targetID,
		Username:    usernamePtr,
		DisplayName: displayNamePtr,
	})
	s.replaceRecordLocked(agentID, groupID, rec)
	return s.saveLocked()
}

func (s *Service) ListGroupFileWriters(ctx context.Context, agentID uuid.UUID, groupID string) ([]store.GroupFileWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRecordLocked(agentID, groupID)
	if rec == nil {
		return nil, nil
	}
	out := make([]store.GroupFileWriter, len(rec.Writers))
	copy(out, rec.Writers)
	return out, nil
}

func (s *Service) RemoveGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findRecordLocked(agentID, groupID)
	if rec == nil {
		return nil
	}
	filtered := rec.Writers[:0]
	for _, w := range rec.Writers {
		if w.UserID != targetID {
			filtered = append(filtered, w)
		}
	}
	rec.Writers = filtered
	s.replaceRecordLocked(agentID, groupID, rec)
	return s.saveLocked()
}

func (s *Service) findRecordLocked(agentID uuid.UUID, groupID string) *writerRecord {
	for i, rec := range s.state.Writers[agentID.String()] {
		if rec.GroupID == groupID {
			return &s.state.Writers[agentID.String()][i]
		}
	}
	return nil
}

func (s *Service) findOrCreateRecordLocked(agentID uuid.UUID, groupID string) *writerRecord {
	if rec := s.findRecordLocked(agentID, groupID); rec != nil {
		return rec
	}
	return &writerRecord{GroupID: groupID}
}

func (s *Service) replaceRecordLocked(agentID uuid.UUID, groupID string, rec *writerRecord) {
	key := agentID.String()
	recs := s.state.Writers[key]
	for i, r := range recs {
		if r.GroupID == groupID {
			recs[i] = *rec
			s.state.Writers[key] = recs
			return
		}
	}
	s.state.Writers[key] = append(recs, *rec)
}
