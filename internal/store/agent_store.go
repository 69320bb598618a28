package store

import (
	"context"

	"github.com/google/uuid"
)

// AgentData is the minimal agent record channels need: enough to resolve a
// configured agent key to a stable ID for group-file-writer bookkeeping.
type AgentData struct {
	ID   uuid.UUID `json:"id"`
	Key  string    `json:"key"`
	Name string    `json:"name,omitempty"`
}

// GroupFileWriter is one user granted permission to make the agent write
// files on their behalf from within a group chat.
type GroupFileWriter struct {
	UserID      string  `json:"userID"`
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

// AgentStore resolves configured agent keys to stable IDs and tracks which
// group members are allowed to trigger file-writing tools from a group
// chat. Implemented by internal/agents.Service (file-backed) in standalone
// deployments; nil is a valid value wherever group-file-writer management
// isn't wired (channels treat a nil AgentStore as "feature unavailable").
type AgentStore interface {
	GetByKey(ctx context.Context, key string) (*AgentData, error)

	IsGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, userID string) (bool, error)
	AddGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, targetID, firstName, username string) error
	ListGroupFileWriters(ctx context.Context, agentID uuid.UUID, groupID string) ([]GroupFileWriter, error)
	RemoveGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, targetID string) error
}
