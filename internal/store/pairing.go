package store

import "time"

// PairingRequest is a pending (or resolved) channel-identity pairing: an
// external chat identity (e.g. a Telegram user ID) asking to be linked to
// an agent.
type PairingRequest struct {
	Code      string    `json:"code"`
	UserID    string    `json:"userId"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chatId"`
	AgentID   string    `json:"agentId"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}

// PairingStore tracks which (userID, channel) identities are authorized to
// talk to an agent, and the approval workflow for new ones.
type PairingStore interface {
	// IsPaired reports whether userID on channel is already approved.
	IsPaired(userID, channel string) bool
	// RequestPairing registers a pending request and returns its short
	// human-shareable approval code.
	RequestPairing(userID, channel, chatID, agentID string) (code string, err error)
	// Approve marks a pending code approved, pairing its (userID, channel).
	Approve(code string) (*PairingRequest, error)
	// Deny discards a pending code without pairing it.
	Deny(code string) error
	// ListPending returns all not-yet-approved requests.
	ListPending() []PairingRequest
}
