package tools

import (
	"context"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// SessionStoreAware is implemented by tools that need the shared session
// store injected after construction (sessions_list, session_status, etc.)
// rather than threaded through every constructor.
type SessionStoreAware interface {
	SetSessionStore(store.SessionStore)
}

// BusAware is implemented by tools that publish onto the message bus
// directly (message, sessions_send) instead of returning content for the
// agent loop to relay.
type BusAware interface {
	SetMessageBus(*bus.MessageBus)
}

// ChannelSenderAware is implemented by tools that deliver content to a
// channel by name rather than through the bus (message).
type ChannelSenderAware interface {
	SetChannelSender(func(ctx context.Context, channel, chatID, content string) error)
}

// PathAllowable is implemented by tools whose filesystem access can be
// extended beyond the workspace root (read_file, for skills directories).
type PathAllowable interface {
	AllowPaths(prefixes ...string)
}
