package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/agent"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/gateway"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/store"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// PairingMethods wraps the device-pairing RPC surface, notifying a channel
// once a pending request is approved (so the user gets a "you're in" reply).
type PairingMethods struct {
	pairing   store.PairingStore
	onApprove func(ctx context.Context, channel, chatID string)
}

// SetOnApprove registers the callback invoked after a pairing code is approved.
func (m *PairingMethods) SetOnApprove(fn func(ctx context.Context, channel, chatID string)) {
	m.onApprove = fn
}

func (m *PairingMethods) register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodPairingList, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		return m.pairing.ListPending(), nil
	})

	router.Register(protocol.MethodPairingApprove, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			Code string `json:"code"`
		}
		json.Unmarshal(params, &body)
		req, err := m.pairing.Approve(body.Code)
		if err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
		}
		if m.onApprove != nil {
			m.onApprove(ctx, req.Channel, req.ChatID)
		}
		return req, nil
	})

	router.Register(protocol.MethodPairingRevoke, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			Code string `json:"code"`
		}
		json.Unmarshal(params, &body)
		if err := m.pairing.Deny(body.Code); err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
		}
		return map[string]bool{"ok": true}, nil
	})
}

// registerAllMethods wires the gateway's RPC surface beyond the builtins
// (connect/health/status): chat, sessions, cron, agents, and device pairing.
// Returns the pairing methods so the caller can wire SetOnApprove once the
// channel manager exists.
func registerAllMethods(server *gateway.Server, agents *agent.Router, sessStore store.SessionStore, cronStore store.CronStore, pairingStore store.PairingStore, cfg *config.Config, msgBus *bus.MessageBus) *PairingMethods {
	router := server.Router()

	router.Register(protocol.MethodChatSend, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			Content string `json:"content"`
			AgentID string `json:"agent_id"`
		}
		if err := json.Unmarshal(params, &body); err != nil || body.Content == "" {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "content is required")
		}
		msgBus.PublishInbound(bus.InboundMessage{
			Channel:  "rpc",
			SenderID: c.UserID(),
			ChatID:   c.UserID(),
			Content:  body.Content,
			UserID:   c.UserID(),
			AgentID:  body.AgentID,
			PeerKind: string(sessions.PeerDirect),
		})
		return map[string]bool{"queued": true}, nil
	})

	router.Register(protocol.MethodChatHistory, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			AgentID string `json:"agent_id"`
		}
		json.Unmarshal(params, &body)
		agentID := body.AgentID
		if agentID == "" {
			agentID = cfg.ResolveDefaultAgentID()
		}
		sessionKey := sessions.BuildSessionKey(agentID, "rpc", sessions.PeerDirect, c.UserID())
		return sessStore.GetHistory(sessionKey), nil
	})

	router.Register(protocol.MethodSessionsList, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			AgentID string `json:"agent_id"`
		}
		json.Unmarshal(params, &body)
		return sessStore.List(body.AgentID), nil
	})

	router.Register(protocol.MethodSessionsReset, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			SessionKey string `json:"session_key"`
		}
		json.Unmarshal(params, &body)
		if body.SessionKey == "" {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "session_key is required")
		}
		sessStore.Reset(body.SessionKey)
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodSessionsDelete, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			SessionKey string `json:"session_key"`
		}
		json.Unmarshal(params, &body)
		if err := sessStore.Delete(body.SessionKey); err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
		}
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodAgentsList, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		return agents.List(), nil
	})

	router.Register(protocol.MethodCronList, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			AgentID string `json:"agent_id"`
		}
		json.Unmarshal(params, &body)
		return cronStore.List(body.AgentID), nil
	})

	router.Register(protocol.MethodCronCreate, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var job store.CronJob
		if err := json.Unmarshal(params, &job); err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid cron job")
		}
		created, err := cronStore.Create(&job)
		if err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInternal, fmt.Sprintf("failed to create job: %v", err))
		}
		return created, nil
	})

	router.Register(protocol.MethodCronDelete, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			ID string `json:"id"`
		}
		json.Unmarshal(params, &body)
		if err := cronStore.Delete(body.ID); err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
		}
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodCronToggle, func(ctx context.Context, c *gateway.Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			ID      string `json:"id"`
			Enabled bool   `json:"enabled"`
		}
		json.Unmarshal(params, &body)
		updated, err := cronStore.Update(body.ID, map[string]any{"enabled": body.Enabled})
		if err != nil {
			return nil, protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
		}
		return updated, nil
	})

	pairingMethods := &PairingMethods{pairing: pairingStore}
	pairingMethods.register(router)

	return pairingMethods
}
