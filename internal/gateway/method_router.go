package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// HandlerFunc answers one RPC Request's params for an already-dispatched
// method. Returning a non-nil *protocol.RPCError short-circuits to an error
// Response; the result value is ignored in that case.
type HandlerFunc func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.RPCError)

// MethodRouter dispatches incoming protocol.Request values by Method name,
// enforcing the owner/user authorization split via permissions.PolicyEngine
// before a handler ever runs.
type MethodRouter struct {
	server   *Server
	handlers map[string]HandlerFunc
}

// NewMethodRouter builds a router with the built-in connect/health/status
// methods pre-registered; callers add the rest via Register.
func NewMethodRouter(s *Server) *MethodRouter {
	r := &MethodRouter{server: s, handlers: make(map[string]HandlerFunc)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces the handler for method.
func (r *MethodRouter) Register(method string, fn HandlerFunc) {
	r.handlers[method] = fn
}

// Dispatch looks up and runs the handler for req.Method, applying rate
// limiting (handled by the caller in Client.readLoop), authorization, and
// panic recovery.
func (r *MethodRouter) Dispatch(ctx context.Context, c *Client, req protocol.Request) (resp protocol.Response) {
	resp.ID = req.ID

	handler, ok := r.handlers[req.Method]
	if !ok {
		resp.Error = protocol.NewError(protocol.ErrCodeMethodNotFound, "unknown method: "+req.Method)
		return resp
	}

	if r.server.policyEngine != nil && !r.server.policyEngine.Allow(c.userID, req.Method) {
		resp.Error = protocol.NewError(protocol.ErrCodeForbidden, "method requires owner privileges")
		return resp
	}

	params, err := json.Marshal(req.Params)
	if err != nil {
		resp.Error = protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
		return resp
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("rpc handler panicked", "method", req.Method, "recover", p)
			resp.Result = nil
			resp.Error = protocol.NewError(protocol.ErrCodeInternal, "internal error")
		}
	}()

	result, rpcErr := handler(ctx, c, params)
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	resp.Result = result
	return resp
}

func (r *MethodRouter) registerBuiltins() {
	r.Register(protocol.MethodConnect, func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		var body struct {
			UserID string `json:"user_id"`
		}
		json.Unmarshal(params, &body)
		c.userID = body.UserID
		return map[string]interface{}{
			"protocol_version": protocol.ProtocolVersion,
			"client_id":        c.id,
			"owner":            r.server.policyEngine.IsOwner(c.userID),
		}, nil
	})

	r.Register(protocol.MethodHealth, func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		return map[string]interface{}{"status": "ok"}, nil
	})

	r.Register(protocol.MethodStatus, func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.RPCError) {
		return map[string]interface{}{
			"agents": r.server.agents.List(),
			"tools":  r.server.tools.Count(),
		}, nil
	})
}
