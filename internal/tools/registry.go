package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"golang.org/x/time/rate"
)

// Tool is the contract every built-in, sandboxed, or delegated capability
// implements. Execute never panics its way out of the registry: tools that
// can fail report it through Result.IsError, not through Go errors or
// recover-worthy panics.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// AsyncCallback is invoked once a tool that returned an AsyncResult finishes
// its real work out-of-band (e.g. a spawned subagent completing).
type AsyncCallback func(ctx context.Context, result *Result)

// ToProviderDef converts a registered Tool's schema into the OpenAI-style
// function-tool descriptor providers expect in a ChatRequest.
func ToProviderDef(tool Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		},
	}
}

// ToolRateLimiter caps tool executions per session using a token-bucket per
// key, refilled at perHour/3600 tokens per second.
type ToolRateLimiter struct {
	perHour int
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewToolRateLimiter builds a limiter allowing perHour executions per hour
// per session key. perHour <= 0 disables limiting (Allow always succeeds).
func NewToolRateLimiter(perHour int) *ToolRateLimiter {
	return &ToolRateLimiter{perHour: perHour, buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether key may execute a tool right now, consuming one
// token from its bucket if so.
func (rl *ToolRateLimiter) Allow(key string) bool {
	if rl == nil || rl.perHour <= 0 {
		return true
	}
	rl.mu.Lock()
	lim, ok := rl.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.perHour) / 3600.0)
		lim = rate.NewLimiter(perSecond, rl.perHour)
		rl.buckets[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Registry holds every tool available to the agent loop and enforces the
// validate-before-execute, never-throw contract at the boundary between the
// LLM's tool calls and concrete Go code.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string

	rateLimiter *ToolRateLimiter
	scrub       bool

	log *slog.Logger
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   slog.Default().With("component", "tools.registry"),
	}
}

// Register adds or replaces the tool under its own Name().
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Unregister removes a tool by name. No-op if it was never registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count reports how many tools are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ProviderDefs returns every registered tool's schema in provider shape, in
// registration order, with no policy filtering applied. Call sites that need
// policy-aware filtering should go through PolicyEngine.FilterTools instead.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, ToProviderDef(r.tools[name]))
	}
	return defs
}

// SetRateLimiter wires an execution rate limiter. Pass nil to disable.
func (r *Registry) SetRateLimiter(rl *ToolRateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimiter = rl
}

// SetScrubbing toggles redaction of tool arguments in logs (disabled by
// default; standalone single-user deployments have no secrets to scrub).
func (r *Registry) SetScrubbing(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrub = on
}

// ExecuteWithContext validates args against the tool's declared schema, then
// runs it with channel/chatID/peerKind/sessionKey/asyncCB injected into ctx
// via the WithTool* helpers. It never panics out: schema failures, unknown
// tools, rate limiting, and in-tool panics all come back as an error Result.
func (r *Registry) ExecuteWithContext(
	ctx context.Context,
	name string,
	args map[string]interface{},
	channel, chatID, peerKind, sessionKey string,
	asyncCB AsyncCallback,
) (result *Result) {
	tool, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("Error: Tool '%s' not found", name))
	}

	r.mu.RLock()
	limiter := r.rateLimiter
	scrub := r.scrub
	r.mu.RUnlock()

	if limiter != nil && sessionKey != "" && !limiter.Allow(sessionKey) {
		return ErrorResult(fmt.Sprintf("Error executing %s: rate limit exceeded, try again later", name))
	}

	if err := validateArgs(tool.Parameters(), args); err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err))
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolSandboxKey(ctx, sessionKey)
	if asyncCB != nil {
		ctx = WithToolAsyncCB(ctx, asyncCB)
	}

	logArgs := args
	if scrub {
		logArgs = nil
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tool panicked", "tool", name, "panic", p)
			result = ErrorResult(fmt.Sprintf("Error executing %s: %v", name, p))
		}
	}()

	result = tool.Execute(ctx, args)
	r.log.Debug("tool executed", "tool", name, "args", logArgs, "elapsed", time.Since(start), "is_error", result != nil && result.IsError)
	if result == nil {
		return ErrorResult(fmt.Sprintf("Error executing %s: tool returned no result", name))
	}
	return result
}

// validateArgs checks args against a tool's declared JSON-schema-shaped
// Parameters(): every name in "required" must be present, and where a
// property declares a "type" the argument's dynamic type must be compatible.
// This intentionally covers only the flat object/string/number/boolean/array
// shapes every tool in this repo actually declares, not arbitrary JSON
// Schema (no $ref, oneOf, nested validation) — no library in the dependency
// set offers validation for that broader grammar, and none of the tools here
// need it.
func validateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if required, ok := schema["required"].([]string); ok {
		for _, name := range required {
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}
	properties, _ := schema["properties"].(map[string]interface{})
	if properties == nil {
		return nil
	}
	for name, value := range args {
		propRaw, ok := properties[name]
		if !ok {
			continue
		}
		prop, ok := propRaw.(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := prop["type"].(string)
		if wantType == "" || value == nil {
			continue
		}
		if !typeMatches(wantType, value) {
			return fmt.Errorf("argument %q must be of type %s", name, wantType)
		}
	}
	return nil
}

func typeMatches(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}
