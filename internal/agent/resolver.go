package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/goclaw/internal/bootstrap"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/skills"
	"github.com/nextlevelbuilder/goclaw/internal/store"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

// Agent is anything the gateway/scheduler can hand a RunRequest to and get
// back a RunResult. *Loop is the only implementation; the interface exists
// so Router and its callers don't need to depend on Loop's internals.
type Agent interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ResolverFunc builds (or looks up) the Agent for agentKey. Returning an
// error tells the Router the key is unknown or construction failed.
type ResolverFunc func(agentKey string) (Agent, error)

type agentEntry struct {
	agent Agent
}

// Router maps agent keys to Agent instances. Agents can be registered
// eagerly at startup (the standalone path: one Loop per entry in
// agents.list) or resolved lazily and cached on first use via a
// ResolverFunc. Both can be combined: Get checks the cache first, then
// falls back to the resolver if set.
type Router struct {
	mu       sync.RWMutex
	resolver ResolverFunc
	agents   map[string]*agentEntry
}

// NewRouter returns an empty router. Use Register to populate it eagerly,
// SetResolver to populate it lazily, or both.
func NewRouter() *Router {
	return &Router{agents: make(map[string]*agentEntry)}
}

// SetResolver installs the fallback used by Get when a key isn't already
// registered.
func (r *Router) SetResolver(fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = fn
}

// Register adds or replaces agentKey's Agent directly, bypassing the
// resolver. Used to eagerly populate agents from config.json at startup.
func (r *Router) Register(agentKey string, ag Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentKey] = &agentEntry{agent: ag}
}

// Get returns the Agent for agentKey, resolving and caching it via the
// configured ResolverFunc if it isn't already registered.
func (r *Router) Get(agentKey string) (Agent, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentKey]
	resolver := r.resolver
	r.mu.RUnlock()
	if ok {
		return entry.agent, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("agent %q not found", agentKey)
	}

	ag, err := resolver(agentKey)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.agents[agentKey] = &agentEntry{agent: ag}
	r.mu.Unlock()
	return ag, nil
}

// List returns every currently registered/resolved agent key.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.agents))
	for k := range r.agents {
		keys = append(keys, k)
	}
	return keys
}

// InvalidateAgent removes an agent from the router cache, forcing
// re-resolution (or a "not found" until Register'd again) on next Get.
func (r *Router) InvalidateAgent(agentKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentKey)
	slog.Debug("invalidated agent cache", "agent", agentKey)
}

// InvalidateAll clears the entire agent cache.
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agentEntry)
	slog.Debug("invalidated all agent caches")
}

// ConfigResolverDeps holds the shared dependencies every config-driven Loop
// is built from: one provider registry, tool registry, session store, and
// skills loader shared across all agents defined in agents.list.
type ConfigResolverDeps struct {
	Config      *config.Config
	ProviderReg *providers.Registry
	Bus         bus.EventPublisher
	Sessions    store.SessionStore
	Tools       *tools.Registry
	ToolPolicy  *tools.PolicyEngine
	Skills      *skills.Loader
	HasMemory   bool
	OnEvent     func(AgentEvent)

	InjectionAction string
	MaxMessageChars int

	SandboxEnabled         bool
	SandboxContainerDir    string
	SandboxWorkspaceAccess string
}

// BuildConfigLoop constructs the Loop for agentKey directly from
// config.json (agents.defaults merged with agents.list[agentKey]), loading
// that agent's workspace bootstrap files from disk. This is the standalone
// (non-managed) counterpart of what used to be a DB-backed resolver: no
// store.AgentStore involved, everything comes from cfg.ResolveAgent.
func BuildConfigLoop(deps ConfigResolverDeps, agentKey string) (*Loop, error) {
	cfg := deps.Config
	agentCfg := cfg.ResolveAgent(agentKey)

	provider, err := deps.ProviderReg.Get(agentCfg.Provider)
	if err != nil {
		names := deps.ProviderReg.List()
		if len(names) == 0 {
			return nil, fmt.Errorf("no providers configured for agent %s", agentKey)
		}
		provider, _ = deps.ProviderReg.Get(names[0])
		slog.Warn("agent provider not found, using fallback",
			"agent", agentKey, "wanted", agentCfg.Provider, "using", names[0])
	}

	workspace := config.ExpandHome(agentCfg.Workspace)
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		slog.Warn("failed to create agent workspace directory", "workspace", workspace, "agent", agentKey, "error", err)
	}

	rawFiles := bootstrap.LoadWorkspaceFiles(workspace)
	truncCfg := bootstrap.TruncateConfig{
		MaxCharsPerFile: agentCfg.BootstrapMaxChars,
		TotalMaxChars:   agentCfg.BootstrapTotalMaxChars,
	}
	if truncCfg.MaxCharsPerFile <= 0 {
		truncCfg.MaxCharsPerFile = bootstrap.DefaultMaxCharsPerFile
	}
	if truncCfg.TotalMaxChars <= 0 {
		truncCfg.TotalMaxChars = bootstrap.DefaultTotalMaxChars
	}
	contextFiles := bootstrap.BuildContextFiles(rawFiles, truncCfg)

	var skillAllowList []string
	var agentToolPolicy *config.ToolPolicySpec
	if spec, ok := cfg.Agents.List[agentKey]; ok {
		skillAllowList = spec.Skills
		agentToolPolicy = spec.Tools
	}

	hasMemory := deps.HasMemory

	loop := NewLoop(LoopConfig{
		ID:                     agentKey,
		Provider:               provider,
		Model:                  agentCfg.Model,
		ContextWindow:          agentCfg.ContextWindow,
		MaxIterations:          agentCfg.MaxToolIterations,
		Workspace:              workspace,
		Bus:                    deps.Bus,
		Sessions:               deps.Sessions,
		Tools:                  deps.Tools,
		ToolPolicy:             deps.ToolPolicy,
		AgentToolPolicy:        agentToolPolicy,
		OnEvent:                deps.OnEvent,
		OwnerIDs:               cfg.Gateway.OwnerIDs,
		SkillsLoader:           deps.Skills,
		SkillAllowList:         skillAllowList,
		HasMemory:              hasMemory,
		ContextFiles:           contextFiles,
		CompactionCfg:          agentCfg.Compaction,
		ContextPruningCfg:      agentCfg.ContextPruning,
		SandboxEnabled:         deps.SandboxEnabled,
		SandboxContainerDir:    deps.SandboxContainerDir,
		SandboxWorkspaceAccess: deps.SandboxWorkspaceAccess,
		InjectionAction:        deps.InjectionAction,
		MaxMessageChars:        deps.MaxMessageChars,
	})

	slog.Info("agent loop created", "agent", agentKey, "model", agentCfg.Model, "provider", agentCfg.Provider)
	return loop, nil
}

// NewConfigResolver returns a ResolverFunc that builds, via BuildConfigLoop,
// any agent key not already cached in the Router. It serves as the Router's
// fallback for every key resolved at request time, both keys declared in
// agents.list and keys that only show up later (e.g. a cron job referencing
// an agent created after startup).
func NewConfigResolver(deps ConfigResolverDeps) ResolverFunc {
	return func(agentKey string) (Agent, error) {
		return BuildConfigLoop(deps, agentKey)
	}
}
