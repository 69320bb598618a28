package cmd

import (
	"log/slog"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/memory"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

// setupMemory creates the workspace-backed memory store unless explicitly
// disabled via config. Returns nil when memory is off.
func setupMemory(workspace string, cfg *config.Config) *memory.Store {
	memCfg := cfg.Agents.Defaults.Memory
	if memCfg != nil && memCfg.Enabled != nil && !*memCfg.Enabled {
		return nil
	}
	store, err := memory.New(workspace)
	if err != nil {
		slog.Warn("memory system disabled", "error", err)
		return nil
	}
	return store
}

// setupSubagents builds the subagent manager used by the spawn/subagent
// tools, wiring it to a fresh tool registry per child run that leaves out the
// SubagentDenyAlways tools (gateway-level tools among them). spawn/subagent
// are copied too; the manager removes them only at max spawn depth.
func setupSubagents(providerRegistry *providers.Registry, cfg *config.Config, msgBus *bus.MessageBus, parentTools *tools.Registry) *tools.SubagentManager {
	scfg := cfg.Agents.Defaults.Subagents

	subagentCfg := tools.SubagentConfig{
		MaxConcurrent:       4,
		MaxSpawnDepth:       3,
		MaxChildrenPerAgent: 8,
		ArchiveAfterMinutes: 30,
	}
	if scfg != nil {
		if scfg.MaxConcurrent > 0 {
			subagentCfg.MaxConcurrent = scfg.MaxConcurrent
		}
		if scfg.MaxSpawnDepth > 0 {
			subagentCfg.MaxSpawnDepth = scfg.MaxSpawnDepth
		}
		if scfg.MaxChildrenPerAgent > 0 {
			subagentCfg.MaxChildrenPerAgent = scfg.MaxChildrenPerAgent
		}
		subagentCfg.Model = scfg.Model
	}

	agentCfg := cfg.ResolveAgent("default")
	provider, err := providerRegistry.Get(agentCfg.Provider)
	if err != nil {
		slog.Warn("subagent system disabled: no provider available", "error", err)
		return nil
	}

	createChildTools := func() *tools.Registry {
		child := tools.NewRegistry()
		for _, name := range parentTools.List() {
			if containsString(tools.SubagentDenyAlways, name) {
				continue
			}
			if t, ok := parentTools.Get(name); ok {
				child.Register(t)
			}
		}
		return child
	}

	return tools.NewSubagentManager(provider, agentCfg.Model, msgBus, createChildTools, subagentCfg)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
