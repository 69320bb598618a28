package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nextlevelbuilder/goclaw/internal/agent"
	"github.com/nextlevelbuilder/goclaw/internal/agents"
	"github.com/nextlevelbuilder/goclaw/internal/bootstrap"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/channels"
	"github.com/nextlevelbuilder/goclaw/internal/channels/discord"
	"github.com/nextlevelbuilder/goclaw/internal/channels/feishu"
	"github.com/nextlevelbuilder/goclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/goclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/goclaw/internal/channels/zalo"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/cron"
	"github.com/nextlevelbuilder/goclaw/internal/gateway"
	mcpbridge "github.com/nextlevelbuilder/goclaw/internal/mcp"
	"github.com/nextlevelbuilder/goclaw/internal/pairing"
	"github.com/nextlevelbuilder/goclaw/internal/permissions"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/scheduler"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/skills"
	"github.com/nextlevelbuilder/goclaw/internal/store/file"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
	"github.com/nextlevelbuilder/goclaw/pkg/browser"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	_, cfgStatErr := os.Stat(cfgPath)
	configMissing := os.IsNotExist(cfgStatErr)
	if !cfg.HasAnyProvider() || configMissing {
		if canAutoOnboard() {
			if runAutoOnboard(cfgPath) {
				cfg, _ = config.Load(cfgPath)
			} else {
				os.Exit(1)
			}
		} else if _, statErr := os.Stat(cfgPath); statErr == nil {
			envPath := filepath.Join(filepath.Dir(cfgPath), ".env.local")
			fmt.Println("No AI provider API key found. Did you forget to load your secrets?")
			fmt.Println()
			fmt.Printf("  source %s && ./goclaw\n", envPath)
			fmt.Println()
			fmt.Println("Or re-run the setup wizard:  ./goclaw onboard")
			os.Exit(1)
		} else {
			fmt.Println("No configuration found. Starting setup wizard...")
			fmt.Println()
			runOnboard()
			return
		}
	}

	msgBus := bus.New()

	providerRegistry := providers.NewRegistry()
	registerProviders(providerRegistry, cfg)

	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	os.MkdirAll(workspace, 0755)

	seededFiles, seedErr := bootstrap.EnsureWorkspaceFiles(workspace)
	if seedErr != nil {
		slog.Warn("bootstrap template seeding failed", "error", seedErr)
	} else if len(seededFiles) > 0 {
		slog.Info("seeded workspace templates", "files", seededFiles)
	}

	toolsReg := tools.NewRegistry()
	agentCfg := cfg.ResolveAgent("default")

	toolsReg.Register(tools.NewReadFileTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewWriteFileTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewListFilesTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewEditTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewExecTool(workspace, agentCfg.RestrictToWorkspace))

	// Memory system
	memMgr := setupMemory(workspace, cfg)
	hasMemory := memMgr != nil
	if hasMemory {
		toolsReg.Register(tools.NewMemoryRecallTool(memMgr))
		toolsReg.Register(tools.NewMemoryWriteTool(memMgr))
		slog.Info("memory system enabled", "tools", []string{"memory_recall", "memory_write"})
	}

	// Browser automation tool
	var browserMgr *browser.Manager
	if cfg.Tools.Browser.Enabled {
		browserMgr = browser.New(
			browser.WithHeadless(cfg.Tools.Browser.Headless),
		)
		toolsReg.Register(browser.NewBrowserTool(browserMgr))
		defer browserMgr.Close()
		slog.Info("browser tool enabled", "headless", cfg.Tools.Browser.Headless)
	}

	// Web tools (web_search + web_fetch)
	webSearchTool := tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveEnabled: cfg.Tools.Web.Brave.Enabled,
		BraveAPIKey:  cfg.Tools.Web.Brave.APIKey,
		DDGEnabled:   cfg.Tools.Web.DuckDuckGo.Enabled,
	})
	if webSearchTool != nil {
		toolsReg.Register(webSearchTool)
		slog.Info("web_search tool enabled")
	}
	webFetchTool := tools.NewWebFetchTool(tools.WebFetchConfig{})
	toolsReg.Register(webFetchTool)
	slog.Info("web_fetch tool enabled")

	// Vision fallback tools (for non-vision providers like MiniMax)
	toolsReg.Register(tools.NewReadImageTool(providerRegistry))
	toolsReg.Register(tools.NewCreateImageTool(providerRegistry))

	// MCP servers configured under tools.mcp_servers, each exposed as regular tools.
	mcpMgr := mcpbridge.NewManager(toolsReg, mcpbridge.WithConfigs(cfg.Tools.McpServers))
	if err := mcpMgr.Start(context.Background()); err != nil {
		slog.Warn("mcp servers: some failed to start", "error", err)
	}
	defer mcpMgr.Stop()

	// Tool rate limiting (per session, token bucket)
	if cfg.Tools.RateLimitPerHour > 0 {
		toolsReg.SetRateLimiter(tools.NewToolRateLimiter(cfg.Tools.RateLimitPerHour))
		slog.Info("tool rate limiting enabled", "per_hour", cfg.Tools.RateLimitPerHour)
	}

	// Credential scrubbing (enabled by default, can be disabled via config)
	if cfg.Tools.ScrubCredentials != nil && !*cfg.Tools.ScrubCredentials {
		toolsReg.SetScrubbing(false)
		slog.Info("credential scrubbing disabled")
	}

	// Subagent system
	subagentMgr := setupSubagents(providerRegistry, cfg, msgBus, toolsReg)
	if subagentMgr != nil {
		announceQueue := tools.NewAnnounceQueue(msgBus, 0)
		subagentMgr.SetAnnounceQueue(announceQueue)

		toolsReg.Register(tools.NewSpawnTool(subagentMgr, "default", 0))
		toolsReg.Register(tools.NewSubagentTool(subagentMgr, "default", 0))
		slog.Info("subagent system enabled", "tools", []string{"spawn", "subagent"})
	}

	// Exec approval system — always active (deny patterns + configurable ask mode)
	var execApprovalMgr *tools.ExecApprovalManager
	{
		approvalCfg := tools.DefaultExecApprovalConfig()
		if eaCfg := cfg.Tools.ExecApproval; eaCfg.Security != "" {
			approvalCfg.Security = tools.ExecSecurity(eaCfg.Security)
		}
		if eaCfg := cfg.Tools.ExecApproval; eaCfg.Ask != "" {
			approvalCfg.Ask = tools.ExecAskMode(eaCfg.Ask)
		}
		if len(cfg.Tools.ExecApproval.Allowlist) > 0 {
			approvalCfg.Allowlist = cfg.Tools.ExecApproval.Allowlist
		}
		execApprovalMgr = tools.NewExecApprovalManager(approvalCfg)

		if execTool, ok := toolsReg.Get("exec"); ok {
			if aa, ok := execTool.(tools.ApprovalAware); ok {
				aa.SetApprovalManager(execApprovalMgr, "default")
			}
		}
		slog.Info("exec approval enabled", "security", string(approvalCfg.Security), "ask", string(approvalCfg.Ask))
	}

	// --- Enforcement: Policy engines ---
	permPE := permissions.NewPolicyEngine(cfg.Gateway.OwnerIDs)
	toolPE := tools.NewPolicyEngine(&cfg.Tools)

	dataDir := os.Getenv("GOCLAW_DATA_DIR")
	if dataDir == "" {
		dataDir = config.ExpandHome("~/.goclaw/data")
	}
	os.MkdirAll(dataDir, 0755)

	// File-backed stores
	sessStore := file.NewFileSessionStore(sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage)))
	cronStorePath := filepath.Join(dataDir, "cron", "jobs.json")
	cronStore := cron.NewService(cronStorePath, nil)
	pairingStorePath := filepath.Join(dataDir, "pairing.json")
	pairingStore := pairing.NewService(pairingStorePath)
	agentStore := agents.NewService(filepath.Join(dataDir, "agents.json"))

	cronRetryCfg := cfg.Cron.ToRetryConfig()
	cronStore.SetRetryConfig(cronRetryCfg)

	// Skills loader + search tool
	globalSkillsDir := os.Getenv("GOCLAW_SKILLS_DIR")
	if globalSkillsDir == "" {
		globalSkillsDir = filepath.Join(config.ExpandHome("~/.goclaw"), "skills")
	}
	skillsLoader := skills.NewLoader(workspace, globalSkillsDir, "")
	toolsReg.Register(tools.NewSkillSearchTool(skillsLoader))
	slog.Info("skill_search tool registered", "skills", len(skillsLoader.ListSkills()))

	// Cron tool (agent-facing)
	toolsReg.Register(tools.NewCronTool(cronStore))
	slog.Info("cron tool registered")

	// Session tools (list, status, history, send)
	toolsReg.Register(tools.NewSessionsListTool())
	toolsReg.Register(tools.NewSessionStatusTool())
	toolsReg.Register(tools.NewSessionsHistoryTool())
	toolsReg.Register(tools.NewSessionsSendTool())

	// Message tool (send to channels)
	toolsReg.Register(tools.NewMessageTool())
	slog.Info("session + message tools registered")

	// Allow read_file to access skills directories (outside workspace).
	homeDir, _ := os.UserHomeDir()
	if readTool, ok := toolsReg.Get("read_file"); ok {
		if pa, ok := readTool.(tools.PathAllowable); ok {
			pa.AllowPaths(globalSkillsDir)
			if homeDir != "" {
				pa.AllowPaths(filepath.Join(homeDir, ".agents", "skills"))
			}
		}
	}

	// Wire SessionStoreAware + BusAware on tools that need them
	for _, name := range []string{"sessions_list", "session_status", "sessions_history", "sessions_send"} {
		if t, ok := toolsReg.Get(name); ok {
			if sa, ok := t.(tools.SessionStoreAware); ok {
				sa.SetSessionStore(sessStore)
			}
			if ba, ok := t.(tools.BusAware); ok {
				ba.SetMessageBus(msgBus)
			}
		}
	}
	if t, ok := toolsReg.Get("message"); ok {
		if ba, ok := t.(tools.BusAware); ok {
			ba.SetMessageBus(msgBus)
		}
	}

	// Create all agents, driven by config.json (agents.defaults + agents.list).
	agentRouter := agent.NewRouter()
	resolverDeps := agent.ConfigResolverDeps{
		Config:      cfg,
		ProviderReg: providerRegistry,
		Bus:         msgBus,
		Sessions:    sessStore,
		Tools:       toolsReg,
		ToolPolicy:  toolPE,
		Skills:      skillsLoader,
		HasMemory:   hasMemory,
		OnEvent: func(e agent.AgentEvent) {
			msgBus.Broadcast(bus.Event{Name: protocol.EventAgent, Payload: e})
		},
		InjectionAction: cfg.Gateway.InjectionAction,
		MaxMessageChars: cfg.Gateway.MaxMessageChars,
	}
	agentRouter.SetResolver(agent.NewConfigResolver(resolverDeps))

	if _, err := agentRouter.Get("default"); err != nil {
		slog.Error("failed to create default agent", "error", err)
		os.Exit(1)
	}
	for agentID := range cfg.Agents.List {
		if agentID == "default" {
			continue
		}
		if _, err := agentRouter.Get(agentID); err != nil {
			slog.Error("failed to create agent", "agent", agentID, "error", err)
		}
	}

	// Create gateway server and wire enforcement
	server := gateway.NewServer(cfg, msgBus, agentRouter, sessStore, toolsReg)
	server.SetPolicyEngine(permPE)
	server.SetPairingService(pairingStore)

	pairingMethods := registerAllMethods(server, agentRouter, sessStore, cronStore, pairingStore, cfg, msgBus)

	// Channel manager
	channelMgr := channels.NewManager(msgBus)

	if t, ok := toolsReg.Get("message"); ok {
		if cs, ok := t.(tools.ChannelSenderAware); ok {
			cs.SetChannelSender(channelMgr.SendToChannel)
		}
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus, pairingStore, agentStore)
		if err != nil {
			slog.Error("failed to initialize telegram channel", "error", err)
		} else {
			channelMgr.RegisterChannel("telegram", tg)
			slog.Info("telegram channel enabled (config)")
		}
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		dc, err := discord.New(cfg.Channels.Discord, msgBus, pairingStore)
		if err != nil {
			slog.Error("failed to initialize discord channel", "error", err)
		} else {
			channelMgr.RegisterChannel("discord", dc)
			slog.Info("discord channel enabled (config)")
		}
	}

	if cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "" {
		wa, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus, pairingStore)
		if err != nil {
			slog.Error("failed to initialize whatsapp channel", "error", err)
		} else {
			channelMgr.RegisterChannel("whatsapp", wa)
			slog.Info("whatsapp channel enabled (config)")
		}
	}

	if cfg.Channels.Zalo.Enabled && cfg.Channels.Zalo.Token != "" {
		z, err := zalo.New(cfg.Channels.Zalo, msgBus, pairingStore)
		if err != nil {
			slog.Error("failed to initialize zalo channel", "error", err)
		} else {
			channelMgr.RegisterChannel("zalo", z)
			slog.Info("zalo channel enabled (config)")
		}
	}

	if cfg.Channels.Feishu.Enabled && cfg.Channels.Feishu.AppID != "" {
		f, err := feishu.New(cfg.Channels.Feishu, msgBus, pairingStore)
		if err != nil {
			slog.Error("failed to initialize feishu channel", "error", err)
		} else {
			channelMgr.RegisterChannel("feishu", f)
			slog.Info("feishu/lark channel enabled (config)")
		}
	}

	// Wire pairing approval notification → channel.
	botName := cfg.ResolveDisplayName("default")
	pairingMethods.SetOnApprove(func(ctx context.Context, channel, chatID string) {
		msg := fmt.Sprintf("%s access approved. Send a message to start chatting.", botName)
		if err := channelMgr.SendToChannel(ctx, channel, chatID, msg); err != nil {
			slog.Warn("failed to send pairing approval notification", "channel", channel, "chatID", chatID, "error", err)
		}
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Skills directory watcher — auto-detect new/removed/modified skills at runtime.
	if watcher, err := skillsLoader.NewWatcher(); err != nil {
		slog.Warn("skills watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}

	// Create lane-based scheduler before cron, since cron jobs dispatch through it.
	sched := scheduler.NewScheduler(
		scheduler.DefaultLanes(),
		scheduler.DefaultQueueConfig(),
		makeSchedulerRunFunc(agentRouter, cfg),
	)
	defer sched.Stop()

	sched.SetTokenEstimateFunc(func(sessionKey string) (int, int) {
		history := sessStore.GetHistory(sessionKey)
		lastPT, lastMC := sessStore.GetLastPromptTokens(sessionKey)
		tokens := agent.EstimateTokensWithCalibration(history, lastPT, lastMC)
		cw := sessStore.GetContextWindow(sessionKey)
		if cw <= 0 {
			cw = 200000
		}
		return tokens, cw
	})

	cronStore.SetOnJob(makeCronJobHandler(sched, msgBus, cfg))
	if err := cronStore.Start(); err != nil {
		slog.Warn("cron service failed to start", "error", err)
	}

	// Subscribe to agent events for channel streaming/reaction forwarding.
	msgBus.Subscribe("channel-streaming", func(event bus.Event) {
		if event.Name != protocol.EventAgent {
			return
		}
		agentEvent, ok := event.Payload.(agent.AgentEvent)
		if !ok {
			return
		}
		channelMgr.HandleAgentEvent(agentEvent.Type, agentEvent.RunID, agentEvent.Payload)
	})

	// Start inbound message consumer (channel → scheduler → agent → channel)
	go consumeInboundMessages(ctx, msgBus, agentRouter, cfg, sched, channelMgr)

	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)

		server.BroadcastEvent(*protocol.NewEvent(protocol.EventShutdown, nil))

		channelMgr.StopAll(context.Background())
		cronStore.Stop()

		cancel()
	}()

	slog.Info("goclaw gateway starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"agents", agentRouter.List(),
		"tools", toolsReg.Count(),
		"channels", channelMgr.GetEnabledChannels(),
	)

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
}
