package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/cron"
	"github.com/nextlevelbuilder/goclaw/internal/pairing"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/skills"
)

// onboardCmd wraps the interactive setup wizard.
func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactively configure goclaw (provider, API key, gateway token)",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

// agentCmd groups agent-facing subcommands (currently just chat).
func agentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "agent",
		Short: "Interact with configured agents",
	}
	c.AddCommand(agentChatCmd())
	return c
}

func loadCfgOrExit() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// configCmd shows and validates the resolved configuration.
func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect the active configuration",
	}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved config as JSON (secrets redacted)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			raw, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if gw, ok := doc["gateway"].(map[string]any); ok {
				if tok, ok := gw["token"].(string); ok {
					gw["token"] = redactSecret(tok)
				}
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the resolved config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})
	return c
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// modelsCmd lists providers configured with an API key and their default model hint.
func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List providers with credentials configured, and their default model",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			registry := providers.NewRegistry()
			registerProviders(registry, cfg)

			names := registry.List()
			if len(names) == 0 {
				fmt.Println("No providers configured. Run 'goclaw onboard' to add one.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tHINT")
			for _, name := range names {
				hint := providerMap[name].modelHint
				fmt.Fprintf(w, "%s\t%s\n", name, hint)
			}
			w.Flush()
		},
	}
}

// channelsCmd lists channels enabled in config.
func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List enabled channel integrations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tENABLED")
			fmt.Fprintf(w, "telegram\t%v\n", cfg.Channels.Telegram.Enabled)
			fmt.Fprintf(w, "discord\t%v\n", cfg.Channels.Discord.Enabled)
			fmt.Fprintf(w, "whatsapp\t%v\n", cfg.Channels.WhatsApp.Enabled)
			fmt.Fprintf(w, "feishu\t%v\n", cfg.Channels.Feishu.Enabled)
			fmt.Fprintf(w, "zalo\t%v\n", cfg.Channels.Zalo.Enabled)
			fmt.Fprintf(w, "slack\t%v\n", cfg.Channels.Slack.Enabled)
			w.Flush()
		},
	}
}

// pairingCmd manages pending channel pairing requests.
func pairingCmd() *cobra.Command {
	pairingPath := func(cfg *config.Config) string {
		return filepath.Join(cfg.WorkspacePath(), "pairing.json")
	}

	c := &cobra.Command{
		Use:   "pairing",
		Short: "Manage channel pairing requests",
	}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			svc := pairing.NewService(pairingPath(cfg))
			pending := svc.ListPending()
			if len(pending) == 0 {
				fmt.Println("No pending pairing requests.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tUSER\tCHANNEL\tAGENT\tCREATED")
			for _, p := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Code, p.UserID, p.Channel, p.AgentID, p.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "approve [code]",
		Short: "Approve a pending pairing request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			svc := pairing.NewService(pairingPath(cfg))
			req, err := svc.Approve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Approved %s on %s for agent %s\n", req.UserID, req.Channel, req.AgentID)
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "deny [code]",
		Short: "Deny a pending pairing request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			svc := pairing.NewService(pairingPath(cfg))
			if err := svc.Deny(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Denied.")
		},
	})
	return c
}

// cronCmd manages scheduled agent jobs.
func cronCmd() *cobra.Command {
	cronPath := func(cfg *config.Config) string {
		return filepath.Join(cfg.WorkspacePath(), "cron.json")
	}

	var agentFilter string
	c := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled agent jobs",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			retryCfg := cfg.Cron.ToRetryConfig()
			svc := cron.NewService(cronPath(cfg), &retryCfg)
			jobs := svc.List(agentFilter)
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAGENT\tSCHEDULE\tENABLED\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n", j.ID, j.Name, j.AgentID, j.Schedule, j.Enabled, j.LastError)
			}
			w.Flush()
		},
	}
	listCmd.Flags().StringVar(&agentFilter, "agent", "", "filter by agent id")
	c.AddCommand(listCmd)

	c.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			retryCfg := cfg.Cron.ToRetryConfig()
			svc := cron.NewService(cronPath(cfg), &retryCfg)
			if err := svc.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Deleted.")
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "enable [id]",
		Short: "Enable a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setCronEnabled(args[0], true)
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "disable [id]",
		Short: "Disable a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setCronEnabled(args[0], false)
		},
	})
	return c
}

func setCronEnabled(id string, enabled bool) {
	cfg := loadCfgOrExit()
	retryCfg := cfg.Cron.ToRetryConfig()
	svc := cron.NewService(filepath.Join(cfg.WorkspacePath(), "cron.json"), &retryCfg)
	if _, err := svc.Update(id, map[string]any{"enabled": enabled}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Updated.")
}

// skillsCmd lists the skills discovered for the configured workspace.
func skillsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List available skills",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			loader := skills.NewLoader(cfg.WorkspacePath(), "", "")
			list := loader.ListSkills()
			if len(list) == 0 {
				fmt.Println("No skills found.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, sk := range list {
				fmt.Fprintf(w, "%s\t%s\n", sk.Name, sk.Description)
			}
			w.Flush()
		},
	}
}

// sessionsCmd lists and manages stored agent sessions.
func sessionsCmd() *cobra.Command {
	var agentFilter string
	c := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored agent sessions",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			mgr := sessions.NewManager(filepath.Join(cfg.WorkspacePath(), "sessions"))
			list := mgr.List(agentFilter)
			if len(list) == 0 {
				fmt.Println("No sessions found.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMESSAGES\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Key, s.MessageCount, s.Updated.Format("2006-01-02 15:04"))
			}
			w.Flush()
		},
	}
	listCmd.Flags().StringVar(&agentFilter, "agent", "", "filter by agent id (passed through to the session index)")
	c.AddCommand(listCmd)

	c.AddCommand(&cobra.Command{
		Use:   "reset [key]",
		Short: "Reset a session's history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			mgr := sessions.NewManager(filepath.Join(cfg.WorkspacePath(), "sessions"))
			mgr.Reset(args[0])
			fmt.Println("Reset.")
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadCfgOrExit()
			mgr := sessions.NewManager(filepath.Join(cfg.WorkspacePath(), "sessions"))
			if err := mgr.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Deleted.")
		},
	})
	return c
}

// migrateCmd is a standalone-mode stub: schema migrations only apply to the
// Postgres-backed managed deployment, which this build does not include.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "migrate",
		Short:  "Database migrations (managed-mode only, not available in this build)",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(os.Stderr, "migrate: standalone builds have no database to migrate")
			os.Exit(1)
		},
	}
}

// formatAgentError renders an agent run error as a short user-facing string.
func formatAgentError(err error) string {
	if err == nil {
		return ""
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		return "The request took too long and was cancelled."
	}
	return fmt.Sprintf("Something went wrong processing your message: %v", err)
}
