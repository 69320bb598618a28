package cmd

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

// providerInfo describes one interactively-selectable LLM provider.
type providerInfo struct {
	displayName string
	envKey      string // env var auto-onboard checks for this provider's API key
	modelHint   string // default model to pre-fill when this provider is chosen
}

// providerMap is the canonical provider list shown by the onboarding wizard
// and consulted by auto-onboard for env-var detection — keyed by the same
// provider name used in config.Providers / providers.Registry.
var providerMap = map[string]providerInfo{
	"openrouter": {displayName: "OpenRouter", envKey: "GOCLAW_OPENROUTER_API_KEY", modelHint: "anthropic/claude-sonnet-4-5-20250929"},
	"anthropic":  {displayName: "Anthropic", envKey: "GOCLAW_ANTHROPIC_API_KEY", modelHint: "claude-sonnet-4-5-20250929"},
	"openai":     {displayName: "OpenAI", envKey: "GOCLAW_OPENAI_API_KEY", modelHint: "gpt-4o"},
	"groq":       {displayName: "Groq", envKey: "GOCLAW_GROQ_API_KEY", modelHint: "llama-3.3-70b-versatile"},
	"deepseek":   {displayName: "DeepSeek", envKey: "GOCLAW_DEEPSEEK_API_KEY", modelHint: "deepseek-chat"},
	"gemini":     {displayName: "Google Gemini", envKey: "GOCLAW_GEMINI_API_KEY", modelHint: "gemini-2.0-flash"},
	"mistral":    {displayName: "Mistral", envKey: "GOCLAW_MISTRAL_API_KEY", modelHint: "mistral-large-latest"},
	"xai":        {displayName: "xAI", envKey: "GOCLAW_XAI_API_KEY", modelHint: "grok-3-mini"},
	"minimax":    {displayName: "MiniMax", envKey: "GOCLAW_MINIMAX_API_KEY", modelHint: "MiniMax-M2.5"},
	"cohere":     {displayName: "Cohere", envKey: "GOCLAW_COHERE_API_KEY", modelHint: "command-a"},
	"perplexity": {displayName: "Perplexity", envKey: "GOCLAW_PERPLEXITY_API_KEY", modelHint: "sonar-pro"},
}

// resolveProviderAPIKey extracts the API key for a provider from the config.
func resolveProviderAPIKey(cfg *config.Config, providerName string) string {
	switch providerName {
	case "openrouter":
		return cfg.Providers.OpenRouter.APIKey
	case "anthropic":
		return cfg.Providers.Anthropic.APIKey
	case "openai":
		return cfg.Providers.OpenAI.APIKey
	case "groq":
		return cfg.Providers.Groq.APIKey
	case "deepseek":
		return cfg.Providers.DeepSeek.APIKey
	case "gemini":
		return cfg.Providers.Gemini.APIKey
	case "mistral":
		return cfg.Providers.Mistral.APIKey
	case "xai":
		return cfg.Providers.XAI.APIKey
	case "minimax":
		return cfg.Providers.MiniMax.APIKey
	case "cohere":
		return cfg.Providers.Cohere.APIKey
	case "perplexity":
		return cfg.Providers.Perplexity.APIKey
	default:
		return ""
	}
}

// setProviderAPIKey stores key under the config field matching providerName.
func setProviderAPIKey(cfg *config.Config, providerName, key string) {
	switch providerName {
	case "openrouter":
		cfg.Providers.OpenRouter.APIKey = key
	case "anthropic":
		cfg.Providers.Anthropic.APIKey = key
	case "openai":
		cfg.Providers.OpenAI.APIKey = key
	case "groq":
		cfg.Providers.Groq.APIKey = key
	case "deepseek":
		cfg.Providers.DeepSeek.APIKey = key
	case "gemini":
		cfg.Providers.Gemini.APIKey = key
	case "mistral":
		cfg.Providers.Mistral.APIKey = key
	case "xai":
		cfg.Providers.XAI.APIKey = key
	case "minimax":
		cfg.Providers.MiniMax.APIKey = key
	case "cohere":
		cfg.Providers.Cohere.APIKey = key
	case "perplexity":
		cfg.Providers.Perplexity.APIKey = key
	}
}

// onboardGenerateToken returns a random hex token of n bytes (2n hex chars),
// used for the gateway auth token and the DB encryption key.
func onboardGenerateToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// providerOrder is the display order of the interactive provider menu,
// matching providerPriority's auto-detection precedence.
var providerOrder = []string{
	"openrouter", "anthropic", "openai", "groq", "deepseek",
	"gemini", "mistral", "xai", "minimax", "cohere", "perplexity",
}

// runOnboard walks a first-time user through picking a provider, entering an
// API key, and writing config.json. Auto-onboard (runAutoOnboard) handles
// the non-interactive, env-var-driven path; this is the interactive fallback.
func runOnboard() {
	cfgPath := resolveConfigPath()
	cfg := config.Default()

	fmt.Println("goclaw setup")
	fmt.Println()
	fmt.Println("Choose an AI provider:")
	for i, name := range providerOrder {
		fmt.Printf("  %d) %s\n", i+1, providerMap[name].displayName)
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	provider := promptProvider(scanner)
	pi := providerMap[provider]

	fmt.Printf("Enter your %s API key: ", pi.displayName)
	scanner.Scan()
	apiKey := strings.TrimSpace(scanner.Text())
	if apiKey == "" {
		fmt.Println("No API key entered, aborting setup.")
		os.Exit(1)
	}
	setProviderAPIKey(cfg, provider, apiKey)

	cfg.Agents.Defaults.Provider = provider
	cfg.Agents.Defaults.Model = pi.modelHint
	cfg.Gateway.Token = onboardGenerateToken(16)

	enabled := true
	cfg.Agents.Defaults.Memory = &config.MemoryConfig{Enabled: &enabled}

	if err := saveCleanConfig(cfgPath, cfg); err != nil {
		fmt.Printf("Error: failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Configured %s (model: %s)\n", pi.displayName, pi.modelHint)
	fmt.Printf("Config saved to %s\n", cfgPath)
	fmt.Println()
	fmt.Println("Run './goclaw' to start the gateway.")
}

// promptProvider reads a 1-based menu choice (or a raw provider name) from
// scanner, re-prompting on invalid input.
func promptProvider(scanner *bufio.Scanner) string {
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			os.Exit(1)
		}
		input := strings.TrimSpace(scanner.Text())

		if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(providerOrder) {
			return providerOrder[idx-1]
		}
		if _, ok := providerMap[strings.ToLower(input)]; ok {
			return strings.ToLower(input)
		}
		fmt.Println("Invalid choice, try again.")
	}
}
