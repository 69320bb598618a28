// Package skills discovers SKILL.md playbooks (workspace overrides plus
// builtins), parses their frontmatter, and routes a per-turn subset by
// trigger/alias/explicit-mention score.
package skills

import (
	"regexp"
	"strings"
	"unicode"
)

// Requires gates a skill on environment preconditions.
type Requires struct {
	Bins []string `json:"bins,omitempty"`
	Env  []string `json:"env,omitempty"`
}

// Milestones configures progress-update messages emitted mid-turn.
type Milestones struct {
	Enabled        bool              `json:"enabled,omitempty"`
	ToolCallInterval int             `json:"tool_call_interval,omitempty"`
	MaxMessages    int               `json:"max_messages,omitempty"`
	Templates      map[string]string `json:"templates,omitempty"` // kickoff, researching, completion_ready
}

// CompletionRule requires at least one executed tool call matching Name
// whose args satisfy every named regex in Args.
type CompletionRule struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"` // argName -> regex source
}

// WorkflowPolicy is the merged per-turn enforcement policy described in
// spec §3/§4.11.
type WorkflowPolicy struct {
	// Kickoff
	RequireSubstantiveAction bool     `json:"require_substantive_action,omitempty"`
	SubstantiveTools         []string `json:"substantive_tools,omitempty"`
	ForbidAsFirstOnly        []string `json:"forbid_as_first_only,omitempty"`

	// Completion
	RequireToolCalls []CompletionRule `json:"require_tool_calls,omitempty"`

	// Retry
	EnforcementRetries int    `json:"enforcement_retries,omitempty"`
	FailureMode        string `json:"failure_mode,omitempty"` // "explain_missing" | "hard_fail"

	// Progress
	ClaimRequiresActions bool       `json:"claim_requires_actions,omitempty"`
	ClaimPatterns        []string   `json:"claim_patterns,omitempty"`
	Milestones           Milestones `json:"milestones,omitempty"`
}

// IsZero reports whether the policy carries no constraints at all.
func (p WorkflowPolicy) IsZero() bool {
	return !p.RequireSubstantiveAction && len(p.SubstantiveTools) == 0 &&
		len(p.ForbidAsFirstOnly) == 0 && len(p.RequireToolCalls) == 0 &&
		p.EnforcementRetries == 0 && p.FailureMode == "" &&
		!p.ClaimRequiresActions && len(p.ClaimPatterns) == 0 && !p.Milestones.Enabled
}

// Frontmatter is the nanobot.* metadata block of a SKILL.md file.
type Frontmatter struct {
	Emoji          string         `json:"emoji,omitempty"`
	Triggers       []string       `json:"triggers,omitempty"`
	Aliases        []string       `json:"aliases,omitempty"`
	AllowedTools   []string       `json:"allowed_tools,omitempty"`
	Always         bool           `json:"always,omitempty"`
	ToolRoundLimit bool           `json:"tool_round_limit,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Workflow       WorkflowPolicy `json:"workflow,omitempty"`
	Requires       Requires       `json:"requires,omitempty"`
}

// realtimeTags are the fixed tag set that flags a skill as tool-round-limited
// even without an explicit tool_round_limit:true (spec §4.4).
var realtimeTags = map[string]bool{
	"realtime": true,
	"network":  true,
	"web":      true,
	"live":     true,
}

// Skill is one discovered SKILL.md: metadata plus body.
type Skill struct {
	Name        string
	Description string
	Location    string // absolute path to the SKILL.md file
	Workspace   bool   // true if found in the workspace skills directory (shadows any builtin of the same name)
	Body        string
	Meta        Frontmatter
	missing     []string // unmet requires.bins/env, for availability display
}

// Available reports whether every declared bin/env requirement is met.
func (s Skill) Available() bool { return len(s.missing) == 0 }

// MissingRequirements lists the unmet bins/env requirements, if any.
func (s Skill) MissingRequirements() []string { return append([]string(nil), s.missing...) }

// IsRealtime reports whether this skill should count toward the
// tool-round-limit policy (explicit flag or one of the fixed realtime tags).
func (s Skill) IsRealtime() bool {
	if s.Meta.ToolRoundLimit {
		return true
	}
	for _, t := range s.Meta.Tags {
		if realtimeTags[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// matches reports a case-insensitive match of needle in haystack, on ASCII
// word boundaries for a single token. Multi-word/symbol-bearing/CJK terms fall back to substring
// matching per spec §4.4.
func matches(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	if isSimpleASCIIToken(needle) {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
		return re.MatchString(haystack)
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func isSimpleASCIIToken(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
