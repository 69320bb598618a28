package skills

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader discovers and routes skills. Workspace skills shadow builtins by
// name (first-seen wins in discovery order: workspace, then builtin, then
// any extra directory).
type Loader struct {
	mu     sync.RWMutex
	skills map[string]Skill
	order  []string // discovery order, for stable iteration

	workspaceDir string
	builtinDir   string
	extraDir     string
	log          *slog.Logger
}

// NewLoader discovers skills under <workspace>/skills, the global builtin
// directory, and an optional extra directory, then returns a Loader ready
// for routing. Discovery errors are logged, never fatal — a workspace with
// no skills directory is valid.
func NewLoader(workspace, builtinDir, extraDir string) *Loader {
	l := &Loader{
		skills:       make(map[string]Skill),
		workspaceDir: filepath.Join(workspace, "skills"),
		builtinDir:   builtinDir,
		extraDir:     extraDir,
		log:          slog.Default().With("component", "skills"),
	}
	l.reload()
	return l
}

// reload re-walks all skill directories from scratch.
func (l *Loader) reload() {
	found := make(map[string]Skill)
	var order []string

	addDir := func(dir string, isWorkspace bool) {
		if dir == "" {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			skillPath := filepath.Join(dir, e.Name(), "SKILL.md")
			sk, err := loadSkillFile(skillPath, isWorkspace)
			if err != nil {
				if !os.IsNotExist(err) {
					l.log.Warn("failed to load skill", "path", skillPath, "error", err)
				}
				continue
			}
			if _, exists := found[sk.Name]; exists {
				continue // first-seen wins
			}
			found[sk.Name] = *sk
			order = append(order, sk.Name)
		}
	}

	addDir(l.workspaceDir, true)
	addDir(l.builtinDir, false)
	addDir(l.extraDir, false)

	l.mu.Lock()
	l.skills = found
	l.order = order
	l.mu.Unlock()
}

// NewWatcher starts an fsnotify watch over the loader's skill directories
// and triggers a reload on any change. The caller must Close() the
// returned watcher (or it leaks a goroutine) when the loader is discarded.
func (l *Loader) NewWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("skills: new watcher: %w", err)
	}
	for _, dir := range []string{l.workspaceDir, l.builtinDir, l.extraDir} {
		if dir == "" {
			continue
		}
		if err := w.Add(dir); err != nil {
			l.log.Debug("skills watcher: directory not watchable", "dir", dir, "error", err)
		}
	}
	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				l.reload()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

type skillFrontmatter struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Metadata    map[string]interface{} `yaml:"metadata"`
}

var frontmatterRe = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---\r?\n(.*)\z`)

func loadSkillFile(path string, isWorkspace bool) (*Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := frontmatterRe.FindSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("no frontmatter block in %s", path)
	}

	var fm skillFrontmatter
	if err := yaml.Unmarshal(m[1], &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("%s: missing name", path)
	}

	meta := Frontmatter{}
	if nb, ok := fm.Metadata["nanobot"]; ok {
		if err := remarshal(nb, &meta); err != nil {
			return nil, fmt.Errorf("parse nanobot metadata: %w", err)
		}
	}

	sk := &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Location:    path,
		Workspace:   isWorkspace,
		Body:        strings.TrimSpace(string(m[2])),
		Meta:        meta,
	}
	sk.missing = unmetRequirements(meta.Requires)
	return sk, nil
}

// remarshal converts a loosely-typed YAML-decoded value (map[string]interface{}
// with nested maps) into a typed struct via a JSON round-trip — the
// frontmatter's metadata value is documented as JSON-shaped even though the
// outer frontmatter itself is YAML.
func remarshal(src interface{}, dst interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func unmetRequirements(req Requires) []string {
	var missing []string
	for _, bin := range req.Bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, "bin:"+bin)
		}
	}
	for _, env := range req.Env {
		if os.Getenv(env) == "" {
			missing = append(missing, "env:"+env)
		}
	}
	return missing
}

// ListSkills returns every discovered skill (available or not) in
// discovery order.
func (l *Loader) ListSkills() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.skills[name])
	}
	return out
}

// Get returns one skill by name.
func (l *Loader) Get(name string) (Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sk, ok := l.skills[name]
	return sk, ok
}

// FilterSkills restricts ListSkills() to names in allowList. A nil allowList
// means "all skills"; an empty non-nil slice means "none".
func (l *Loader) FilterSkills(allowList []string) []Skill {
	all := l.ListSkills()
	if allowList == nil {
		return all
	}
	allow := make(map[string]bool, len(allowList))
	for _, n := range allowList {
		allow[n] = true
	}
	out := all[:0:0]
	for _, s := range all {
		if allow[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// scoreResult is one skill's routing score for one message.
type scoreResult struct {
	name       string
	score      int
	triggerHits int
}

// SelectForMessage implements the routing algorithm in spec §4.4: scores
// every available skill against the message text and returns up to
// maxSkills names with score > 0, ordered by (desc score, desc trigger
// hits, asc name).
func (l *Loader) SelectForMessage(text string, maxSkills int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return nil
	}

	var results []scoreResult
	for _, sk := range l.ListSkills() {
		if !sk.Available() {
			continue
		}
		score, hits := scoreSkill(sk, trimmed)
		if score > 0 {
			results = append(results, scoreResult{name: sk.Name, score: score, triggerHits: hits})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].triggerHits != results[j].triggerHits {
			return results[i].triggerHits > results[j].triggerHits
		}
		return results[i].name < results[j].name
	})

	if maxSkills > 0 && len(results) > maxSkills {
		results = results[:maxSkills]
	}

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.name
	}
	return names
}

func scoreSkill(sk Skill, text string) (score, triggerHits int) {
	if matches(text, "$"+sk.Name) || matches(text, sk.Name) {
		score += 100
	}
	for _, alias := range sk.Meta.Aliases {
		if matches(text, alias) {
			score += 60
		}
	}
	for _, trig := range sk.Meta.Triggers {
		if matches(text, trig) {
			score += 20
			triggerHits++
		}
	}
	return score, triggerHits
}

// AllowedToolsFor returns the union of allowed_tools across the named
// skills, deduplicated, preserving first-seen order.
func (l *Loader) AllowedToolsFor(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		sk, ok := l.Get(name)
		if !ok {
			continue
		}
		for _, t := range sk.Meta.AllowedTools {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// ToolRoundLimited reports whether any of the named skills is flagged
// realtime/tool-round-limited.
func (l *Loader) ToolRoundLimited(names []string) bool {
	for _, name := range names {
		if sk, ok := l.Get(name); ok && sk.IsRealtime() {
			return true
		}
	}
	return false
}

// AlwaysSkills returns the names of every available skill with always=true.
func (l *Loader) AlwaysSkills() []string {
	var out []string
	for _, sk := range l.ListSkills() {
		if sk.Available() && sk.Meta.Always {
			out = append(out, sk.Name)
		}
	}
	return out
}

// WorkflowPolicyFor merges the workflow policies of the named skills:
// union semantics for lists, max for EnforcementRetries, and hard_fail
// dominates explain_missing for FailureMode.
func (l *Loader) WorkflowPolicyFor(names []string) WorkflowPolicy {
	var merged WorkflowPolicy
	subSeen := map[string]bool{}
	forbidSeen := map[string]bool{}
	claimSeen := map[string]bool{}

	for _, name := range names {
		sk, ok := l.Get(name)
		if !ok {
			continue
		}
		p := sk.Meta.Workflow
		if p.IsZero() {
			continue
		}

		merged.RequireSubstantiveAction = merged.RequireSubstantiveAction || p.RequireSubstantiveAction
		for _, t := range p.SubstantiveTools {
			if !subSeen[t] {
				subSeen[t] = true
				merged.SubstantiveTools = append(merged.SubstantiveTools, t)
			}
		}
		for _, t := range p.ForbidAsFirstOnly {
			if !forbidSeen[t] {
				forbidSeen[t] = true
				merged.ForbidAsFirstOnly = append(merged.ForbidAsFirstOnly, t)
			}
		}
		merged.RequireToolCalls = append(merged.RequireToolCalls, p.RequireToolCalls...)

		if p.EnforcementRetries > merged.EnforcementRetries {
			merged.EnforcementRetries = p.EnforcementRetries
		}
		if p.FailureMode == "hard_fail" {
			merged.FailureMode = "hard_fail"
		} else if p.FailureMode == "explain_missing" && merged.FailureMode == "" {
			merged.FailureMode = "explain_missing"
		}

		merged.ClaimRequiresActions = merged.ClaimRequiresActions || p.ClaimRequiresActions
		for _, c := range p.ClaimPatterns {
			if !claimSeen[c] {
				claimSeen[c] = true
				merged.ClaimPatterns = append(merged.ClaimPatterns, c)
			}
		}

		if p.Milestones.Enabled {
			merged.Milestones.Enabled = true
			if p.Milestones.ToolCallInterval > merged.Milestones.ToolCallInterval {
				merged.Milestones.ToolCallInterval = p.Milestones.ToolCallInterval
			}
			if p.Milestones.MaxMessages > merged.Milestones.MaxMessages {
				merged.Milestones.MaxMessages = p.Milestones.MaxMessages
			}
			if merged.Milestones.Templates == nil {
				merged.Milestones.Templates = map[string]string{}
			}
			for k, v := range p.Milestones.Templates {
				if _, exists := merged.Milestones.Templates[k]; !exists {
					merged.Milestones.Templates[k] = v
				}
			}
		}
	}

	return merged
}

// BuildSummary renders a terse XML-tagged skills summary (name,
// description, location, availability, missing requirements) for the
// subset named in allowList (nil = all).
func (l *Loader) BuildSummary(allowList []string) string {
	skills := l.FilterSkills(allowList)
	if len(skills) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, sk := range skills {
		fmt.Fprintf(&b, "  <skill name=%q location=%q available=%q",
			sk.Name, sk.Location, fmt.Sprint(sk.Available()))
		if len(sk.missing) > 0 {
			fmt.Fprintf(&b, " missing=%q", strings.Join(sk.missing, ","))
		}
		fmt.Fprintf(&b, ">%s</skill>\n", sk.Description)
	}
	b.WriteString("</available_skills>")
	return b.String()
}
