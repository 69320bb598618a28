package bootstrap

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RawFile is one bootstrap file as read from disk, pre-truncation.
type RawFile struct {
	Path    string
	Content string
}

// bootstrapOrder reads BOOTSTRAP.md (a numbered list of *.md filenames) if
// present, otherwise returns the default order.
func bootstrapOrder(workspace string) []string {
	data, err := os.ReadFile(filepath.Join(workspace, BootstrapFile))
	if err != nil {
		return defaultBootstrapOrder
	}

	var order []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Numbered list entries: "1. FILE.md", "1) FILE.md", or bare "FILE.md".
		if i := strings.IndexAny(line, ".)"); i > 0 && i < 4 {
			if _, err := strconv.Atoi(strings.TrimSpace(line[:i])); err == nil {
				line = strings.TrimSpace(line[i+1:])
			}
		}
		line = strings.TrimPrefix(line, "- ")
		if strings.HasSuffix(line, ".md") {
			order = append(order, line)
		}
	}
	if len(order) == 0 {
		return defaultBootstrapOrder
	}
	return order
}

// LoadWorkspaceFiles reads AGENTS.md plus every optional bootstrap file
// named by BOOTSTRAP.md (or the default order), in order. AGENTS.md is
// always first and always included in the slice; when it cannot be read,
// its entry has empty content and no error is reported.
func LoadWorkspaceFiles(workspace string) []RawFile {
	var files []RawFile

	agentsPath := filepath.Join(workspace, AgentsFile)
	agentsContent, _ := os.ReadFile(agentsPath)
	files = append(files, RawFile{Path: AgentsFile, Content: string(agentsContent)})

	for _, name := range bootstrapOrder(workspace) {
		if name == AgentsFile {
			continue
		}
		content, err := os.ReadFile(filepath.Join(workspace, name))
		if err != nil {
			continue // optional file, silently absent
		}
		files = append(files, RawFile{Path: name, Content: string(content)})
	}

	return files
}

// BuildContextFiles truncates each raw file to cfg.MaxCharsPerFile, then
// enforces cfg.TotalMaxChars in order: the file that would cross the total
// is cut to the remaining budget (and marked truncated), and every file
// after it is dropped (earlier files — AGENTS.md first — always win).
func BuildContextFiles(raw []RawFile, cfg TruncateConfig) []ContextFile {
	if cfg.MaxCharsPerFile <= 0 {
		cfg.MaxCharsPerFile = DefaultMaxCharsPerFile
	}
	if cfg.TotalMaxChars <= 0 {
		cfg.TotalMaxChars = DefaultTotalMaxChars
	}

	var out []ContextFile
	total := 0
	for _, f := range raw {
		content := f.Content
		truncated := false
		if len(content) > cfg.MaxCharsPerFile {
			content = content[:cfg.MaxCharsPerFile]
			truncated = true
		}
		if total+len(content) > cfg.TotalMaxChars {
			remaining := cfg.TotalMaxChars - total
			if remaining <= 0 {
				break
			}
			content = content[:remaining]
			truncated = true
		}
		out = append(out, ContextFile{
			Path:        f.Path,
			Content:     content,
			Truncated:   truncated,
			OriginalLen: len(f.Content),
		})
		total += len(content)
		if total >= cfg.TotalMaxChars {
			break
		}
	}
	return out
}

// ContextFileStore is the narrow persistence surface LoadFromStore/
// SeedToStore/SeedUserFiles need: a per-user key-value document store
// (managed-mode deployments keep bootstrap files in the same backing
// store as sessions rather than on a shared filesystem).
type ContextFileStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

func storeKey(userID, name string) string { return "bootstrap:" + userID + ":" + name }

// LoadFromStore loads a user's bootstrap files from a ContextFileStore
// instead of the filesystem (used by per-user managed-mode workspaces).
func LoadFromStore(store ContextFileStore, userID string) []RawFile {
	var files []RawFile
	for _, name := range append([]string{AgentsFile}, defaultBootstrapOrder[1:]...) {
		if content, ok := store.Get(storeKey(userID, name)); ok {
			files = append(files, RawFile{Path: name, Content: content})
		}
	}
	return files
}

// SeedToStore copies the embedded templates into a user's store entries,
// without overwriting any that already exist.
func SeedToStore(store ContextFileStore, userID string) error {
	for _, name := range templateFiles {
		if _, ok := store.Get(storeKey(userID, name)); ok {
			continue
		}
		content, err := ReadTemplate(name)
		if err != nil {
			continue
		}
		if err := store.Set(storeKey(userID, name), content); err != nil {
			return fmt.Errorf("bootstrap: seed %s to store: %w", name, err)
		}
	}
	return nil
}

// SeedUserFiles seeds USER.md and IDENTITY.md for one user into a store,
// substituting {{user_id}} in the template body.
func SeedUserFiles(store ContextFileStore, userID string) error {
	for _, name := range []string{UserFile, IdentityFile} {
		if _, ok := store.Get(storeKey(userID, name)); ok {
			continue
		}
		content, err := ReadTemplate(name)
		if err != nil {
			continue
		}
		content = strings.ReplaceAll(content, "{{user_id}}", userID)
		if err := store.Set(storeKey(userID, name), content); err != nil {
			return fmt.Errorf("bootstrap: seed user file %s: %w", name, err)
		}
	}
	return nil
}

// Fingerprint hashes BOOTSTRAP.md plus every existing bootstrap file
// (name + bytes, NUL-separated) so that any byte change, file addition,
// removal, or reordering produces a different value.
func Fingerprint(workspace string) string {
	h := sha256.New()

	bootstrapPath := filepath.Join(workspace, BootstrapFile)
	if data, err := os.ReadFile(bootstrapPath); err == nil {
		h.Write([]byte(BootstrapFile))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}

	for _, f := range LoadWorkspaceFiles(workspace) {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write([]byte(f.Content))
		h.Write([]byte{0})
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
