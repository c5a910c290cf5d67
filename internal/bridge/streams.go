package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cogcore/internal/session"
)

// signalStreams is the fixed ordered set of append-only streams read back
// by loadMemoryContext (§6.1).
var signalStreams = []string{"identity", "projects", "tasks", "flow"}

const signalStreamSnapshotMax = 2000

// appendSignalStream appends content to streams/<stream>.md under home,
// creating the file and its directory as needed.
func appendSignalStream(home, stream, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	dir := filepath.Join(home, "streams")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bridge: mkdir streams dir: %w", err)
	}
	path := filepath.Join(dir, stream+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("bridge: open stream %s: %w", stream, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content + "\n\n"); err != nil {
		return fmt.Errorf("bridge: append stream %s: %w", stream, err)
	}
	return nil
}

// readSignalStreamSnapshot returns the tail of a stream file, keeping at most
// the last maxChars bytes, or all of it when maxChars <= 0 (§4.9). The flow stream is
// ephemeral and is not size-truncated by this function's caller, matching
// the spec's "flow ephemeral" carve-out, but reading it the same way keeps
// the function uniform; callers decide whether to cap it.
func readSignalStreamSnapshot(home, stream string, maxChars int) (string, error) {
	path := filepath.Join(home, "streams", stream+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("bridge: read stream %s: %w", stream, err)
	}
	content := strings.TrimSpace(string(data))
	if maxChars > 0 && len(content) > maxChars {
		content = content[len(content)-maxChars:]
	}
	return content, nil
}

// appendMemoryScope appends content to memory/<scope>.md under home,
// matching the on-disk layout used by the consolidation scheduler for its
// own memory-scope writes (§6.1).
func appendMemoryScope(home, scope, content string) error {
	dir := filepath.Join(home, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bridge: mkdir memory dir: %w", err)
	}
	path := filepath.Join(dir, scope+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("bridge: open memory scope %s: %w", scope, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content + "\n\n"); err != nil {
		return fmt.Errorf("bridge: append memory scope %s: %w", scope, err)
	}
	return nil
}

// readMemoryScope returns the full content of memory/<scope>.md, or "" if
// it does not exist yet.
func readMemoryScope(home, scope string) (string, error) {
	path := filepath.Join(home, "memory", scope+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("bridge: read memory scope %s: %w", scope, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// readIdentityFiles concatenates every Markdown file directly under
// identity/ with a blank-line separator (§4.9 "Identity files" section).
func readIdentityFiles(home string) (string, error) {
	dir := filepath.Join(home, "identity")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("bridge: read identity dir: %w", err)
	}

	var parts []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// scopeFilenameForProject derives the memory/<scope>.md filename for a
// project path, matching session.ProjectHash so project-scoped memory
// aligns with the same project keying used by the session store.
func scopeFilenameForProject(project string) string {
	return "project-" + session.ProjectHash(project)
}
