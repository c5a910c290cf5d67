package bridge

import (
	"fmt"
	"strings"
)

// HandleMemoryCommand parses a small deterministic grammar — remember X,
// forget X, recall X, list [category] — and returns a formatted response.
// The second return value is false when text is not a recognized command
// (§4.9).
func (b *Bridge) HandleMemoryCommand(text, sessionID string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "remember "):
		content := strings.TrimSpace(trimmed[len("remember "):])
		if content == "" {
			return "nothing to remember", true
		}
		entry, err := b.smaran.Remember(content, sessionID)
		if err != nil {
			return fmt.Sprintf("could not remember that: %v", err), true
		}
		return fmt.Sprintf("remembered as %s: %s", entry.Category, entry.Content), true

	case strings.HasPrefix(lower, "forget "):
		target := strings.TrimSpace(trimmed[len("forget "):])
		if target == "" {
			return "nothing to forget", true
		}
		removed, err := b.smaran.Forget(target)
		if err != nil {
			return fmt.Sprintf("could not forget that: %v", err), true
		}
		if removed == 0 {
			return fmt.Sprintf("found nothing matching %q", target), true
		}
		return fmt.Sprintf("forgot %d memory(ies) matching %q", removed, target), true

	case strings.HasPrefix(lower, "recall "):
		query := strings.TrimSpace(trimmed[len("recall "):])
		entries, err := b.smaran.Recall(query)
		if err != nil {
			return fmt.Sprintf("could not recall that: %v", err), true
		}
		return formatSmaranEntries(entries, fmt.Sprintf("no memories matching %q", query)), true

	case lower == "list" || strings.HasPrefix(lower, "list "):
		category := ""
		if len(trimmed) > 4 {
			category = strings.TrimSpace(trimmed[4:])
		}
		entries, err := b.smaran.List(category)
		if err != nil {
			return fmt.Sprintf("could not list memories: %v", err), true
		}
		empty := "no memories stored"
		if category != "" {
			empty = fmt.Sprintf("no memories in category %q", category)
		}
		return formatSmaranEntries(entries, empty), true

	default:
		return "", false
	}
}

func formatSmaranEntries(entries []SmaranEntry, emptyMessage string) string {
	if len(entries) == 0 {
		return emptyMessage
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s] %s", e.Category, e.Content)
	}
	return b.String()
}
