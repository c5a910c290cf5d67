package bridge

import (
	"strings"

	"cogcore/internal/session"
)

// memoryCapabilitiesBlock is the fixed closing instructions block appended
// to every assembled memory context (§4.9).
const memoryCapabilitiesBlock = `## Memory Capabilities

You can manage explicit memory with natural commands:
- "remember X" — store X as an explicit memory.
- "forget X" — remove explicit memories mentioning X.
- "recall X" — retrieve explicit memories mentioning X.
- "list [category]" — list recent explicit memories, optionally filtered by category.`

// LoadMemoryContext assembles, in fixed order, every non-empty section
// separated by a blank line: identity files, memory context (global,
// project, agent), the Smaran explicit-memory snapshot with temporal decay
// applied, and four signal-stream snapshots; terminated by the fixed
// Memory-Capabilities block (§4.9).
func (b *Bridge) LoadMemoryContext(project, agentID string) (string, error) {
	var sections []string

	identity, err := readIdentityFiles(b.home)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(identity) != "" {
		sections = append(sections, identity)
	}

	memoryCtx, err := b.assembleMemoryContext(project, agentID)
	if err != nil {
		return "", err
	}
	if memoryCtx != "" {
		sections = append(sections, memoryCtx)
	}

	smaranSnapshot, err := b.smaran.snapshotWithDecay()
	if err != nil {
		return "", err
	}
	if smaranSnapshot != "" {
		sections = append(sections, "## Explicit Memory\n\n"+smaranSnapshot)
	}

	streamSection, err := b.assembleSignalStreams()
	if err != nil {
		return "", err
	}
	if streamSection != "" {
		sections = append(sections, streamSection)
	}

	sections = append(sections, memoryCapabilitiesBlock)
	return strings.Join(sections, "\n\n"), nil
}

func (b *Bridge) assembleMemoryContext(project, agentID string) (string, error) {
	global, err := readMemoryScope(b.home, "global")
	if err != nil {
		return "", err
	}
	var projectCtx string
	if project != "" {
		projectCtx, err = readMemoryScope(b.home, "project-"+session.ProjectHash(project))
		if err != nil {
			return "", err
		}
	}
	var agentCtx string
	if agentID != "" {
		agentCtx, err = readMemoryScope(b.home, "agent-"+agentID)
		if err != nil {
			return "", err
		}
	}

	var parts []string
	if global != "" {
		parts = append(parts, global)
	}
	if projectCtx != "" {
		parts = append(parts, projectCtx)
	}
	if agentCtx != "" {
		parts = append(parts, agentCtx)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "## Memory Context\n\n" + strings.Join(parts, "\n\n"), nil
}

func (b *Bridge) assembleSignalStreams() (string, error) {
	snapshotMax := b.cfg.StreamSnapshotMaxChars
	if snapshotMax <= 0 {
		snapshotMax = signalStreamSnapshotMax
	}

	var parts []string
	for _, stream := range signalStreams {
		max := snapshotMax
		if stream == "flow" {
			max = 0 // ephemeral: not size-capped
		}
		content, err := readSignalStreamSnapshot(b.home, stream, max)
		if err != nil {
			return "", err
		}
		if content == "" {
			continue
		}
		parts = append(parts, "### "+stream+"\n\n"+content)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "## Signal Streams\n\n" + strings.Join(parts, "\n\n"), nil
}
