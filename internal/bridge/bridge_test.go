package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cogcore/internal/config"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

func newTestBridge(t *testing.T) (*Bridge, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := store.Open(context.Background(), dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	sessions := session.New(dir, idx)
	cfg := config.BridgeConfig{SubAgentFindingMaxChars: 500, StreamSnapshotMaxChars: 2000}
	b := New(dir, sessions, nil, nil, nil, nil, cfg)
	return b, dir
}

func TestInitSessionCreatesAndResetsCounter(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	id, err := b.InitSession(ctx, "/home/dev/proj", "agent-1", "model-1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b.mu.Lock()
	n := b.turnCounter[id]
	b.mu.Unlock()
	require.Equal(t, 0, n)
}

func TestRecordUserAndAssistantTurnsIncrementCounter(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	id, err := b.InitSession(ctx, "/home/dev/proj", "agent-1", "model-1")
	require.NoError(t, err)

	require.NoError(t, b.RecordUserTurn(ctx, id, "/home/dev/proj", "hello"))
	require.NoError(t, b.RecordAssistantTurn(ctx, id, "/home/dev/proj", "hi there", nil))

	sess, err := b.sessions.LoadSession(ctx, id, "/home/dev/proj")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	require.Equal(t, session.RoleUser, sess.Turns[0].Role)
	require.Equal(t, session.RoleAssistant, sess.Turns[1].Role)
}

func TestCreateSubSessionCarriesParentID(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	parentID, err := b.InitSession(ctx, "/home/dev/proj", "agent-1", "model-1")
	require.NoError(t, err)

	subID, err := b.CreateSubSession(ctx, parentID, "investigate flaky test", "agent-1", "model-1", "/home/dev/proj")
	require.NoError(t, err)
	require.NotEmpty(t, subID)

	sub, err := b.sessions.LoadSession(ctx, subID, "/home/dev/proj")
	require.NoError(t, err)
	require.Equal(t, parentID, sub.Meta.ParentSessionID)
}

func TestBubbleUpFindingsTruncatesAndAppendsToProjectMemory(t *testing.T) {
	b, dir := newTestBridge(t)
	ctx := context.Background()
	project := "/home/dev/proj"

	parentID, err := b.InitSession(ctx, project, "agent-1", "model-1")
	require.NoError(t, err)
	subID, err := b.CreateSubSession(ctx, parentID, "investigate flaky test", "agent-1", "model-1", project)
	require.NoError(t, err)

	longFinding := ""
	for i := 0; i < 600; i++ {
		longFinding += "x"
	}
	require.NoError(t, b.RecordUserTurn(ctx, subID, project, "go investigate"))
	require.NoError(t, b.RecordAssistantTurn(ctx, subID, project, longFinding, nil))

	require.NoError(t, b.BubbleUpFindings(ctx, subID, parentID, project))

	scope, err := readMemoryScope(dir, scopeFilenameForProject(project))
	require.NoError(t, err)
	require.Contains(t, scope, "Sub-agent finding")
	require.Contains(t, scope, subID)
	require.Contains(t, scope, parentID)
	require.LessOrEqual(t, len(scope), 600+100) // truncated content plus header text
}

func TestBubbleUpFindingsNoOpWhenNoAssistantTurn(t *testing.T) {
	b, dir := newTestBridge(t)
	ctx := context.Background()
	project := "/home/dev/proj"

	parentID, err := b.InitSession(ctx, project, "agent-1", "model-1")
	require.NoError(t, err)
	subID, err := b.CreateSubSession(ctx, parentID, "investigate flaky test", "agent-1", "model-1", project)
	require.NoError(t, err)

	require.NoError(t, b.BubbleUpFindings(ctx, subID, parentID, project))

	scope, err := readMemoryScope(dir, scopeFilenameForProject(project))
	require.NoError(t, err)
	require.Empty(t, scope)
}

func TestLoadMemoryContextAlwaysIncludesCapabilitiesBlock(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx, err := b.LoadMemoryContext("/home/dev/proj", "agent-1")
	require.NoError(t, err)
	require.Contains(t, ctx, "Memory Capabilities")
}

func TestLoadMemoryContextIncludesRememberedEntries(t *testing.T) {
	b, _ := newTestBridge(t)
	_, err := b.smaran.Remember("I prefer tabs over spaces", "sess-1")
	require.NoError(t, err)

	ctx, err := b.LoadMemoryContext("/home/dev/proj", "agent-1")
	require.NoError(t, err)
	require.Contains(t, ctx, "Explicit Memory")
	require.Contains(t, ctx, "I prefer tabs over spaces")
}
