package recall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cogcore/internal/embedding"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

func newTestEngine(t *testing.T) (*store.Store, *session.Store, *Engine) {
	t.Helper()
	dir := t.TempDir()
	idx, err := store.Open(context.Background(), dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	sessions := session.New(dir, idx)
	vector := NewVectorIndex(idx, embedding.NewHashEngine(32))
	graph := NewGraphRetriever(idx, 2, 50)
	engine, err := NewEngine(idx, vector, graph, DefaultHybridWeights(), 64)
	require.NoError(t, err)
	return idx, sessions, engine
}

func TestHybridSearchFusesLexicalAndVector(t *testing.T) {
	ctx := context.Background()
	idx, sessions, engine := newTestEngine(t)

	sess, err := sessions.CreateSession(ctx, "/home/dev/proj", "agent-1", "model-1", "", "title")
	require.NoError(t, err)
	require.NoError(t, sessions.AddTurn(ctx, sess.Meta.ID, "/home/dev/proj", session.Turn{
		TurnNumber: 1, Role: session.RoleUser, Content: "investigate the consolidation scheduler bug", CreatedAt: 1,
	}))

	vector := NewVectorIndex(idx, embedding.NewHashEngine(32))
	require.NoError(t, vector.Index(ctx, "session", sess.Meta.ID, "investigate the consolidation scheduler bug"))

	results, err := engine.HybridSearch(ctx, "consolidation scheduler bug", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, sess.Meta.ID, results[0].SourceID)
	require.Contains(t, results[0].FoundBy, "lexical")
}

func TestIsSelfAnswerableGate(t *testing.T) {
	_, _, engine := newTestEngine(t)

	require.False(t, engine.IsSelfAnswerable(""))
	require.False(t, engine.IsSelfAnswerable("ok"))
	require.True(t, engine.IsSelfAnswerable("what is the consolidation schedule for this project?"))
}
