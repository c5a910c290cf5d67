package recall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cogcore/internal/embedding"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

func TestReindexAllRebuildsVectorIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := store.Open(ctx, dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	defer idx.Close()

	sessions := session.New(dir, idx)
	sess, err := sessions.CreateSession(ctx, "/home/dev/proj", "agent-1", "model-1", "", "t")
	require.NoError(t, err)
	require.NoError(t, sessions.AddTurn(ctx, sess.Meta.ID, "/home/dev/proj", session.Turn{
		TurnNumber: 1, Role: session.RoleUser, Content: "rebuild the vector index from scratch", CreatedAt: 1,
	}))

	vector := NewVectorIndex(idx, embedding.NewHashEngine(16))
	require.NoError(t, ReindexAll(ctx, idx, sessions, vector))

	rows, err := idx.AllEmbeddings(ctx, "session")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}
