package session

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"cogcore/internal/store"
)

func newTestSessionStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	idx, err := store.Open(context.Background(), dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return New(dir, idx)
}

func TestCreateLoadAndAddTurn(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "/home/dev/proj", "agent-1", "model-1", "", "my session")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Meta.ID)

	require.NoError(t, s.AddTurn(ctx, sess.Meta.ID, "/home/dev/proj", Turn{
		TurnNumber: 1, Role: RoleUser, Content: "hello", CreatedAt: 1,
	}))
	// Idempotent replay of the same turn number.
	require.NoError(t, s.AddTurn(ctx, sess.Meta.ID, "/home/dev/proj", Turn{
		TurnNumber: 1, Role: RoleUser, Content: "hello again, ignored", CreatedAt: 2,
	}))

	loaded, err := s.LoadSession(ctx, sess.Meta.ID, "/home/dev/proj")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 1)
	require.Equal(t, "hello", loaded.Turns[0].Content)
	require.Equal(t, 1, loaded.Meta.TurnCount)
}

func TestLoadMissingSessionReturnsNotFound(t *testing.T) {
	s := newTestSessionStore(t)
	_, err := s.LoadSession(context.Background(), "does-not-exist", "/home/dev/proj")
	require.Error(t, err)
}

func TestListSessionsOrderedByUpdatedDescending(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	first, err := s.CreateSession(ctx, "/home/dev/proj", "a", "m", "", "first")
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, "/home/dev/proj", "a", "m", "", "second")
	require.NoError(t, err)

	require.NoError(t, s.AddTurn(ctx, first.Meta.ID, "/home/dev/proj", Turn{TurnNumber: 1, Role: RoleUser, Content: "bump", CreatedAt: 100}))

	list, err := s.ListSessions(ctx, "/home/dev/proj")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.Meta.ID, list[0].ID)
	require.Equal(t, second.Meta.ID, list[1].ID)
}

func TestBranchSessionCopiesTagsAndMetadata(t *testing.T) {
	s := newTestSessionStore(t)
	ctx := context.Background()

	source, err := s.CreateSession(ctx, "/home/dev/proj", "a", "m", "", "source")
	require.NoError(t, err)
	source.Meta.Tags = []string{"important"}
	source.Meta.Metadata = map[string]string{"k": "v"}
	doc, err := RenderFrontmatter(source.Meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.sessionPath(source.Meta.ProjectHash, source.Meta.ID), []byte(doc), 0o644))

	branch, err := s.BranchSession(ctx, source.Meta.ID, "/home/dev/proj", "experiment")
	require.NoError(t, err)
	require.Equal(t, source.Meta.ID, branch.Meta.ParentSessionID)
	require.Equal(t, "experiment", branch.Meta.Branch)
	require.Equal(t, []string{"important"}, branch.Meta.Tags)
	require.Equal(t, map[string]string{"k": "v"}, branch.Meta.Metadata)
	require.Empty(t, branch.Turns)
}
