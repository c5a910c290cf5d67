package recall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogcore/internal/store"
)

func newTestGraphStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	idx, err := store.Open(context.Background(), dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestLinkToSessionMakesEntityReachableByWalk(t *testing.T) {
	idx := newTestGraphStore(t)
	g := NewGraphRetriever(idx, 2, 50)
	ctx := context.Background()

	require.NoError(t, g.LinkToSession(ctx, "sess-1", "Kubernetes"))

	results, err := g.Walk(ctx, []string{"sess-1"})
	require.NoError(t, err)

	var found bool
	for _, r := range results {
		if r.EntityID == "Kubernetes" {
			found = true
			assert.Equal(t, 1, r.Hops)
		}
	}
	assert.True(t, found)
}

func TestLinkToSessionReinforcesWeightOnRepeat(t *testing.T) {
	idx := newTestGraphStore(t)
	g := NewGraphRetriever(idx, 2, 50)
	ctx := context.Background()

	require.NoError(t, g.LinkToSession(ctx, "sess-1", "Kubernetes"))
	require.NoError(t, g.LinkToSession(ctx, "sess-1", "Kubernetes"))

	edges, err := idx.Neighbors(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 2.0, edges[0].Weight)
}
