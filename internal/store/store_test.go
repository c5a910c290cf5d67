package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s1, err := Open(ctx, dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, dir, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	defer s2.Close()

	state, err := s2.LoadNidraState(ctx)
	require.NoError(t, err)
	require.Equal(t, "LISTENING", state.CurrentState)
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	row := SessionRow{
		ID:          "sess-1",
		Title:       "first session",
		ProjectHash: "abcdef012345",
		ProjectPath: "/home/dev/project",
		AgentID:     "agent-1",
		ModelID:     "model-1",
		CreatedAt:   now,
		UpdatedAt:   now,
		TagsJSON:    "[]",
		MetadataJSON: "{}",
	}
	require.NoError(t, s.UpsertSession(ctx, row))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "first session", got.Title)
	require.Equal(t, "abcdef012345", got.ProjectHash)

	_, err = s.GetSession(ctx, "missing")
	require.Error(t, err)
}

func TestUpsertTurnIdempotentAndFTSSearchable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertSession(ctx, SessionRow{
		ID: "sess-2", ProjectHash: "abc", ProjectPath: "/p", AgentID: "a", ModelID: "m",
		CreatedAt: now, UpdatedAt: now, TagsJSON: "[]", MetadataJSON: "{}",
	}))

	turn := TurnRow{
		SessionID: "sess-2", TurnNumber: 1, Role: "user",
		Content: "please refactor the recall engine", ToolCallsRaw: "[]", CreatedAt: now,
	}
	require.NoError(t, s.UpsertTurn(ctx, turn))
	require.NoError(t, s.UpsertTurn(ctx, turn)) // no-op replay

	turns, err := s.ListTurns(ctx, "sess-2")
	require.NoError(t, err)
	require.Len(t, turns, 1)

	hits, err := s.SearchTurnsFTS(ctx, "refactor", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "sess-2", hits[0].SessionID)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.1, -0.2, 0.3, 0.4}
	blob := EncodeVector(v)
	require.Len(t, blob, len(v)*4)

	decoded, err := DecodeVector(blob)
	require.NoError(t, err)
	require.InDeltaSlice(t, v, decoded, 1e-6)

	_, err = DecodeVector(blob[:len(blob)-1])
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	require.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)

	c := []float32{0, 1, 0}
	require.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-9)

	require.Equal(t, 0.0, CosineSimilarity(a, []float32{1, 0}))
}

func TestEmbeddingStorageAndSourceDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	vec := EncodeVector([]float32{0.5, 0.5})
	require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRow{
		ID: "emb-1", Vector: vec, Text: "chunk one", SourceType: "session",
		SourceID: "sess-1-chunk-0", Dimensions: 2, MetadataJSON: "{}", CreatedAt: now,
	}))

	rows, err := s.AllEmbeddings(ctx, "session")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, s.DeleteEmbeddingsBySource(ctx, "session", "sess-1"))
	rows, err = s.AllEmbeddings(ctx, "session")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestKnowledgeGraphNeighbors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertEdge(ctx, KnowledgeEdge{EntityA: "cogcore", Relation: "depends_on", EntityB: "sqlite", Weight: 1, UpdatedAt: now}))
	require.NoError(t, s.UpsertEdge(ctx, KnowledgeEdge{EntityA: "cogcore", Relation: "depends_on", EntityB: "sqlite", Weight: 1, UpdatedAt: now}))

	edges, err := s.Neighbors(ctx, "cogcore")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, 2.0, edges[0].Weight)
}

func TestNidraStateSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state, err := s.LoadNidraState(ctx)
	require.NoError(t, err)
	state.CurrentState = "DREAMING"
	state.ConsolidationPhase = "lexical-pass"
	state.ConsolidationProgress = 0.25
	state.UpdatedAtMillis = time.Now().UnixMilli()

	require.NoError(t, s.SaveNidraState(ctx, state))

	reloaded, err := s.LoadNidraState(ctx)
	require.NoError(t, err)
	require.Equal(t, "DREAMING", reloaded.CurrentState)
	require.Equal(t, "lexical-pass", reloaded.ConsolidationPhase)
	require.InDelta(t, 0.25, reloaded.ConsolidationProgress, 1e-9)
}

func TestRegistryEventsRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRegistryEvent(ctx, "srv-1", "health-ok", "{}"))
	require.NoError(t, s.RecordRegistryEvent(ctx, "srv-1", "state-changed", `{"from":"starting","to":"ready"}`))

	events, err := s.RecentRegistryEvents(ctx, "srv-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "state-changed", events[0].EventType)
}
