package nidra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cogcore/internal/session"
	"cogcore/internal/store"
)

func newTestChitragupta(t *testing.T) (string, *Chitragupta) {
	t.Helper()
	home := t.TempDir()
	idx, err := store.Open(context.Background(), home, "sessions.db", "vectors.db", "agent.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	sessions := session.New(home, idx)
	cfg := Config{
		IdleThreshold:      time.Hour,
		HeartbeatInterval:  time.Hour,
		BackfillOnStartup:  false,
		MaxBackfillDays:    7,
		RetentionMonths:    6,
		DailyConsolidation: "0 2 * * *",
		MonthlyReport:      "0 3 1 * *",
		YearlyReport:       "0 4 1 1 *",
	}
	return home, NewChitragupta(home, idx, sessions, cfg)
}

func TestConsolidateDateWritesDayFileAndGlobalMemory(t *testing.T) {
	ctx := context.Background()
	home, c := newTestChitragupta(t)

	sess, err := c.sessions.CreateSession(ctx, "/home/dev/proj", "agent-1", "model-1", "", "t")
	require.NoError(t, err)
	require.NoError(t, c.sessions.AddTurn(ctx, sess.Meta.ID, "/home/dev/proj", session.Turn{
		TurnNumber: 1, Role: session.RoleUser,
		Content:   "We decided to always vendor dependencies in this repo.",
		CreatedAt: time.Now().UTC().UnixMilli(),
	}))

	row, err := c.idx.GetSession(ctx, sess.Meta.ID)
	require.NoError(t, err)
	row.UpdatedAt = time.Now().UTC()
	require.NoError(t, c.idx.UpsertSession(ctx, row))

	result, err := c.ConsolidateDate(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 1, result.SessionsProcessed)
	require.Equal(t, 1, result.ProjectCount)
	require.Equal(t, 1, result.ExtractedFacts)

	dayPath := dayFilePath(home, time.Now().UTC())
	data, err := os.ReadFile(dayPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "vendor dependencies")

	globalPath := filepath.Join(home, "memory", "global.md")
	globalData, err := os.ReadFile(globalPath)
	require.NoError(t, err)
	require.Contains(t, string(globalData), "vendor dependencies")
	require.Regexp(t, `\[\d{4}-\d{2}-\d{2}\]`, string(globalData))
}

func TestConsolidateDateShortCircuitsConcurrentInvocations(t *testing.T) {
	ctx := context.Background()
	_, c := newTestChitragupta(t)

	c.consolidating = 1
	defer func() { c.consolidating = 0 }()

	result, err := c.ConsolidateDate(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Zero(t, result.SessionsProcessed)
}
