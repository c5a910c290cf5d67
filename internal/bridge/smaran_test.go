package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRememberInfersPreferenceCategory(t *testing.T) {
	s := NewSmaran(t.TempDir())
	e, err := s.Remember("I prefer dark mode in the editor", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "preference", e.Category)
}

func TestRememberInfersRuleCategory(t *testing.T) {
	s := NewSmaran(t.TempDir())
	e, err := s.Remember("always run tests before pushing", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "rule", e.Category)
}

func TestRememberInfersDecisionCategory(t *testing.T) {
	s := NewSmaran(t.TempDir())
	e, err := s.Remember("we decided to use postgres for this project", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "decision", e.Category)
}

func TestRememberDefaultsToFactCategory(t *testing.T) {
	s := NewSmaran(t.TempDir())
	e, err := s.Remember("the staging server runs on port 8443", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "fact", e.Category)
}

func TestForgetRemovesMatchingEntriesAndReturnsCount(t *testing.T) {
	s := NewSmaran(t.TempDir())
	_, err := s.Remember("I prefer tabs over spaces", "sess-1")
	require.NoError(t, err)
	_, err = s.Remember("I prefer dark mode", "sess-1")
	require.NoError(t, err)
	_, err = s.Remember("the staging server runs on port 8443", "sess-1")
	require.NoError(t, err)

	removed, err := s.Forget("prefer")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := s.List("")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestForgetReturnsZeroWhenNoMatch(t *testing.T) {
	s := NewSmaran(t.TempDir())
	_, err := s.Remember("the staging server runs on port 8443", "sess-1")
	require.NoError(t, err)

	removed, err := s.Forget("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRecallCapsAtFive(t *testing.T) {
	s := NewSmaran(t.TempDir())
	for i := 0; i < 7; i++ {
		_, err := s.Remember("note about caching behavior", "sess-1")
		require.NoError(t, err)
	}
	results, err := s.Recall("caching")
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestListFiltersByCategoryAndCapsAtTwenty(t *testing.T) {
	s := NewSmaran(t.TempDir())
	for i := 0; i < 25; i++ {
		_, err := s.Remember("always validate input at the boundary", "sess-1")
		require.NoError(t, err)
	}
	_, err := s.Remember("the staging server runs on port 8443", "sess-1")
	require.NoError(t, err)

	rules, err := s.List("rule")
	require.NoError(t, err)
	assert.Len(t, rules, 20)

	facts, err := s.List("fact")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestListMostRecentFirst(t *testing.T) {
	s := NewSmaran(t.TempDir())
	first, err := s.Remember("the staging server runs on port 8443", "sess-1")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Remember("the production server runs on port 9443", "sess-1")
	require.NoError(t, err)

	entries, err := s.List("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestDecayedConfidenceFloorsAtMinimum(t *testing.T) {
	e := SmaranEntry{Confidence: 1.0, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}
	decayed := e.decayedConfidence(time.Now())
	assert.Equal(t, smaranMinConfidence, decayed)
}

func TestDecayedConfidenceUndecayedAtCreation(t *testing.T) {
	now := time.Now()
	e := SmaranEntry{Confidence: 1.0, CreatedAt: now}
	decayed := e.decayedConfidence(now)
	assert.InDelta(t, 1.0, decayed, 0.001)
}

func TestSnapshotWithDecayEmptyWhenNoEntries(t *testing.T) {
	s := NewSmaran(t.TempDir())
	snapshot, err := s.snapshotWithDecay()
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}
