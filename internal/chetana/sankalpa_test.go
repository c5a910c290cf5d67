package chetana

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSankalpaConfig() SankalpaConfig {
	return SankalpaConfig{
		DedupThreshold:           0.5,
		KeywordMatchThreshold:    2,
		ProgressIncrement:        0.1,
		GoalAbandonmentThreshold: 3,
		MaxIntentions:            10,
		MaxEvidencePerIntention:  5,
	}
}

func TestExtractGoalsMatchesKnownVerbPatterns(t *testing.T) {
	goals := ExtractGoals("Let's implement retries and add backoff. I want to fix the flaky test.")
	require.Contains(t, goals, "let's implement retries")
	require.Contains(t, goals, "add backoff")
	require.Contains(t, goals, "want to fix the flaky test")
}

func TestObserveCreatesNewIntentionForDistinctGoal(t *testing.T) {
	s := NewSankalpa(testSankalpaConfig())
	ids := s.Observe("Let's implement retry backoff for the store layer.")
	require.Len(t, ids, 1)

	it, ok := s.Get(ids[0])
	require.True(t, ok)
	require.Equal(t, StatusActive, it.Status)
	require.Equal(t, 1, it.MentionCount)
}

func TestObserveFoldsSimilarGoalAndEscalatesPriority(t *testing.T) {
	s := NewSankalpa(testSankalpaConfig())
	first := s.Observe("Let's implement retry backoff for the store layer.")
	require.Len(t, first, 1)

	second := s.Observe("I want to implement retry backoff in the store layer.")
	require.Equal(t, first[0], second[0])

	it, _ := s.Get(first[0])
	require.Equal(t, 2, it.MentionCount)

	s.Observe("Let's implement retry backoff for the store layer.")
	it, _ = s.Get(first[0])
	require.Equal(t, 3, it.MentionCount)
	require.Equal(t, PriorityHigh, it.Priority)
}

func TestOnToolResultAdvancesProgressOnKeywordMatch(t *testing.T) {
	s := NewSankalpa(testSankalpaConfig())
	ids := s.Observe("Let's implement retry backoff for the store layer.")
	id := ids[0]

	s.OnToolResult("edit", "updated retry backoff logic in the store layer package")

	it, _ := s.Get(id)
	require.InDelta(t, 0.1, it.Progress, 1e-9)
	require.Len(t, it.Evidence, 1)
}

func TestOnToolResultAchievesGoalAtFullProgress(t *testing.T) {
	cfg := testSankalpaConfig()
	cfg.ProgressIncrement = 1.0
	s := NewSankalpa(cfg)
	var changed []string
	s.OnGoalChanged(func(id string) { changed = append(changed, id) })

	ids := s.Observe("Let's implement retry backoff for the store layer.")
	s.OnToolResult("edit", "implemented retry backoff in store layer")

	it, _ := s.Get(ids[0])
	require.Equal(t, StatusAchieved, it.Status)
	require.Equal(t, 1.0, it.Progress)
	require.Contains(t, changed, ids[0])
}

func TestEndTurnPausesThenAbandonsStaleGoal(t *testing.T) {
	s := NewSankalpa(testSankalpaConfig())
	ids := s.Observe("Let's implement retry backoff for the store layer.")
	id := ids[0]

	for i := 0; i < 3; i++ {
		s.EndTurn()
	}
	it, _ := s.Get(id)
	require.Equal(t, StatusPaused, it.Status)

	for i := 0; i < 3; i++ {
		s.EndTurn()
	}
	it, _ = s.Get(id)
	require.Equal(t, StatusAbandoned, it.Status)
}

func TestEnforceCapacityEvictsAbandonedBeforeActive(t *testing.T) {
	cfg := testSankalpaConfig()
	cfg.MaxIntentions = 2
	cfg.GoalAbandonmentThreshold = 1
	s := NewSankalpa(cfg)

	idsA := s.Observe("Let's implement retry backoff.")
	for i := 0; i < 4; i++ {
		s.EndTurn()
	}
	it, ok := s.Get(idsA[0])
	require.True(t, ok)
	require.Equal(t, StatusAbandoned, it.Status)

	s.Observe("Let's fix the flaky test.")
	s.Observe("Let's refactor the session store.")

	require.LessOrEqual(t, len(s.intentions), cfg.MaxIntentions)
	_, stillThere := s.Get(idsA[0])
	require.False(t, stillThere) // abandoned goal is the first evicted once capacity overflows
}

func TestSankalpaSerializeDeserializeRoundTrips(t *testing.T) {
	s := NewSankalpa(testSankalpaConfig())
	ids := s.Observe("Let's implement retry backoff for the store layer.")
	s.OnToolResult("edit", "updated retry backoff logic in the store layer package")

	snap := s.Serialize()
	restored := DeserializeSankalpa(testSankalpaConfig(), snap)

	origIt, _ := s.Get(ids[0])
	restoredIt, ok := restored.Get(ids[0])
	require.True(t, ok)
	require.Equal(t, origIt.Progress, restoredIt.Progress)
	require.Equal(t, origIt.MentionCount, restoredIt.MentionCount)
}
