package chetana

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cogcore/internal/config"
)

func testChetanaConfig() config.ChetanaConfig {
	return config.ChetanaConfig{
		FrustrationPerError:      0.2,
		FrustrationPerCorrection: 0.3,
		FrustrationPerSuccess:    0.1,
		FrustrationAlertThresh:   0.6,
		DecayRate:                0.1,
		ConceptCap:               100,
		AttentionFocusWindow:     5,
		TrendLookback:            3,
		TrendThreshold:           0.1,
		FailureStreakLimit:       3,
		MaxLimitations:           10,
		CalibrationWindow:        20,
		DedupThreshold:           0.5,
		KeywordMatchThreshold:    2,
		ProgressIncrement:        0.2,
		GoalAbandonmentThreshold: 4,
		MaxIntentions:            50,
		MaxEvidencePerIntention:  10,
		MaxSteeringSuggestions:   3,
	}
}

func TestBeforeTurnReturnsSnapshotWithExtractedIntentions(t *testing.T) {
	c := NewController(testChetanaConfig())
	ctx := c.BeforeTurn("Let's implement retry backoff for the store layer.")

	require.Contains(t, ctx.ActiveIntentions, "let's implement retry backoff for the store layer")
	require.Equal(t, 0.0, ctx.Affect.Frustration)
}

func TestAfterToolExecutionFeedsAllSubsystems(t *testing.T) {
	c := NewController(testChetanaConfig())
	c.BeforeTurn("Let's implement retry backoff for the store layer.")
	c.AfterToolExecution("edit", true, 12, "updated retry backoff logic in the store layer package")

	ctx := c.snapshot()
	require.Contains(t, ctx.AttentionTools, "edit")
}

func TestSteeringSuggestionsFireOnHighFrustration(t *testing.T) {
	c := NewController(testChetanaConfig())
	for i := 0; i < 5; i++ {
		c.AfterToolExecution("edit", false, 10, "")
	}

	ctx := c.snapshot()
	found := false
	for _, s := range ctx.SteeringSuggestions {
		if s != "" {
			found = true
		}
	}
	require.True(t, found)
	require.LessOrEqual(t, len(ctx.SteeringSuggestions), testChetanaConfig().MaxSteeringSuggestions)
}

func TestAfterTurnDecaysAffect(t *testing.T) {
	c := NewController(testChetanaConfig())
	c.AfterToolExecution("edit", false, 10, "")
	before := c.bhava.Affect().Frustration

	c.AfterTurn()
	after := c.bhava.Affect().Frustration

	require.Less(t, after, before)
}

func TestControllerSerializeDeserializeRoundTrips(t *testing.T) {
	cfg := testChetanaConfig()
	c := NewController(cfg)
	c.BeforeTurn("Let's implement retry backoff for the store layer.")
	c.AfterToolExecution("edit", true, 12, "updated retry backoff logic in the store layer package")

	snap := c.Serialize()
	restored := DeserializeController(cfg, snap)

	require.Equal(t, c.bhava.Affect(), restored.bhava.Affect())
	require.Equal(t, c.messageSeq, restored.messageSeq)
}
