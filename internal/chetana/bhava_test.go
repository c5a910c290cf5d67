package chetana

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testBhavaConfig() BhavaConfig {
	return BhavaConfig{
		FrustrationPerError:      0.2,
		FrustrationPerCorrection: 0.3,
		FrustrationPerSuccess:    0.15,
		FrustrationAlertThresh:   0.6,
		DecayRate:                0.25,
	}
}

func TestOnToolResultRaisesFrustrationOnError(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	b.OnToolResult(true, false)

	require.InDelta(t, 0.2, b.Affect().Frustration, 1e-9)
	require.InDelta(t, 0.2, b.Affect().Arousal, 1e-9)
}

func TestOnToolResultCorrectionWeighsMoreThanError(t *testing.T) {
	errCase := NewBhava(testBhavaConfig())
	errCase.OnToolResult(true, false)

	correctionCase := NewBhava(testBhavaConfig())
	correctionCase.OnToolResult(false, true)

	require.Greater(t, correctionCase.Affect().Frustration, errCase.Affect().Frustration)
}

func TestOnToolResultSuccessLowersFrustrationAndRaisesValence(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	b.OnToolResult(false, false)

	require.Less(t, b.Affect().Frustration, 0.0+1e-9)
	require.Equal(t, 0.0, b.Affect().Frustration) // clamped at floor
	require.InDelta(t, 1.0, b.Affect().Valence, 1e-9)
}

func TestOnFrustratedFiresExactlyOnThresholdCrossing(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	fired := 0
	b.OnFrustrated(func(level float64) { fired++ })

	b.OnToolResult(true, false) // 0.2
	b.OnToolResult(true, false) // 0.4
	require.Equal(t, 0, fired)

	b.OnToolResult(true, false) // 0.6 crosses 0.6 threshold
	require.Equal(t, 1, fired)

	b.OnToolResult(true, false) // stays above threshold, no re-fire
	require.Equal(t, 1, fired)
}

func TestDecayTurnMovesScalarsTowardNeutral(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	b.OnToolResult(true, false)
	before := b.Affect().Frustration

	b.DecayTurn()
	after := b.Affect().Frustration

	require.Less(t, after, before)
	require.Greater(t, after, 0.0)
}

func TestUpdateConfidenceClampsToRange(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	b.UpdateConfidence(1.5)
	require.Equal(t, 1.0, b.Affect().Confidence)

	b.UpdateConfidence(-0.5)
	require.Equal(t, 0.0, b.Affect().Confidence)
}

func TestBhavaSerializeDeserializeRoundTrips(t *testing.T) {
	b := NewBhava(testBhavaConfig())
	b.OnToolResult(true, false)
	b.OnToolResult(false, false)

	snap := b.Serialize()
	restored := DeserializeBhava(testBhavaConfig(), snap)

	require.Equal(t, b.Affect(), restored.Affect())
	require.Equal(t, b.rollingSuccesses, restored.rollingSuccesses)
	require.Equal(t, b.rollingFailures, restored.rollingFailures)
}
