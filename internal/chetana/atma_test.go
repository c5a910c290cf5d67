package chetana

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testAtmaConfig() AtmaConfig {
	return AtmaConfig{
		TrendLookback:      3,
		TrendThreshold:     0.1,
		FailureStreakLimit: 3,
		MaxLimitations:     5,
		CalibrationWindow:  10,
	}
}

func TestRecordToolResultTracksSuccessRate(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordToolResult("grep", true, 10, nil)
	a.RecordToolResult("grep", true, 10, nil)
	a.RecordToolResult("grep", false, 10, nil)

	require.InDelta(t, 2.0/3.0, a.tools["grep"].SuccessRate(), 1e-9)
}

func TestFailureStreakLimitProducesLimitation(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordToolResult("write_file", false, 5, nil)
	a.RecordToolResult("write_file", false, 5, nil)
	a.RecordToolResult("write_file", false, 5, nil)

	limitations := a.Limitations()
	require.Len(t, limitations, 1)
	require.Contains(t, limitations[0], "write_file")
	require.Contains(t, limitations[0], "3 consecutive failures")
}

func TestLimitationsDedupedAndFIFOCapped(t *testing.T) {
	cfg := testAtmaConfig()
	cfg.MaxLimitations = 1
	a := NewAtmaDarshana(cfg)

	a.RecordToolResult("a", false, 1, nil)
	a.RecordToolResult("a", false, 1, nil)
	a.RecordToolResult("a", false, 1, nil)
	a.RecordToolResult("b", false, 1, nil)
	a.RecordToolResult("b", false, 1, nil)
	a.RecordToolResult("b", false, 1, nil)

	require.Len(t, a.Limitations(), 1)
	require.Contains(t, a.Limitations()[0], "Tool b")
}

func TestRecoveryLengthRecordedOnSuccessAfterStreak(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordToolResult("edit", false, 1, nil)
	a.RecordToolResult("edit", false, 1, nil)
	a.RecordToolResult("edit", true, 1, nil)

	require.Equal(t, []int{2}, a.recoveryLengths)
}

func TestTrendClassifiesImprovingAndDeclining(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	// prior window: 3 failures
	for i := 0; i < 3; i++ {
		a.RecordToolResult("t", false, 1, nil)
	}
	// recent window: 3 successes
	for i := 0; i < 3; i++ {
		a.RecordToolResult("t", true, 1, nil)
	}

	require.Equal(t, "improving", a.Trend("t"))

	// 3 failures push the successes into the prior window
	for i := 0; i < 3; i++ {
		a.RecordToolResult("t", false, 1, nil)
	}
	require.Equal(t, "declining", a.Trend("t"))
}

func TestTrendInsufficientDataBeforeEnoughSamples(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordToolResult("t", true, 1, nil)
	require.Equal(t, "insufficient-data", a.Trend("t"))
}

func TestCalibrationRatioReflectsOverconfidence(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	highPredicted := 0.9
	a.RecordToolResult("t", false, 1, &highPredicted)
	a.RecordToolResult("t", true, 1, &highPredicted)

	require.Greater(t, a.CalibrationRatio(), 1.0)
}

func TestWilsonIntervalWidensForFewSamples(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordToolResult("t", true, 1, nil)
	lower, upper := a.WilsonInterval("t")

	require.Less(t, lower, 0.5)
	require.Greater(t, upper, 0.5)
}

func TestFingerprintReflectsToolDensityAndExploration(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordTurn()
	a.RecordTurn()
	a.RecordToolResult("grep", true, 1, nil)
	a.RecordToolResult("write_file", true, 1, nil)

	fp := a.Fingerprint()
	require.InDelta(t, 1.0, fp.ToolDensity, 1e-9)
	require.InDelta(t, 1.0, fp.ExplorationVsExploitation, 1e-9)
}

func TestAtmaSerializeDeserializeRoundTrips(t *testing.T) {
	a := NewAtmaDarshana(testAtmaConfig())
	a.RecordTurn()
	a.RecordToolResult("grep", true, 12.5, nil)
	a.RecordToolResult("grep", false, 8, nil)
	a.RecordToolResult("grep", false, 8, nil)
	a.RecordToolResult("grep", false, 8, nil)

	snap := a.Serialize()
	restored := DeserializeAtmaDarshana(testAtmaConfig(), snap)

	require.Equal(t, a.tools["grep"].Total, restored.tools["grep"].Total)
	require.Equal(t, a.Limitations(), restored.Limitations())
	require.Equal(t, a.turnCount, restored.turnCount)
}
