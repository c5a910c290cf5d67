package chetana

import (
	"fmt"
	"math"
	"sort"
)

// AtmaConfig carries the tunables the self-model is built from.
type AtmaConfig struct {
	TrendLookback       int
	TrendThreshold      float64
	FailureStreakLimit  int
	MaxLimitations      int
	CalibrationWindow   int
}

// ToolModel is the running statistics kept per tool name.
type ToolModel struct {
	Successes           int
	Total               int
	ConsecutiveFailures int
	RecentOutcomes      []bool // bounded ring, newest last
	LatencySumMillis    float64
	LatencyCount        int
}

// SuccessRate returns the tool's observed success fraction, 0 if unused.
func (m *ToolModel) SuccessRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Successes) / float64(m.Total)
}

// wilsonInterval returns the 95% Wilson score confidence interval (z=1.96)
// around the tool's observed success rate (§4.4.3).
func (m *ToolModel) wilsonInterval() (lower, upper float64) {
	if m.Total == 0 {
		return 0, 0
	}
	const z = 1.96
	n := float64(m.Total)
	p := m.SuccessRate()
	z2 := z * z
	center := (p + z2/(2*n)) / (1 + z2/n)
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / (1 + z2/n)
	return center - margin, center + margin
}

// CalibrationSample pairs a predicted success rate with the observed outcome.
type CalibrationSample struct {
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
}

// AtmaDarshana is the self-model subsystem: per-tool reliability tracking,
// trend detection, calibration, and derived limitations (§3.5, §4.4.3).
type AtmaDarshana struct {
	cfg AtmaConfig

	tools map[string]*ToolModel

	calibration []CalibrationSample

	recoveryLengths []int

	limitations     []string
	limitationSet   map[string]bool

	turnCount int
}

// NewAtmaDarshana constructs an empty self-model.
func NewAtmaDarshana(cfg AtmaConfig) *AtmaDarshana {
	return &AtmaDarshana{
		cfg:           cfg,
		tools:         make(map[string]*ToolModel),
		limitationSet: make(map[string]bool),
	}
}

// RecordToolResult folds one tool invocation outcome into the self-model.
// predictedSuccessRate is optional; pass nil when no prediction was made.
func (a *AtmaDarshana) RecordToolResult(tool string, success bool, latencyMillis float64, predictedSuccessRate *float64) {
	m, ok := a.tools[tool]
	if !ok {
		m = &ToolModel{}
		a.tools[tool] = m
	}

	priorStreak := m.ConsecutiveFailures

	m.Total++
	m.LatencySumMillis += latencyMillis
	m.LatencyCount++
	if success {
		m.Successes++
		m.ConsecutiveFailures = 0
		if priorStreak > 0 {
			a.recoveryLengths = append(a.recoveryLengths, priorStreak)
		}
	} else {
		m.ConsecutiveFailures++
	}

	maxOutcomes := 2 * a.cfg.TrendLookback
	if maxOutcomes <= 0 {
		maxOutcomes = 20
	}
	m.RecentOutcomes = append(m.RecentOutcomes, success)
	if len(m.RecentOutcomes) > maxOutcomes {
		m.RecentOutcomes = m.RecentOutcomes[len(m.RecentOutcomes)-maxOutcomes:]
	}

	if predictedSuccessRate != nil {
		actual := 0.0
		if success {
			actual = 1.0
		}
		a.calibration = append(a.calibration, CalibrationSample{Predicted: *predictedSuccessRate, Actual: actual})
		if len(a.calibration) > a.cfg.CalibrationWindow && a.cfg.CalibrationWindow > 0 {
			a.calibration = a.calibration[len(a.calibration)-a.cfg.CalibrationWindow:]
		}
	}

	if m.ConsecutiveFailures >= a.cfg.FailureStreakLimit && a.cfg.FailureStreakLimit > 0 {
		a.addLimitation(fmt.Sprintf("Tool %s: %d consecutive failures", tool, m.ConsecutiveFailures))
	}
}

func (a *AtmaDarshana) addLimitation(text string) {
	if a.limitationSet[text] {
		return
	}
	a.limitationSet[text] = true
	a.limitations = append(a.limitations, text)
	if a.cfg.MaxLimitations > 0 && len(a.limitations) > a.cfg.MaxLimitations {
		oldest := a.limitations[0]
		a.limitations = a.limitations[1:]
		delete(a.limitationSet, oldest)
	}
}

// RecordTurn marks the passage of one conversational turn, used as the
// denominator for tool_density in the style fingerprint.
func (a *AtmaDarshana) RecordTurn() {
	a.turnCount++
}

// Trend classifies a tool's recent trajectory by comparing the success rate
// of the newest TrendLookback outcomes against the TrendLookback before them.
func (a *AtmaDarshana) Trend(tool string) string {
	m, ok := a.tools[tool]
	if !ok || a.cfg.TrendLookback <= 0 || len(m.RecentOutcomes) < 2*a.cfg.TrendLookback {
		return "insufficient-data"
	}
	n := len(m.RecentOutcomes)
	recent := m.RecentOutcomes[n-a.cfg.TrendLookback:]
	prior := m.RecentOutcomes[n-2*a.cfg.TrendLookback : n-a.cfg.TrendLookback]

	diff := rateOf(recent) - rateOf(prior)
	switch {
	case diff > a.cfg.TrendThreshold:
		return "improving"
	case diff < -a.cfg.TrendThreshold:
		return "declining"
	default:
		return "stable"
	}
}

func rateOf(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	successes := 0
	for _, o := range outcomes {
		if o {
			successes++
		}
	}
	return float64(successes) / float64(len(outcomes))
}

// CalibrationRatio returns avgPredicted/avgActual over the bounded
// calibration window; 1.0 means predictions track reality, >1 means
// overconfidence, <1 means underconfidence. Returns 1.0 with no samples, or
// when no sampled outcome succeeded (avgActual is 0).
func (a *AtmaDarshana) CalibrationRatio() float64 {
	if len(a.calibration) == 0 {
		return 1.0
	}
	var predictedSum, actualSum float64
	for _, s := range a.calibration {
		predictedSum += s.Predicted
		actualSum += s.Actual
	}
	if actualSum == 0 {
		return 1.0
	}
	return predictedSum / actualSum
}

// LearningVelocity is the mean, across all tools with enough history, of
// (recent rate − prior rate) — a signed scalar summarizing whether the
// agent is trending toward or away from reliability overall.
func (a *AtmaDarshana) LearningVelocity() float64 {
	var sum float64
	var count int
	for tool, m := range a.tools {
		if a.cfg.TrendLookback <= 0 || len(m.RecentOutcomes) < 2*a.cfg.TrendLookback {
			continue
		}
		n := len(m.RecentOutcomes)
		recent := m.RecentOutcomes[n-a.cfg.TrendLookback:]
		prior := m.RecentOutcomes[n-2*a.cfg.TrendLookback : n-a.cfg.TrendLookback]
		sum += rateOf(recent) - rateOf(prior)
		count++
		_ = tool
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// StyleFingerprint summarizes working style as three bounded scalars.
type StyleFingerprint struct {
	ExplorationVsExploitation float64 `json:"exploration_vs_exploitation"`
	ToolDensity               float64 `json:"tool_density"`
	ErrorRecoverySpeed        float64 `json:"error_recovery_speed"`
}

// Fingerprint computes the current style fingerprint from tool-usage history.
func (a *AtmaDarshana) Fingerprint() StyleFingerprint {
	totalInvocations := 0
	for _, m := range a.tools {
		totalInvocations += m.Total
	}

	exploration := 0.0
	if totalInvocations > 0 {
		exploration = clampFloat(float64(len(a.tools))/float64(totalInvocations), 0, 1)
	}

	density := 0.0
	if a.turnCount > 0 {
		density = float64(totalInvocations) / float64(a.turnCount)
	}

	recoverySpeed := 0.0
	if len(a.recoveryLengths) > 0 {
		var sum int
		for _, l := range a.recoveryLengths {
			sum += l
		}
		avg := float64(sum) / float64(len(a.recoveryLengths))
		recoverySpeed = 1 / (1 + avg)
	}

	return StyleFingerprint{
		ExplorationVsExploitation: exploration,
		ToolDensity:               density,
		ErrorRecoverySpeed:        recoverySpeed,
	}
}

// WilsonInterval returns the 95% confidence interval around a tool's
// observed success rate, widening automatically for low sample counts.
func (a *AtmaDarshana) WilsonInterval(tool string) (lower, upper float64) {
	m, ok := a.tools[tool]
	if !ok {
		return 0, 0
	}
	return m.wilsonInterval()
}

// Limitations returns the current, deduplicated, FIFO-capped limitation list.
func (a *AtmaDarshana) Limitations() []string {
	out := make([]string, len(a.limitations))
	copy(out, a.limitations)
	return out
}

// ToolNames returns tracked tool names sorted alphabetically, for stable
// reporting order.
func (a *AtmaDarshana) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary renders a short human-readable self-assessment line, used as the
// selfAssessment field of ChetanaContext.
func (a *AtmaDarshana) Summary() string {
	if len(a.tools) == 0 {
		return "no tool usage observed yet"
	}
	fp := a.Fingerprint()
	return fmt.Sprintf("tools=%d density=%.2f exploration=%.2f recovery=%.2f calibration=%.2f",
		len(a.tools), fp.ToolDensity, fp.ExplorationVsExploitation, fp.ErrorRecoverySpeed, a.CalibrationRatio())
}

// AtmaSnapshot is the serializable form of AtmaDarshana.
type AtmaSnapshot struct {
	Tools           map[string]*ToolModel `json:"tools"`
	Calibration     []CalibrationSample   `json:"calibration"`
	RecoveryLengths []int                 `json:"recovery_lengths"`
	Limitations     []string              `json:"limitations"`
	TurnCount       int                   `json:"turn_count"`
}

// Serialize exports the engine's primitive state.
func (a *AtmaDarshana) Serialize() AtmaSnapshot {
	return AtmaSnapshot{
		Tools:           a.tools,
		Calibration:     a.calibration,
		RecoveryLengths: a.recoveryLengths,
		Limitations:     a.limitations,
		TurnCount:       a.turnCount,
	}
}

// DeserializeAtmaDarshana reconstructs an equivalent engine from a snapshot.
func DeserializeAtmaDarshana(cfg AtmaConfig, snap AtmaSnapshot) *AtmaDarshana {
	a := NewAtmaDarshana(cfg)
	if snap.Tools != nil {
		a.tools = snap.Tools
	}
	a.calibration = snap.Calibration
	a.recoveryLengths = snap.RecoveryLengths
	for _, l := range snap.Limitations {
		a.limitationSet[l] = true
	}
	a.limitations = snap.Limitations
	a.turnCount = snap.TurnCount
	return a
}
