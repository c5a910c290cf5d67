// Package chetana implements Component E: the cognitive state engine. Four
// coupled subsystems (Bhava, Dhyana, Atma-Darshana, Sankalpa) each track a
// bounded slice of per-agent state and are driven synchronously, in-process,
// by the ChetanaController on every turn.
package chetana

import (
	"cogcore/internal/logging"
)

// Affect holds the four Bhava scalars, all clamped to their declared
// intervals after every mutation (§3.5).
type Affect struct {
	Valence     float64 `json:"valence"`     // [-1, 1]
	Arousal     float64 `json:"arousal"`     // [0, 1]
	Confidence  float64 `json:"confidence"`  // [0, 1]
	Frustration float64 `json:"frustration"` // [0, 1]
}

// BhavaConfig carries the tunables the engine is built from.
type BhavaConfig struct {
	FrustrationPerError      float64
	FrustrationPerCorrection float64
	FrustrationPerSuccess    float64
	FrustrationAlertThresh   float64
	DecayRate                float64
}

// Bhava tracks affect. Its zero value is a neutral state: valence 0,
// arousal/confidence/frustration 0.
type Bhava struct {
	cfg   BhavaConfig
	state Affect

	rollingSuccesses int
	rollingFailures  int

	onFrustrated func(level float64)
}

// NewBhava constructs an affect tracker at the neutral baseline.
func NewBhava(cfg BhavaConfig) *Bhava {
	return &Bhava{cfg: cfg}
}

// OnFrustrated registers a callback fired when frustration crosses the
// configured alert threshold (chetana:frustrated, §4.4.1).
func (b *Bhava) OnFrustrated(fn func(level float64)) {
	b.onFrustrated = fn
}

// OnToolResult updates affect for one tool-execution outcome.
func (b *Bhava) OnToolResult(isError, isCorrection bool) {
	wasBelowThreshold := b.state.Frustration < b.cfg.FrustrationAlertThresh

	switch {
	case isCorrection:
		b.state.Frustration += b.cfg.FrustrationPerCorrection
		b.rollingFailures++
	case isError:
		b.state.Frustration += b.cfg.FrustrationPerError
		b.rollingFailures++
	default:
		b.state.Frustration -= b.cfg.FrustrationPerSuccess
		b.rollingSuccesses++
	}
	b.state.Arousal += 0.2

	total := b.rollingSuccesses + b.rollingFailures
	if total > 0 {
		b.state.Valence = float64(b.rollingSuccesses-b.rollingFailures) / float64(total)
	}

	b.clamp()

	if wasBelowThreshold && b.state.Frustration >= b.cfg.FrustrationAlertThresh {
		logging.ChetanaDebug("chetana:frustrated level=%.2f", b.state.Frustration)
		if b.onFrustrated != nil {
			b.onFrustrated(b.state.Frustration)
		}
	}
}

// DecayTurn moves every scalar toward its neutral base by decayRate·(base−current).
func (b *Bhava) DecayTurn() {
	b.state.Valence += b.cfg.DecayRate * (0 - b.state.Valence)
	b.state.Arousal += b.cfg.DecayRate * (0 - b.state.Arousal)
	b.state.Confidence += b.cfg.DecayRate * (0 - b.state.Confidence)
	b.state.Frustration += b.cfg.DecayRate * (0 - b.state.Frustration)
	b.clamp()
}

// UpdateConfidence sets confidence directly to an externally computed rate.
func (b *Bhava) UpdateConfidence(rate float64) {
	b.state.Confidence = rate
	b.clamp()
}

// Affect returns a copy of the current scalars.
func (b *Bhava) Affect() Affect {
	return b.state
}

func (b *Bhava) clamp() {
	b.state.Valence = clampFloat(b.state.Valence, -1, 1)
	b.state.Arousal = clampFloat(b.state.Arousal, 0, 1)
	b.state.Confidence = clampFloat(b.state.Confidence, 0, 1)
	b.state.Frustration = clampFloat(b.state.Frustration, 0, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BhavaSnapshot is the serializable form of Bhava (§4.4.5 "plain structure").
type BhavaSnapshot struct {
	State            Affect `json:"state"`
	RollingSuccesses int    `json:"rolling_successes"`
	RollingFailures  int    `json:"rolling_failures"`
}

// Serialize exports the engine's primitive state.
func (b *Bhava) Serialize() BhavaSnapshot {
	return BhavaSnapshot{State: b.state, RollingSuccesses: b.rollingSuccesses, RollingFailures: b.rollingFailures}
}

// Deserialize reconstructs an equivalent engine from a snapshot.
func DeserializeBhava(cfg BhavaConfig, snap BhavaSnapshot) *Bhava {
	b := NewBhava(cfg)
	b.state = snap.State
	b.rollingSuccesses = snap.RollingSuccesses
	b.rollingFailures = snap.RollingFailures
	return b
}
