package chetana

import (
	"fmt"

	"cogcore/internal/config"
	"cogcore/internal/logging"
)

// ChetanaContext is the bundle a controller hands back to the caller ahead
// of a turn: a snapshot of affect, attention, self-assessment, and the
// intentions/suggestions worth steering the turn around (§4.4, §4.4.6).
type ChetanaContext struct {
	Affect              Affect   `json:"affect"`
	AttentionConcepts   []string `json:"attention_concepts"`
	AttentionTools      []string `json:"attention_tools"`
	SelfAssessment      string   `json:"self_assessment"`
	ActiveIntentions    []string `json:"active_intentions"`
	SteeringSuggestions []string `json:"steering_suggestions"`
}

// Controller wires Bhava, Dhyana, Atma-Darshana, and Sankalpa into a single
// per-turn interface (§4.4.6). It is driven synchronously; none of its
// methods are safe for unsynchronized concurrent use.
type Controller struct {
	cfg config.ChetanaConfig

	bhava    *Bhava
	dhyana   *Dhyana
	atma     *AtmaDarshana
	sankalpa *Sankalpa

	messageSeq int
}

// NewController builds a controller with all four subsystems at their
// neutral baseline.
func NewController(cfg config.ChetanaConfig) *Controller {
	c := &Controller{
		cfg: cfg,
		bhava: NewBhava(BhavaConfig{
			FrustrationPerError:      cfg.FrustrationPerError,
			FrustrationPerCorrection: cfg.FrustrationPerCorrection,
			FrustrationPerSuccess:    cfg.FrustrationPerSuccess,
			FrustrationAlertThresh:   cfg.FrustrationAlertThresh,
			DecayRate:                cfg.DecayRate,
		}),
		dhyana: NewDhyana(cfg.AttentionFocusWindow, cfg.DecayRate, cfg.ConceptCap),
		atma: NewAtmaDarshana(AtmaConfig{
			TrendLookback:      cfg.TrendLookback,
			TrendThreshold:     cfg.TrendThreshold,
			FailureStreakLimit: cfg.FailureStreakLimit,
			MaxLimitations:     cfg.MaxLimitations,
			CalibrationWindow:  cfg.CalibrationWindow,
		}),
		sankalpa: NewSankalpa(SankalpaConfig{
			DedupThreshold:           cfg.DedupThreshold,
			KeywordMatchThreshold:    cfg.KeywordMatchThreshold,
			ProgressIncrement:        cfg.ProgressIncrement,
			GoalAbandonmentThreshold: cfg.GoalAbandonmentThreshold,
			MaxIntentions:            cfg.MaxIntentions,
			MaxEvidencePerIntention:  cfg.MaxEvidencePerIntention,
		}),
	}

	c.bhava.OnFrustrated(func(level float64) {
		logging.Chetana("chetana:frustrated level=%.2f", level)
	})
	c.sankalpa.OnGoalChanged(func(id string) {
		logging.ChetanaDebug("chetana:goal_changed id=%s", id)
	})

	return c
}

// BeforeTurn folds a user message into attention and intention tracking and
// returns the context the caller should use to steer the turn.
func (c *Controller) BeforeTurn(userMessage string) ChetanaContext {
	c.messageSeq++
	msgID := fmt.Sprintf("msg-%d", c.messageSeq)

	c.dhyana.AddMessage(msgID, false, false)
	c.dhyana.TrackConcepts(userMessage)
	activeIDs := c.sankalpa.Observe(userMessage)
	_ = activeIDs

	return c.snapshot()
}

// AfterToolExecution folds one tool-invocation outcome into all four
// subsystems.
func (c *Controller) AfterToolExecution(tool string, success bool, latencyMillis float64, resultText string) {
	c.bhava.OnToolResult(!success, false)
	c.dhyana.OnToolUsed(tool, success, 0.3)
	c.atma.RecordToolResult(tool, success, latencyMillis, nil)
	c.sankalpa.OnToolResult(tool, resultText)
}

// AfterCorrection folds a user correction (a message that walks back or
// redirects the assistant's prior action) into affect.
func (c *Controller) AfterCorrection() {
	c.bhava.OnToolResult(false, true)
}

// AfterTurn decays affect and advances intention staleness tracking; call
// once per completed turn.
func (c *Controller) AfterTurn() {
	c.bhava.DecayTurn()
	c.atma.RecordTurn()
	c.sankalpa.EndTurn()
}

func (c *Controller) snapshot() ChetanaContext {
	active := c.sankalpa.Active()
	maxActive := 5
	if len(active) > maxActive {
		active = active[:maxActive]
	}
	goals := make([]string, len(active))
	for i, it := range active {
		goals[i] = it.Goal
	}

	return ChetanaContext{
		Affect:              c.bhava.Affect(),
		AttentionConcepts:   c.dhyana.TopConcepts(5),
		AttentionTools:      c.dhyana.TopTools(5),
		SelfAssessment:      c.atma.Summary(),
		ActiveIntentions:    goals,
		SteeringSuggestions: c.steeringSuggestions(active),
	}
}

func (c *Controller) steeringSuggestions(active []*Intention) []string {
	var suggestions []string

	affect := c.bhava.Affect()
	if affect.Frustration > c.cfg.FrustrationAlertThresh {
		suggestions = append(suggestions, "frustration is elevated; prefer the simplest viable path over an ambitious one")
	}

	staleThreshold := c.cfg.GoalAbandonmentThreshold / 2
	for _, it := range active {
		if staleThreshold > 0 && it.StaleTurns > staleThreshold {
			suggestions = append(suggestions, fmt.Sprintf("goal %q hasn't advanced in a while; consider refocusing on it", it.Goal))
		}
	}

	if c.atma.CalibrationRatio() > 1.3 {
		suggestions = append(suggestions, "recent predictions have run overconfident; hedge claims about outcomes")
	}

	if c.cfg.MaxSteeringSuggestions > 0 && len(suggestions) > c.cfg.MaxSteeringSuggestions {
		suggestions = suggestions[:c.cfg.MaxSteeringSuggestions]
	}
	return suggestions
}

// ControllerSnapshot is the serializable form of Controller.
type ControllerSnapshot struct {
	Bhava      BhavaSnapshot      `json:"bhava"`
	Dhyana     DhyanaSnapshot     `json:"dhyana"`
	Atma       AtmaSnapshot       `json:"atma"`
	Sankalpa   SankalpaSnapshot   `json:"sankalpa"`
	MessageSeq int                `json:"message_seq"`
}

// Serialize exports all four subsystems' primitive state.
func (c *Controller) Serialize() ControllerSnapshot {
	return ControllerSnapshot{
		Bhava:      c.bhava.Serialize(),
		Dhyana:     c.dhyana.Serialize(),
		Atma:       c.atma.Serialize(),
		Sankalpa:   c.sankalpa.Serialize(),
		MessageSeq: c.messageSeq,
	}
}

// DeserializeController reconstructs an equivalent controller from a snapshot.
func DeserializeController(cfg config.ChetanaConfig, snap ControllerSnapshot) *Controller {
	c := NewController(cfg)
	c.bhava = DeserializeBhava(BhavaConfig{
		FrustrationPerError:      cfg.FrustrationPerError,
		FrustrationPerCorrection: cfg.FrustrationPerCorrection,
		FrustrationPerSuccess:    cfg.FrustrationPerSuccess,
		FrustrationAlertThresh:   cfg.FrustrationAlertThresh,
		DecayRate:                cfg.DecayRate,
	}, snap.Bhava)
	c.dhyana = DeserializeDhyana(cfg.AttentionFocusWindow, cfg.DecayRate, cfg.ConceptCap, snap.Dhyana)
	c.atma = DeserializeAtmaDarshana(AtmaConfig{
		TrendLookback:      cfg.TrendLookback,
		TrendThreshold:     cfg.TrendThreshold,
		FailureStreakLimit: cfg.FailureStreakLimit,
		MaxLimitations:     cfg.MaxLimitations,
		CalibrationWindow:  cfg.CalibrationWindow,
	}, snap.Atma)
	c.sankalpa = DeserializeSankalpa(SankalpaConfig{
		DedupThreshold:           cfg.DedupThreshold,
		KeywordMatchThreshold:    cfg.KeywordMatchThreshold,
		ProgressIncrement:        cfg.ProgressIncrement,
		GoalAbandonmentThreshold: cfg.GoalAbandonmentThreshold,
		MaxIntentions:            cfg.MaxIntentions,
		MaxEvidencePerIntention:  cfg.MaxEvidencePerIntention,
	}, snap.Sankalpa)
	c.messageSeq = snap.MessageSeq

	c.bhava.OnFrustrated(func(level float64) {
		logging.Chetana("chetana:frustrated level=%.2f", level)
	})
	c.sankalpa.OnGoalChanged(func(id string) {
		logging.ChetanaDebug("chetana:goal_changed id=%s", id)
	})
	return c
}
