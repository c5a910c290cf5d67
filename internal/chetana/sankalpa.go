package chetana

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

// IntentStatus is the lifecycle state of a tracked intention.
type IntentStatus string

const (
	StatusActive    IntentStatus = "active"
	StatusPaused    IntentStatus = "paused"
	StatusAchieved  IntentStatus = "achieved"
	StatusAbandoned IntentStatus = "abandoned"
)

// Priority is the escalation level assigned to a repeatedly mentioned goal.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Intention is a single tracked goal extracted from user messages (§3.5, §4.4.4).
type Intention struct {
	ID               string
	Goal             string
	Fingerprint      uint32
	Status           IntentStatus
	Priority         Priority
	Progress         float64
	MentionCount     int
	Evidence         []string
	StaleTurns       int
	CreatedAtTurn    int
	LastAdvancedTurn int

	advancedThisTurn bool
}

var intentPatterns = []struct {
	re   *regexp.Regexp
	verb string
}{
	{regexp.MustCompile(`(?i)\bi want to\s+(.+)`), "want to"},
	{regexp.MustCompile(`(?i)\blet'?s\s+(.+)`), "let's"},
	{regexp.MustCompile(`(?i)\bimplement\s+(.+)`), "implement"},
	{regexp.MustCompile(`(?i)\bfix\s+(?:the\s+)?(.+)`), "fix"},
	{regexp.MustCompile(`(?i)\brefactor\s+(.+)`), "refactor"},
}

// ExtractGoals splits text into sentences and pulls out goal phrases matching
// the fixed intent-verb patterns. Each goal is the verb plus the matched
// phrase, split on " and " into separate sub-goals, so only the first
// sub-goal carries the verb.
func ExtractGoals(text string) []string {
	var goals []string
	for _, sentence := range splitSentences(text) {
		for _, p := range intentPatterns {
			m := p.re.FindStringSubmatch(sentence)
			if m == nil {
				continue
			}
			rest := strings.TrimRight(strings.TrimSpace(m[1]), ".!?")
			for _, part := range strings.Split(p.verb+" "+rest, " and ") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				goals = append(goals, part)
			}
			break
		}
	}
	return goals
}

func splitSentences(text string) []string {
	return regexp.MustCompile(`[.!?\n]`).Split(text, -1)
}

func fingerprintGoal(goal string) uint32 {
	tokens := dhyanaTokenize(goal)
	sort.Strings(tokens)
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(tokens, " ")))
	return h.Sum32()
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range dhyanaTokenize(text) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection, union := 0, 0
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	union = len(seen)
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SankalpaConfig carries the tunables the intention tracker is built from.
type SankalpaConfig struct {
	DedupThreshold           float64
	KeywordMatchThreshold    int
	ProgressIncrement        float64
	GoalAbandonmentThreshold int
	MaxIntentions            int
	MaxEvidencePerIntention  int
}

// Sankalpa tracks intentions: extraction, dedup, progress, and lifecycle.
type Sankalpa struct {
	cfg SankalpaConfig

	intentions map[string]*Intention
	tokens     map[string]map[string]bool // intention id -> token set

	turn   int
	nextID int

	onGoalChanged func(id string)
}

// NewSankalpa constructs an empty intention tracker.
func NewSankalpa(cfg SankalpaConfig) *Sankalpa {
	return &Sankalpa{
		cfg:        cfg,
		intentions: make(map[string]*Intention),
		tokens:     make(map[string]map[string]bool),
	}
}

// OnGoalChanged registers a callback fired on achieve/status transitions
// (chetana:goal_changed, §4.4.4).
func (s *Sankalpa) OnGoalChanged(fn func(id string)) {
	s.onGoalChanged = fn
}

// Observe extracts goals from a user message, folding each into an existing
// intention (by Jaccard token overlap) or creating a new one, and returns the
// ids touched this call.
func (s *Sankalpa) Observe(text string) []string {
	var touched []string
	for _, goal := range ExtractGoals(text) {
		id := s.foldGoal(goal)
		touched = append(touched, id)
	}
	return touched
}

func (s *Sankalpa) foldGoal(goal string) string {
	candidate := tokenSet(goal)

	var bestID string
	var bestScore float64
	for id, it := range s.intentions {
		if it.Status == StatusAchieved || it.Status == StatusAbandoned {
			continue
		}
		score := jaccard(candidate, s.tokens[id])
		if score > bestScore {
			bestScore, bestID = score, id
		}
	}

	if bestID != "" && bestScore >= s.cfg.DedupThreshold {
		it := s.intentions[bestID]
		it.MentionCount++
		if it.Status == StatusPaused {
			it.Status = StatusActive
			it.StaleTurns = 0
		}
		s.escalatePriority(it)
		return bestID
	}

	id := fmt.Sprintf("intent-%d", s.nextID)
	s.nextID++
	it := &Intention{
		ID:               id,
		Goal:             goal,
		Fingerprint:      fingerprintGoal(goal),
		Status:           StatusActive,
		Priority:         PriorityNormal,
		MentionCount:     1,
		CreatedAtTurn:    s.turn,
		LastAdvancedTurn: s.turn,
	}
	s.intentions[id] = it
	s.tokens[id] = candidate
	s.enforceCapacity()
	return id
}

func (s *Sankalpa) escalatePriority(it *Intention) {
	switch {
	case it.MentionCount >= 5:
		it.Priority = PriorityCritical
	case it.MentionCount >= 3:
		it.Priority = PriorityHigh
	}
}

// OnToolResult advances progress on active intentions whose token set matches
// at least KeywordMatchThreshold distinct tokens from resultText.
func (s *Sankalpa) OnToolResult(tool, resultText string) {
	hits := tokenSet(resultText)
	evidenceCap := s.cfg.MaxEvidencePerIntention
	if evidenceCap > 100 || evidenceCap <= 0 {
		evidenceCap = 100
	}

	for id, it := range s.intentions {
		if it.Status != StatusActive {
			continue
		}
		matched := 0
		for tok := range s.tokens[id] {
			if hits[tok] {
				matched++
			}
		}
		if matched < s.cfg.KeywordMatchThreshold {
			continue
		}

		it.Progress = clampFloat(it.Progress+s.cfg.ProgressIncrement, 0, 1)
		it.LastAdvancedTurn = s.turn
		it.advancedThisTurn = true
		it.Evidence = append(it.Evidence, fmt.Sprintf("%s: %s", tool, truncate(resultText, 200)))
		if len(it.Evidence) > evidenceCap {
			it.Evidence = it.Evidence[len(it.Evidence)-evidenceCap:]
		}

		if it.Progress >= 1.0 {
			s.Achieve(id)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Achieve marks an intention complete and fires the goal-changed callback.
func (s *Sankalpa) Achieve(id string) {
	it, ok := s.intentions[id]
	if !ok {
		return
	}
	it.Status = StatusAchieved
	it.Progress = 1.0
	if s.onGoalChanged != nil {
		s.onGoalChanged(id)
	}
}

// EndTurn advances staleness counters, pausing or abandoning goals that
// haven't moved in GoalAbandonmentThreshold / 2x turns, and resets the turn's
// advancement flags.
func (s *Sankalpa) EndTurn() {
	for _, it := range s.intentions {
		if it.Status != StatusActive && it.Status != StatusPaused {
			continue
		}
		if it.advancedThisTurn {
			it.StaleTurns = 0
		} else {
			it.StaleTurns++
		}
		it.advancedThisTurn = false

		switch it.Status {
		case StatusActive:
			if it.StaleTurns >= s.cfg.GoalAbandonmentThreshold && s.cfg.GoalAbandonmentThreshold > 0 {
				it.Status = StatusPaused
				if s.onGoalChanged != nil {
					s.onGoalChanged(it.ID)
				}
			}
		case StatusPaused:
			if it.StaleTurns >= 2*s.cfg.GoalAbandonmentThreshold && s.cfg.GoalAbandonmentThreshold > 0 {
				it.Status = StatusAbandoned
				if s.onGoalChanged != nil {
					s.onGoalChanged(it.ID)
				}
			}
		}
	}
	s.turn++
}

var tierRank = map[IntentStatus]int{
	StatusAbandoned: 0,
	StatusPaused:    1,
	StatusAchieved:  2,
	StatusActive:    3,
}

var priorityRank = map[Priority]int{
	PriorityNormal:   0,
	PriorityHigh:     1,
	PriorityCritical: 2,
}

func (s *Sankalpa) enforceCapacity() {
	if s.cfg.MaxIntentions <= 0 || len(s.intentions) <= s.cfg.MaxIntentions {
		return
	}
	var worstID string
	first := true
	for id, it := range s.intentions {
		if first {
			worstID, first = id, false
			continue
		}
		worst := s.intentions[worstID]
		if lessValuable(it, worst) {
			worstID = id
		}
	}
	if worstID != "" {
		delete(s.intentions, worstID)
		delete(s.tokens, worstID)
	}
}

func lessValuable(a, b *Intention) bool {
	if tierRank[a.Status] != tierRank[b.Status] {
		return tierRank[a.Status] < tierRank[b.Status]
	}
	if priorityRank[a.Priority] != priorityRank[b.Priority] {
		return priorityRank[a.Priority] < priorityRank[b.Priority]
	}
	return a.LastAdvancedTurn < b.LastAdvancedTurn
}

// Get returns an intention by id.
func (s *Sankalpa) Get(id string) (*Intention, bool) {
	it, ok := s.intentions[id]
	return it, ok
}

// Active returns active intentions ordered by priority (highest first) then
// by most recently advanced.
func (s *Sankalpa) Active() []*Intention {
	var out []*Intention
	for _, it := range s.intentions {
		if it.Status == StatusActive {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if priorityRank[out[i].Priority] != priorityRank[out[j].Priority] {
			return priorityRank[out[i].Priority] > priorityRank[out[j].Priority]
		}
		return out[i].LastAdvancedTurn > out[j].LastAdvancedTurn
	})
	return out
}

// SankalpaSnapshot is the serializable form of Sankalpa.
type SankalpaSnapshot struct {
	Intentions map[string]*Intention       `json:"intentions"`
	Tokens     map[string]map[string]bool  `json:"tokens"`
	Turn       int                         `json:"turn"`
	NextID     int                         `json:"next_id"`
}

// Serialize exports the engine's primitive state.
func (s *Sankalpa) Serialize() SankalpaSnapshot {
	return SankalpaSnapshot{Intentions: s.intentions, Tokens: s.tokens, Turn: s.turn, NextID: s.nextID}
}

// DeserializeSankalpa reconstructs an equivalent engine from a snapshot.
func DeserializeSankalpa(cfg SankalpaConfig, snap SankalpaSnapshot) *Sankalpa {
	s := NewSankalpa(cfg)
	if snap.Intentions != nil {
		s.intentions = snap.Intentions
	}
	if snap.Tokens != nil {
		s.tokens = snap.Tokens
	}
	s.turn = snap.Turn
	s.nextID = snap.NextID
	return s
}
