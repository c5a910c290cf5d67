package chetana

import (
	"regexp"
	"sort"
)

var dhyanaTokenRe = regexp.MustCompile(`[a-z0-9]+`)

// dhyanaStopWords is Dhyana's own stop-word list (§4.4.2). It is a subset of
// the recall engine's list, which also drops words such as "its", "into",
// "about", "than", "then", "so", "if", "he" and "she"; the two packages keep
// separate lists rather than share an import across component boundaries
// that otherwise have no dependency on each other.
var dhyanaStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "as": true, "from": true,
	"not": true, "no": true, "do": true, "does": true, "did": true, "can": true,
	"will": true, "would": true, "should": true, "could": true, "has": true,
	"have": true, "had": true, "i": true, "you": true, "we": true, "they": true,
}

func dhyanaTokenize(text string) []string {
	var out []string
	for _, tok := range dhyanaTokenRe.FindAllString(toLowerASCII(text), -1) {
		if len(tok) < 3 || dhyanaStopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Dhyana tracks attention over three salience maps: messages, concepts, and
// tools (§3.5, §4.4.2).
type Dhyana struct {
	focusWindow int
	decay       float64
	conceptCap  int

	messages     map[string]float64
	messageOrder []string // insertion order, oldest first, for recency rank

	concepts map[string]float64
	tools    map[string]float64
}

// NewDhyana constructs an attention tracker.
func NewDhyana(focusWindow int, decay float64, conceptCap int) *Dhyana {
	return &Dhyana{
		focusWindow: focusWindow,
		decay:       decay,
		conceptCap:  conceptCap,
		messages:    make(map[string]float64),
		concepts:    make(map[string]float64),
		tools:       make(map[string]float64),
	}
}

// AddMessage records a new message at initial salience 1.0, boosting its
// neighbor (the immediately preceding message) on error or correction, then
// applies recency decay across all tracked messages.
func (d *Dhyana) AddMessage(id string, isError, isCorrection bool) {
	d.messages[id] = 1.0
	d.messageOrder = append(d.messageOrder, id)

	if (isError || isCorrection) && len(d.messageOrder) >= 2 {
		neighbor := d.messageOrder[len(d.messageOrder)-2]
		d.messages[neighbor] += 0.5
	}

	d.refreshMessageDecay()
}

// refreshMessageDecay multiplies older positions by 1/(1+rank·decay), rank 0
// being the most recent message.
func (d *Dhyana) refreshMessageDecay() {
	n := len(d.messageOrder)
	for rank := 0; rank < n; rank++ {
		id := d.messageOrder[n-1-rank]
		base, ok := d.messages[id]
		if !ok {
			continue
		}
		d.messages[id] = base / (1 + float64(rank)*d.decay)
	}
}

// TrackConcepts tokenizes text and increments salience for every surviving
// token, evicting the lowest-salience entry once the cap is exceeded.
func (d *Dhyana) TrackConcepts(text string) {
	for _, tok := range dhyanaTokenize(text) {
		d.concepts[tok]++
		if len(d.concepts) > d.conceptCap {
			d.evictLowestConcept()
		}
	}
}

func (d *Dhyana) evictLowestConcept() {
	var worst string
	var worstScore float64
	first := true
	for k, v := range d.concepts {
		if first || v < worstScore {
			worst, worstScore, first = k, v, false
		}
	}
	if !first {
		delete(d.concepts, worst)
	}
}

// OnToolUsed adjusts a tool's salience around a base of 0.5 by a signed
// weight (positive for success, negative for failure, scaled by score).
func (d *Dhyana) OnToolUsed(tool string, success bool, score float64) {
	base := d.tools[tool]
	if base == 0 {
		base = 0.5
	}
	weight := score
	if !success {
		weight = -score
	}
	d.tools[tool] = clampFloat(base+weight, 0, 1e9)
}

// GetFocusWindow returns the top focusWindow message ids by current salience.
func (d *Dhyana) GetFocusWindow() []string {
	return topNByScore(d.messages, d.focusWindow)
}

// TopConcepts returns the top n concept tokens by salience.
func (d *Dhyana) TopConcepts(n int) []string {
	return topNByScore(d.concepts, n)
}

// TopTools returns the top n tool names by salience.
func (d *Dhyana) TopTools(n int) []string {
	return topNByScore(d.tools, n)
}

func topNByScore(m map[string]float64, n int) []string {
	type entry struct {
		key   string
		score float64
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score == entries[j].score {
			return entries[i].key < entries[j].key
		}
		return entries[i].score > entries[j].score
	})
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].key
	}
	return out
}

// DhyanaSnapshot is the serializable form of Dhyana.
type DhyanaSnapshot struct {
	Messages     map[string]float64 `json:"messages"`
	MessageOrder []string           `json:"message_order"`
	Concepts     map[string]float64 `json:"concepts"`
	Tools        map[string]float64 `json:"tools"`
}

// Serialize exports the engine's primitive state.
func (d *Dhyana) Serialize() DhyanaSnapshot {
	return DhyanaSnapshot{Messages: d.messages, MessageOrder: d.messageOrder, Concepts: d.concepts, Tools: d.tools}
}

// DeserializeDhyana reconstructs an equivalent engine from a snapshot.
func DeserializeDhyana(focusWindow int, decay float64, conceptCap int, snap DhyanaSnapshot) *Dhyana {
	d := NewDhyana(focusWindow, decay, conceptCap)
	if snap.Messages != nil {
		d.messages = snap.Messages
	}
	if snap.MessageOrder != nil {
		d.messageOrder = snap.MessageOrder
	}
	if snap.Concepts != nil {
		d.concepts = snap.Concepts
	}
	if snap.Tools != nil {
		d.tools = snap.Tools
	}
	return d
}
