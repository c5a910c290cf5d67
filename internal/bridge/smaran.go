package bridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// smaranHalfLifeDays governs temporal decay of explicit-memory confidence:
// an entry's effective confidence halves every smaranHalfLifeDays.
const smaranHalfLifeDays = 30.0

// smaranMinConfidence floors decayed confidence so very old entries remain
// recallable, just deprioritized, rather than vanishing entirely.
const smaranMinConfidence = 0.05

// SmaranEntry is one user-addressable explicit-memory record (preferences,
// facts, decisions) — §GLOSSARY "Smaran".
type SmaranEntry struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	SessionID  string    `json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// decayedConfidence applies exponential decay with a smaranHalfLifeDays
// half-life, floored at smaranMinConfidence.
func (e SmaranEntry) decayedConfidence(now time.Time) float64 {
	ageDays := now.Sub(e.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decayed := e.Confidence * math.Pow(0.5, ageDays/smaranHalfLifeDays)
	if decayed < smaranMinConfidence {
		return smaranMinConfidence
	}
	return decayed
}

// Smaran is the explicit memory store, backed by an append-mostly JSON
// Lines file under <home>/memory/smaran.jsonl — the same "Markdown/flat
// file is the source of truth" philosophy as Component B's session store,
// scaled down to a single small corpus that is rewritten wholesale on
// forget (forget is rare; remember and recall are not).
type Smaran struct {
	mu   sync.Mutex
	path string
}

// NewSmaran opens the explicit-memory store rooted at home.
func NewSmaran(home string) *Smaran {
	return &Smaran{path: filepath.Join(home, "memory", "smaran.jsonl")}
}

func (s *Smaran) load() ([]SmaranEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bridge: open smaran store: %w", err)
	}
	defer f.Close()

	var entries []SmaranEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e SmaranEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func (s *Smaran) saveAll(entries []SmaranEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("bridge: mkdir memory dir: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("bridge: marshal smaran entry: %w", err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	return os.WriteFile(s.path, []byte(b.String()), 0o644)
}

func (s *Smaran) append(e SmaranEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("bridge: mkdir memory dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("bridge: open smaran store: %w", err)
	}
	defer f.Close()
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("bridge: marshal smaran entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("bridge: append smaran entry: %w", err)
	}
	return nil
}

var smaranNextID int64

func nextSmaranID() string {
	smaranNextID++
	return fmt.Sprintf("smaran-%d-%d", time.Now().UnixNano(), smaranNextID)
}

// smaranCategoryTriggers maps keyword triggers to the category a "remember"
// command infers when none is given explicitly (§4.9).
var smaranCategoryTriggers = []struct {
	category string
	keywords []string
}{
	{"preference", []string{"prefer", "like", "favorite", "rather"}},
	{"rule", []string{"always", "never", "must", "should"}},
	{"decision", []string{"decided", "will", "plan to", "going to"}},
}

func inferSmaranCategory(content string) string {
	lower := strings.ToLower(content)
	for _, t := range smaranCategoryTriggers {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.category
			}
		}
	}
	return "fact"
}

// Remember stores a new explicit-memory entry, inferring its category from
// keyword triggers in content (§4.9).
func (s *Smaran) Remember(content, sessionID string) (SmaranEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := SmaranEntry{
		ID:         nextSmaranID(),
		Category:   inferSmaranCategory(content),
		Content:    content,
		Confidence: 1.0,
		Source:     "explicit",
		SessionID:  sessionID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.append(entry); err != nil {
		return SmaranEntry{}, err
	}
	return entry, nil
}

// Forget removes every entry whose content contains substr, returning the
// count removed (§4.9).
func (s *Smaran) Forget(substr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if strings.Contains(e.Content, substr) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveAll(kept)
}

// Recall returns entries whose content contains substr, ordered by
// recency·confidence descending, capped to 5 (§4.9).
func (s *Smaran) Recall(substr string) ([]SmaranEntry, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var matched []SmaranEntry
	for _, e := range entries {
		if substr == "" || strings.Contains(strings.ToLower(e.Content), strings.ToLower(substr)) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].decayedConfidence(now) > matched[j].decayedConfidence(now)
	})
	if len(matched) > 5 {
		matched = matched[:5]
	}
	return matched, nil
}

// List returns up to 20 entries (optionally filtered by category),
// most-recent-first (§4.9).
func (s *Smaran) List(category string) ([]SmaranEntry, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var filtered []SmaranEntry
	for _, e := range entries {
		if category == "" || e.Category == category {
			filtered = append(filtered, e)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	if len(filtered) > 20 {
		filtered = filtered[:20]
	}
	return filtered, nil
}

// snapshotWithDecay renders every entry's content with its decayed
// confidence applied, for loadMemoryContext's Smaran section (§4.9).
func (s *Smaran) snapshotWithDecay() (string, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	now := time.Now().UTC()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].decayedConfidence(now) > entries[j].decayedConfidence(now)
	})

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s (confidence %.2f)\n", e.Category, e.Content, e.decayedConfidence(now))
	}
	return strings.TrimSpace(b.String()), nil
}
