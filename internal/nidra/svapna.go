package nidra

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cogcore/internal/session"
	"cogcore/internal/store"
)

// Svapna phase names. The glossary names only the pipeline, not its five
// phases; these follow the spec's own Sanskrit-thematic naming convention
// (Nidra = sleep, Chitragupta = record-keeper, Svapna = dream) and are
// recorded as a resolved Open Question in DESIGN.md.
const (
	PhaseSanchaya  = "sanchaya"  // gathering: collect the day's turns for a project
	PhaseManana    = "manana"    // reflection: extract candidate facts by keyword heuristic
	PhaseVichara   = "vichara"   // discernment: dedupe and cap candidates
	PhaseSamyojana = "samyojana" // integration: pick the project memory scope (facts are appended, not merged)
	PhaseSthapana  = "sthapana"  // establishment: persist the merged facts
)

// factTriggers are keyword markers that promote a sentence to a candidate
// fact during the manana phase. Chosen to match the kind of durable,
// forward-looking statements worth remembering across sessions.
var factTriggers = []string{
	"decided", "decision", "remember", "prefer", "preference", "always",
	"never", "must", "should not", "todo", "fixed", "bug", "convention",
	"requirement", "constraint",
}

// svapnaResult is what one project's five-phase run yields.
type svapnaResult struct {
	Project string
	Facts   []string
}

// runSvapna executes the five-phase consolidation pipeline for a single
// project's turns, reporting progress through report after each phase.
func runSvapna(ctx context.Context, idx *store.Store, sessions *session.Store, home, project string, sessionIDs []string, report ProgressFunc) (svapnaResult, error) {
	report(PhaseSanchaya, 0.0)
	var allContent []string
	for _, id := range sessionIDs {
		turns, err := idx.ListTurns(ctx, id)
		if err != nil {
			return svapnaResult{}, fmt.Errorf("nidra: svapna gather turns for %s: %w", id, err)
		}
		for _, t := range turns {
			allContent = append(allContent, t.Content)
		}
	}
	report(PhaseSanchaya, 1.0)

	report(PhaseManana, 0.0)
	var candidates []string
	for _, content := range allContent {
		candidates = append(candidates, extractCandidateFacts(content)...)
	}
	report(PhaseManana, 1.0)

	report(PhaseVichara, 0.0)
	facts := dedupeAndCapFacts(candidates, 20)
	report(PhaseVichara, 1.0)

	report(PhaseSamyojana, 0.0)
	scope := "project:" + project
	report(PhaseSamyojana, 1.0)

	report(PhaseSthapana, 0.0)
	if len(facts) > 0 {
		if err := appendMemoryScope(home, scope, strings.Join(facts, "\n")); err != nil {
			return svapnaResult{}, err
		}
	}
	report(PhaseSthapana, 1.0)

	return svapnaResult{Project: project, Facts: facts}, nil
}

// extractCandidateFacts splits content into sentences and keeps those
// containing a fact trigger keyword, trimmed to a reasonable length.
func extractCandidateFacts(content string) []string {
	sentences := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '\n' || r == '!' || r == '?'
	})

	var out []string
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) < 8 || len(trimmed) > 280 {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, trigger := range factTriggers {
			if strings.Contains(lower, trigger) {
				out = append(out, trimmed)
				break
			}
		}
	}
	return out
}

// dedupeAndCapFacts removes duplicate facts (case-insensitive) and caps the
// result at max entries, preferring shorter, denser statements first.
func dedupeAndCapFacts(facts []string, max int) []string {
	seen := make(map[string]bool, len(facts))
	var unique []string
	for _, f := range facts {
		key := strings.ToLower(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, f)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return len(unique[i]) < len(unique[j])
	})

	if len(unique) > max {
		unique = unique[:max]
	}
	return unique
}
