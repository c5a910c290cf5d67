package recall

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"cogcore/internal/logging"
	"cogcore/internal/store"
)

// SessionHit is one deduplicated, recency-boosted lexical match against
// session turns (§4.2.1).
type SessionHit struct {
	SessionID string
	Title     string
	Score     float64
	UpdatedAt time.Time
}

var ftsUnsafe = regexp.MustCompile(`["*^]`)

// SanitizeFTSQuery strips FTS5 special characters from a raw query so it can
// be safely embedded in a MATCH expression, then quotes each remaining
// token to force substring-literal matching instead of FTS5 query syntax.
func SanitizeFTSQuery(raw string) string {
	cleaned := ftsUnsafe.ReplaceAllString(raw, " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, "") + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchSessions runs the §4.2.1 session-search pipeline: sanitize, MATCH
// against turns_fts, join sessions, dedupe by session keeping the
// best-scoring turn, apply recency boost, return ordered hits.
func SearchSessions(ctx context.Context, idx *store.Store, rawQuery string, limit int) ([]SessionHit, error) {
	timer := logging.StartTimer(logging.CategoryRecall, "SearchSessions")
	defer timer.Stop()

	ftsQuery := SanitizeFTSQuery(rawQuery)
	if ftsQuery == "" {
		return nil, nil
	}

	hits, err := idx.SearchTurnsFTS(ctx, ftsQuery, limit*4)
	if err != nil {
		return nil, fmt.Errorf("recall: search sessions: %w", err)
	}

	now := time.Now().UTC()
	best := map[string]SessionHit{}
	for _, h := range hits {
		// bm25() is more-negative-is-better; invert so higher is better.
		score := -h.BM25
		session, err := idx.GetSession(ctx, h.SessionID)
		if err != nil {
			continue
		}
		boosted := score * RecencyMultiplier(session.UpdatedAt, now)
		current, exists := best[h.SessionID]
		if !exists || boosted > current.Score {
			best[h.SessionID] = SessionHit{
				SessionID: h.SessionID,
				Title:     session.Title,
				Score:     boosted,
				UpdatedAt: session.UpdatedAt,
			}
		}
	}

	out := make([]SessionHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
