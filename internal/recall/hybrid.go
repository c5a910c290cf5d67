package recall

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"cogcore/internal/logging"
	"cogcore/internal/store"
)

// HybridResult is one fused, deduplicated match (§4.2.3).
type HybridResult struct {
	SourceID string
	Title    string
	Score    float64
	FoundBy  []string
}

// HybridWeights controls the per-retriever contribution to the fused score.
// Defaults to equal weighting.
type HybridWeights struct {
	Lexical, Vector, Graph float64
}

// DefaultHybridWeights returns the spec's default equal weighting.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Lexical: 1.0, Vector: 1.0, Graph: 1.0}
}

// Engine is Component C: the recall engine bundling the lexical, vector, and
// graph retrievers plus the gated self-RAG heuristic.
type Engine struct {
	idx         *store.Store
	vector      *VectorIndex
	graph       *GraphRetriever
	weights     HybridWeights
	answerCache *lru.Cache[string, string]
}

// NewEngine wires the three retrievers together with an answer cache sized
// per config (§4.2.3's self-RAG vocabulary-overlap heuristic).
func NewEngine(idx *store.Store, vector *VectorIndex, graph *GraphRetriever, weights HybridWeights, answerCacheSize int) (*Engine, error) {
	if answerCacheSize <= 0 {
		answerCacheSize = 256
	}
	cache, err := lru.New[string, string](answerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{idx: idx, vector: vector, graph: graph, weights: weights, answerCache: cache}, nil
}

// RememberAnswer records a previously-produced answer for a query, feeding
// the self-answerable heuristic's vocabulary-overlap check.
func (e *Engine) RememberAnswer(query, answer string) {
	e.answerCache.Add(normalizeForOverlap(query), answer)
}

// IsSelfAnswerable is the §4.2.3 gated heuristic: a deterministic,
// no-I/O judgment of whether a query is worth a full hybrid search.
// Signals: presence of a question marker, query length, and vocabulary
// overlap with a previously cached answer.
func (e *Engine) IsSelfAnswerable(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}
	hasQuestionMarker := strings.ContainsAny(trimmed, "?") ||
		strings.HasPrefix(strings.ToLower(trimmed), "what") ||
		strings.HasPrefix(strings.ToLower(trimmed), "how") ||
		strings.HasPrefix(strings.ToLower(trimmed), "why") ||
		strings.HasPrefix(strings.ToLower(trimmed), "when") ||
		strings.HasPrefix(strings.ToLower(trimmed), "where") ||
		strings.HasPrefix(strings.ToLower(trimmed), "who")
	longEnough := len(Tokenize(trimmed)) >= 3

	overlaps := false
	key := normalizeForOverlap(trimmed)
	if cached, ok := e.answerCache.Get(key); ok {
		overlaps = vocabularyOverlap(trimmed, cached) > 0.2
	}

	return hasQuestionMarker && (longEnough || overlaps)
}

func normalizeForOverlap(s string) string {
	return strings.Join(Tokenize(s), " ")
}

func vocabularyOverlap(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	setB := map[string]bool{}
	for _, t := range tb {
		setB[t] = true
	}
	var shared int
	for _, t := range ta {
		if setB[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(ta))
}

// HybridSearch runs lexical, vector, and graph retrieval, normalizes each
// retriever's scores to [0,1] by its own max, fuses with a weighted sum, and
// returns the top-k fused results (§4.2.3).
func (e *Engine) HybridSearch(ctx context.Context, query string, topK int) ([]HybridResult, error) {
	timer := logging.StartTimer(logging.CategoryRecall, "HybridSearch")
	defer timer.Stop()

	if topK <= 0 {
		topK = 10
	}

	fused := map[string]*HybridResult{}

	lexHits, err := SearchSessions(ctx, e.idx, query, topK*2)
	if err == nil {
		applyNormalized(fused, "lexical", e.weights.Lexical, lexHitsToScored(lexHits))
	} else {
		logging.RecallDebug("hybrid search: lexical retriever failed: %v", err)
	}

	if e.vector != nil {
		vecHits, err := e.vector.Recall(ctx, query, DefaultVectorQueryOptions())
		if err == nil {
			applyNormalized(fused, "vector", e.weights.Vector, vectorHitsToScored(vecHits))
		} else {
			logging.RecallDebug("hybrid search: vector retriever failed: %v", err)
		}
	}

	if e.graph != nil {
		graphHits, err := e.graph.Walk(ctx, Tokenize(query))
		if err == nil {
			applyNormalized(fused, "graph", e.weights.Graph, graphHitsToScored(graphHits))
		} else {
			logging.RecallDebug("hybrid search: graph retriever failed: %v", err)
		}
	}

	out := make([]HybridResult, 0, len(fused))
	for _, r := range fused {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// scored is a (sourceID, title, rawScore) triple prior to per-retriever
// normalization.
type scored struct {
	id, title string
	score     float64
}

func lexHitsToScored(hits []SessionHit) []scored {
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{id: h.SessionID, title: h.Title, score: h.Score}
	}
	return out
}

func vectorHitsToScored(hits []VectorResult) []scored {
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{id: h.SourceID, title: h.Title, score: h.Relevance}
	}
	return out
}

func graphHitsToScored(hits []GraphResult) []scored {
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{id: h.EntityID, score: h.Score}
	}
	return out
}

// applyNormalized divides every raw score by this retriever's own max (so
// each retriever contributes on a comparable [0,1] scale), multiplies by its
// weight, and accumulates into the fused map, recording foundBy.
func applyNormalized(fused map[string]*HybridResult, retriever string, weight float64, hits []scored) {
	if len(hits) == 0 {
		return
	}
	max := hits[0].score
	for _, h := range hits {
		if h.score > max {
			max = h.score
		}
	}
	if max <= 0 {
		return
	}
	for _, h := range hits {
		normalized := (h.score / max) * weight
		existing, ok := fused[h.id]
		if !ok {
			fused[h.id] = &HybridResult{SourceID: h.id, Title: h.title, Score: normalized, FoundBy: []string{retriever}}
			continue
		}
		existing.Score += normalized
		existing.FoundBy = append(existing.FoundBy, retriever)
		if existing.Title == "" {
			existing.Title = h.title
		}
	}
}
