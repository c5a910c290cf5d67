package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"cogcore/internal/embedding"
	"cogcore/internal/errors"
	"cogcore/internal/logging"
	"cogcore/internal/store"
)

const (
	chunkSize    = 4000
	chunkOverlap = 500
)

// VectorIndex is Component C's dense-vector indexer (§4.2.2). It chunks
// long text, embeds each chunk, and answers cosine-similarity queries by
// scanning the full embedding table (see DESIGN.md for why no SQL-level ANN
// index is used).
type VectorIndex struct {
	idx        *store.Store
	engine     embedding.Engine
	available  embedding.CachedAvailability
	dimensions int
}

// NewVectorIndex wires a vector indexer to an embedding engine and the
// underlying store.
func NewVectorIndex(idx *store.Store, engine embedding.Engine) *VectorIndex {
	return &VectorIndex{idx: idx, engine: engine, dimensions: engine.Dimensions()}
}

// Chunk splits text into ≤chunkSize-character windows with chunkOverlap
// overlap for pieces longer than chunkSize (§4.2.2).
func Chunk(text string) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
		start = end - chunkOverlap
	}
	return chunks
}

// Index chunks text, embeds each chunk, and stores one row per chunk under a
// fresh random id, with source id sourceID (or sourceID-chunk-k when the text
// splits into several chunks). Indexing the same source id again adds new
// rows; earlier rows for that source id are not replaced.
func (v *VectorIndex) Index(ctx context.Context, sourceType, sourceID, text string) error {
	timer := logging.StartTimer(logging.CategoryRecall, "VectorIndex.Index")
	defer timer.Stop()

	if !v.available.Resolve(ctx, v.engine) {
		return errors.IOError{Op: "vector index", Err: fmt.Errorf("embedding provider %s unavailable", v.engine.Name())}
	}

	chunks := Chunk(text)
	for k, chunk := range chunks {
		vec, err := v.engine.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("recall: embed chunk %d of %s/%s: %w", k, sourceType, sourceID, err)
		}
		id := sourceID
		if len(chunks) > 1 {
			id = fmt.Sprintf("%s-chunk-%d", sourceID, k)
		}
		if err := v.idx.UpsertEmbedding(ctx, store.EmbeddingRow{
			ID:           uuid.NewString(),
			Vector:       store.EncodeVector(vec),
			Text:         chunk,
			SourceType:   sourceType,
			SourceID:     id,
			Dimensions:   len(vec),
			MetadataJSON: "{}",
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("recall: upsert embedding for %s/%s chunk %d: %w", sourceType, sourceID, k, err)
		}
	}
	return nil
}

// VectorResult is one cosine-similarity match, trimmed to §4.2.2's
// summary/matched-content size caps.
type VectorResult struct {
	SourceID       string
	Title          string
	Relevance      float64
	Summary        string
	MatchedContent string
}

// VectorQueryOptions bounds a recall call (§4.2.2).
type VectorQueryOptions struct {
	TopK      int
	Threshold float64
}

// DefaultVectorQueryOptions matches the spec's documented defaults.
func DefaultVectorQueryOptions() VectorQueryOptions {
	return VectorQueryOptions{TopK: 10, Threshold: 0.5}
}

// Recall embeds the query, scores every indexed entry by cosine similarity,
// dedupes by base source id (stripping any "-chunk-N" suffix) keeping the
// best-scoring chunk, and returns results ordered by similarity descending.
func (v *VectorIndex) Recall(ctx context.Context, query string, opts VectorQueryOptions) ([]VectorResult, error) {
	timer := logging.StartTimer(logging.CategoryRecall, "VectorIndex.Recall")
	defer timer.Stop()

	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if !v.available.Resolve(ctx, v.engine) {
		return nil, nil
	}

	queryVec, err := v.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("recall: embed query: %w", err)
	}

	rows, err := v.idx.AllEmbeddings(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("recall: scan embeddings: %w", err)
	}

	best := map[string]VectorResult{}
	for _, row := range rows {
		if row.Dimensions != len(queryVec) {
			continue // mixed-dim indices are rejected per §3.6
		}
		vec, err := store.DecodeVector(row.Vector)
		if err != nil {
			logging.RecallDebug("skipping corrupt embedding %s: %v", row.ID, err)
			continue
		}
		sim := store.CosineSimilarity(queryVec, vec)
		if sim < opts.Threshold {
			continue
		}
		baseID := baseSourceID(row.SourceID)
		current, exists := best[baseID]
		if !exists || sim > current.Relevance {
			best[baseID] = VectorResult{
				SourceID:       baseID,
				Relevance:      sim,
				Summary:        truncate(row.Text, 300),
				MatchedContent: truncate(row.Text, 1000),
			}
		}
	}

	out := make([]VectorResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out, nil
}

func baseSourceID(sourceID string) string {
	if idx := lastIndexChunkSuffix(sourceID); idx >= 0 {
		return sourceID[:idx]
	}
	return sourceID
}

func lastIndexChunkSuffix(s string) int {
	const marker = "-chunk-"
	for i := len(s) - len(marker); i >= 0; i-- {
		if s[i:i+len(marker)] == marker {
			return i
		}
	}
	return -1
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
