// Package embedding provides the pluggable text-to-vector interface consumed
// by the recall engine's vector indexer (§4.2.2, §6.7). The only concrete
// engine shipped here is a deterministic hash-projection fallback; a real
// provider is expected to be interrogated once at first use and its
// reachability cached for the life of the process.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"cogcore/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// HealthChecker is implemented by engines that can be probed for
// reachability before the recall engine commits to using them.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachedAvailability memoizes a single provider's reachability check per
// process, matching §4.2.2's "interrogated at first use ... cached
// per-process" rule.
type CachedAvailability struct {
	checked   bool
	available bool
}

// Resolve runs HealthCheck at most once; subsequent calls return the cached
// verdict. Engines without a HealthChecker are always considered available.
func (c *CachedAvailability) Resolve(ctx context.Context, engine Engine) bool {
	if c.checked {
		return c.available
	}
	c.checked = true
	hc, ok := engine.(HealthChecker)
	if !ok {
		c.available = true
		return true
	}
	if err := hc.HealthCheck(ctx); err != nil {
		logging.RecallDebug("embedding provider %s unavailable: %v", engine.Name(), err)
		c.available = false
		return false
	}
	c.available = true
	return true
}

// HashEngine is the fallback projection used when no embedding provider is
// reachable: a deterministic, content-addressed pseudo-embedding built from
// repeated SHA-256 digests of the input, normalized to a unit vector. It
// cannot capture semantic similarity, only lexical identity/near-identity,
// but it keeps the vector index populated and queryable when §6.7's
// embedding provider collaborator is absent.
type HashEngine struct {
	dimensions int
}

// NewHashEngine constructs a fallback engine emitting vectors of the given
// dimensionality.
func NewHashEngine(dimensions int) *HashEngine {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEngine{dimensions: dimensions}
}

func (h *HashEngine) Name() string    { return "hash-fallback" }
func (h *HashEngine) Dimensions() int { return h.dimensions }

func (h *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, h.dimensions)
	block := []byte(text)
	for i := 0; i < h.dimensions; i += 8 {
		sum := sha256.Sum256(append(block, byte(i/8)))
		for j := 0; j < 8 && i+j < h.dimensions; j++ {
			bits := binary.LittleEndian.Uint32(sum[j*4 : j*4+4])
			// Map into [-1, 1] so magnitude stays comparable across dims.
			out[i+j] = float32(bits)/float32(math.MaxUint32)*2 - 1
		}
	}
	normalize(out)
	return out, nil
}

func (h *HashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding: hash batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	if sumSquares == 0 {
		return
	}
	mag := float32(math.Sqrt(sumSquares))
	for i := range v {
		v[i] /= mag
	}
}
