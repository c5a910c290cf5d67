package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"cogcore/internal/errors"
)

// EncodeVector packs dense float32 components into a little-endian blob
// (§6.3). Its length is always dimensions*4.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob produced by EncodeVector. Returns an IOError if
// the length isn't a multiple of 4.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.IOError{Op: "decode vector", Err: fmt.Errorf("blob length %d not a multiple of 4", len(blob))}
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		magA += af * af
		magB += bf * bf
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// UpsertEmbedding inserts or replaces an embeddings row. Mixed-dimension
// writes against an index that already has entries of a different
// dimensionality are rejected by the caller (recall.VectorIndex), not here;
// this is a pure storage primitive.
func (s *Store) UpsertEmbedding(ctx context.Context, row EmbeddingRow) error {
	_, err := s.Vectors.ExecContext(ctx, `
		INSERT INTO embeddings (id, vector, text, source_type, source_id, dimensions, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET vector=excluded.vector, text=excluded.text,
			dimensions=excluded.dimensions, metadata=excluded.metadata
	`, row.ID, row.Vector, row.Text, row.SourceType, row.SourceID, row.Dimensions,
		row.MetadataJSON, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert embedding %s: %w", row.ID, err)
	}
	return nil
}

// AllEmbeddings returns every embedding row, optionally filtered by source type.
// The recall engine scans this in full to compute cosine similarity (§4.2.2);
// there is no SQL-level ANN index, by design (see DESIGN.md).
func (s *Store) AllEmbeddings(ctx context.Context, sourceType string) ([]EmbeddingRow, error) {
	query := `SELECT id, vector, text, source_type, source_id, dimensions, metadata, created_at FROM embeddings`
	args := []interface{}{}
	if sourceType != "" {
		query += " WHERE source_type = ?"
		args = append(args, sourceType)
	}
	rows, err := s.Vectors.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: scan embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var row EmbeddingRow
		if err := rows.Scan(&row.ID, &row.Vector, &row.Text, &row.SourceType, &row.SourceID,
			&row.Dimensions, &row.MetadataJSON, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan embedding row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteEmbeddingsBySource removes every chunk embedded for a given source id,
// used before reindexing (§4.2.5).
func (s *Store) DeleteEmbeddingsBySource(ctx context.Context, sourceType, sourceID string) error {
	_, err := s.Vectors.ExecContext(ctx, `
		DELETE FROM embeddings WHERE source_type = ? AND (source_id = ? OR source_id LIKE ?)
	`, sourceType, sourceID, sourceID+"-chunk-%")
	if err != nil {
		return fmt.Errorf("store: delete embeddings for %s/%s: %w", sourceType, sourceID, err)
	}
	return nil
}
