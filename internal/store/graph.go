package store

import (
	"context"
	"fmt"
)

// UpsertEdge inserts or reinforces a knowledge-graph edge. Repeated calls for
// the same (a, relation, b) triple bump the weight rather than duplicate it.
func (s *Store) UpsertEdge(ctx context.Context, edge KnowledgeEdge) error {
	_, err := s.Vectors.ExecContext(ctx, `
		INSERT INTO knowledge_graph (entity_a, relation, entity_b, weight, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_a, relation, entity_b) DO UPDATE SET
			weight = knowledge_graph.weight + excluded.weight, updated_at = excluded.updated_at
	`, edge.EntityA, edge.Relation, edge.EntityB, edge.Weight, edge.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert edge %s-%s->%s: %w", edge.EntityA, edge.Relation, edge.EntityB, err)
	}
	return nil
}

// Neighbors returns every edge touching entity, in either direction, used by
// the graph retriever's bounded BFS.
func (s *Store) Neighbors(ctx context.Context, entity string) ([]KnowledgeEdge, error) {
	rows, err := s.Vectors.QueryContext(ctx, `
		SELECT entity_a, relation, entity_b, weight, updated_at FROM knowledge_graph
		WHERE entity_a = ? OR entity_b = ?
		ORDER BY weight DESC
	`, entity, entity)
	if err != nil {
		return nil, fmt.Errorf("store: neighbors of %s: %w", entity, err)
	}
	defer rows.Close()

	var out []KnowledgeEdge
	for rows.Next() {
		var e KnowledgeEdge
		if err := rows.Scan(&e.EntityA, &e.Relation, &e.EntityB, &e.Weight, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
