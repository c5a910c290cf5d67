package recall

import (
	"context"
	"fmt"
	"time"

	"cogcore/internal/store"
)

// GraphResult is one node reached by the bounded adjacency walk, scored by
// inverse hop distance so closer nodes rank higher.
type GraphResult struct {
	EntityID string
	Score    float64
	Hops     int
}

// GraphRetriever performs a bounded breadth-first walk over the plain
// adjacency table in vectors.db (knowledge_graph). It replaces a
// Datalog-style rule engine: see DESIGN.md for why a relational rule
// compiler did not fit this mutable, per-query traversal.
type GraphRetriever struct {
	idx      *store.Store
	maxHops  int
	maxNodes int
}

// NewGraphRetriever bounds the walk to maxHops hops and maxNodes visited
// nodes, keeping §5's "no unbounded CPU spikes inline" guarantee.
func NewGraphRetriever(idx *store.Store, maxHops, maxNodes int) *GraphRetriever {
	if maxHops <= 0 {
		maxHops = 2
	}
	if maxNodes <= 0 {
		maxNodes = 200
	}
	return &GraphRetriever{idx: idx, maxHops: maxHops, maxNodes: maxNodes}
}

// Walk starts from seed entities (e.g. tokens extracted from the query) and
// returns every reachable node within maxHops, scored 1/(1+hops).
func (g *GraphRetriever) Walk(ctx context.Context, seeds []string) ([]GraphResult, error) {
	visited := map[string]int{}
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := visited[s]; !ok {
			visited[s] = 0
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 && len(visited) < g.maxNodes {
		current := queue[0]
		queue = queue[1:]
		hops := visited[current]
		if hops >= g.maxHops {
			continue
		}
		edges, err := g.idx.Neighbors(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("recall: graph neighbors of %s: %w", current, err)
		}
		for _, e := range edges {
			next := e.EntityB
			if next == current {
				next = e.EntityA
			}
			if _, seen := visited[next]; seen {
				continue
			}
			if len(visited) >= g.maxNodes {
				break
			}
			visited[next] = hops + 1
			queue = append(queue, next)
		}
	}

	out := make([]GraphResult, 0, len(visited))
	for id, hops := range visited {
		out = append(out, GraphResult{EntityID: id, Score: 1.0 / float64(1+hops), Hops: hops})
	}
	return out, nil
}

// LinkToSession records a co-occurrence edge between a source session and
// an entity mentioned in it, feeding the adjacency table that Walk
// traverses. Weight accumulates via UpsertEdge's upsert semantics each time
// the same pair is linked again.
func (g *GraphRetriever) LinkToSession(ctx context.Context, sessionID, entity string) error {
	return g.idx.UpsertEdge(ctx, store.KnowledgeEdge{
		EntityA:   sessionID,
		Relation:  "mentions",
		EntityB:   entity,
		Weight:    1.0,
		UpdatedAt: time.Now().UTC(),
	})
}
