package recall

import (
	"context"
	"fmt"

	"cogcore/internal/logging"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

// ReindexAll scans every session and rebuilds the vector index from scratch
// (§4.2.5). The lexical index (turns_fts) is already maintained
// incrementally by session.Store.AddTurn, so reindex-all's job here is
// limited to the vector index, whose embeddings can legitimately drift from
// a newer embedding engine or dimensionality change. Safe to interrupt:
// a half-rebuilt vector table is simply incomplete until the next full run,
// never inconsistent, since deletes and inserts are scoped per source id.
func ReindexAll(ctx context.Context, idx *store.Store, sessions *session.Store, vector *VectorIndex) error {
	timer := logging.StartTimer(logging.CategoryRecall, "ReindexAll")
	defer timer.Stop()

	metas, err := sessions.ListSessions(ctx, "")
	if err != nil {
		return fmt.Errorf("recall: reindex: list sessions: %w", err)
	}

	for _, meta := range metas {
		sess, err := sessions.LoadSession(ctx, meta.ID, meta.ProjectPath)
		if err != nil {
			logging.RecallDebug("reindex: skipping unreadable session %s: %v", meta.ID, err)
			continue
		}
		if err := idx.DeleteEmbeddingsBySource(ctx, "session", meta.ID); err != nil {
			logging.RecallDebug("reindex: failed clearing old embeddings for %s: %v", meta.ID, err)
		}
		for _, turn := range sess.Turns {
			if turn.Content == "" {
				continue
			}
			if err := vector.Index(ctx, "session", meta.ID, turn.Content); err != nil {
				logging.RecallDebug("reindex: failed embedding turn %d of %s: %v", turn.TurnNumber, meta.ID, err)
			}
		}
	}

	logging.Recall("reindex-all completed over %d sessions", len(metas))
	return nil
}
