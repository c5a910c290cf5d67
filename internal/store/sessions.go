package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cogcore/internal/errors"
)

// UpsertSession inserts or replaces a sessions row.
func (s *Store) UpsertSession(ctx context.Context, row SessionRow) error {
	_, err := s.Sessions.ExecContext(ctx, `
		INSERT INTO sessions (id, title, project_hash, project_path, agent_id, model_id,
			parent_session_id, branch, created_at, updated_at, total_cost, total_tokens,
			turn_count, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, updated_at=excluded.updated_at, total_cost=excluded.total_cost,
			total_tokens=excluded.total_tokens, turn_count=excluded.turn_count,
			tags=excluded.tags, metadata=excluded.metadata
	`,
		row.ID, row.Title, row.ProjectHash, row.ProjectPath, row.AgentID, row.ModelID,
		nullable(row.ParentSessionID), nullable(row.Branch), row.CreatedAt, row.UpdatedAt,
		row.TotalCost, row.TotalTokens, row.TurnCount, row.TagsJSON, row.MetadataJSON)
	if err != nil {
		return fmt.Errorf("store: upsert session %s: %w", row.ID, err)
	}
	return nil
}

// GetSession fetches a session row by id. Returns errors.SessionNotFound if absent.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRow, error) {
	var row SessionRow
	var parent, branch sql.NullString
	err := s.Sessions.QueryRowContext(ctx, `
		SELECT id, title, project_hash, project_path, agent_id, model_id, parent_session_id,
			branch, created_at, updated_at, total_cost, total_tokens, turn_count, tags, metadata
		FROM sessions WHERE id = ?
	`, id).Scan(&row.ID, &row.Title, &row.ProjectHash, &row.ProjectPath, &row.AgentID, &row.ModelID,
		&parent, &branch, &row.CreatedAt, &row.UpdatedAt, &row.TotalCost, &row.TotalTokens,
		&row.TurnCount, &row.TagsJSON, &row.MetadataJSON)
	if err == sql.ErrNoRows {
		return SessionRow{}, errors.SessionNotFound{SessionID: id}
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("store: get session %s: %w", id, err)
	}
	row.ParentSessionID = parent.String
	row.Branch = branch.String
	return row, nil
}

// ListSessions returns sessions ordered by updated_at descending, optionally
// filtered by project hash.
func (s *Store) ListSessions(ctx context.Context, projectHash string) ([]SessionRow, error) {
	query := `SELECT id, title, project_hash, project_path, agent_id, model_id, parent_session_id,
		branch, created_at, updated_at, total_cost, total_tokens, turn_count, tags, metadata
		FROM sessions`
	args := []interface{}{}
	if projectHash != "" {
		query += " WHERE project_hash = ?"
		args = append(args, projectHash)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.Sessions.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var row SessionRow
		var parent, branch sql.NullString
		if err := rows.Scan(&row.ID, &row.Title, &row.ProjectHash, &row.ProjectPath, &row.AgentID,
			&row.ModelID, &parent, &branch, &row.CreatedAt, &row.UpdatedAt, &row.TotalCost,
			&row.TotalTokens, &row.TurnCount, &row.TagsJSON, &row.MetadataJSON); err != nil {
			return nil, fmt.Errorf("store: scan session row: %w", err)
		}
		row.ParentSessionID = parent.String
		row.Branch = branch.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// SessionsUpdatedBetween returns sessions whose updated_at falls within
// [start, end), used by the consolidation scheduler to find which projects
// had activity on a given calendar date (§4.3.2).
func (s *Store) SessionsUpdatedBetween(ctx context.Context, start, end time.Time) ([]SessionRow, error) {
	rows, err := s.Sessions.QueryContext(ctx, `
		SELECT id, title, project_hash, project_path, agent_id, model_id, parent_session_id,
			branch, created_at, updated_at, total_cost, total_tokens, turn_count, tags, metadata
		FROM sessions WHERE updated_at >= ? AND updated_at < ?
		ORDER BY updated_at ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions updated between: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var row SessionRow
		var parent, branch sql.NullString
		if err := rows.Scan(&row.ID, &row.Title, &row.ProjectHash, &row.ProjectPath, &row.AgentID,
			&row.ModelID, &parent, &branch, &row.CreatedAt, &row.UpdatedAt, &row.TotalCost,
			&row.TotalTokens, &row.TurnCount, &row.TagsJSON, &row.MetadataJSON); err != nil {
			return nil, fmt.Errorf("store: scan session row: %w", err)
		}
		row.ParentSessionID = parent.String
		row.Branch = branch.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertTurn inserts a turn row and its FTS mirror, no-op if (session, turn_number)
// already exists (§4.1's idempotency guarantee).
func (s *Store) UpsertTurn(ctx context.Context, row TurnRow) error {
	tx, err := s.Sessions.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin turn tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO turns (session_id, turn_number, role, content, tool_calls,
			agent_id, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.SessionID, row.TurnNumber, row.Role, row.Content, row.ToolCallsRaw,
		nullable(row.AgentID), nullable(row.ModelID), row.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert turn %s/%d: %w", row.SessionID, row.TurnNumber, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns_fts (session_id, turn_number, content) VALUES (?, ?, ?)
	`, row.SessionID, row.TurnNumber, row.Content); err != nil {
		return fmt.Errorf("store: insert fts turn %s/%d: %w", row.SessionID, row.TurnNumber, err)
	}
	return tx.Commit()
}

// ListTurns returns every turn of a session ordered by turn_number ascending.
func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]TurnRow, error) {
	rows, err := s.Sessions.QueryContext(ctx, `
		SELECT session_id, turn_number, role, content, tool_calls, agent_id, model_id, created_at
		FROM turns WHERE session_id = ? ORDER BY turn_number ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []TurnRow
	for rows.Next() {
		var row TurnRow
		var agentID, modelID sql.NullString
		if err := rows.Scan(&row.SessionID, &row.TurnNumber, &row.Role, &row.Content,
			&row.ToolCallsRaw, &agentID, &modelID, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan turn row: %w", err)
		}
		row.AgentID = agentID.String
		row.ModelID = modelID.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// FTSHit is one lexical match against turns_fts, prior to session dedup.
type FTSHit struct {
	SessionID  string
	TurnNumber int
	Content    string
	BM25       float64
}

// SearchTurnsFTS runs a MATCH query against turns_fts, ranked by bm25
// (more negative is better, per SQLite's convention; callers invert the sign).
func (s *Store) SearchTurnsFTS(ctx context.Context, ftsQuery string, limit int) ([]FTSHit, error) {
	rows, err := s.Sessions.QueryContext(ctx, `
		SELECT session_id, turn_number, content, bm25(turns_fts)
		FROM turns_fts WHERE turns_fts MATCH ?
		ORDER BY bm25(turns_fts) ASC LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts search: %w", err)
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.SessionID, &h.TurnNumber, &h.Content, &h.BM25); err != nil {
			return nil, fmt.Errorf("store: scan fts hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
