package store

import (
	"context"
	"fmt"
	"time"
)

// RecordRegistryEvent appends an observable registry event (§6.4) for
// post-hoc inspection and the autonomous manager's crash-window accounting.
func (s *Store) RecordRegistryEvent(ctx context.Context, serverID, eventType, detailJSON string) error {
	_, err := s.Agent.ExecContext(ctx, `
		INSERT INTO registry_events (server_id, event_type, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, serverID, eventType, detailJSON, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: record registry event for %s: %w", serverID, err)
	}
	return nil
}

// RecentRegistryEvents returns the most recent events for a server, newest first.
func (s *Store) RecentRegistryEvents(ctx context.Context, serverID string, limit int) ([]RegistryEventRow, error) {
	rows, err := s.Agent.QueryContext(ctx, `
		SELECT id, server_id, event_type, detail, created_at FROM registry_events
		WHERE server_id = ? ORDER BY created_at DESC LIMIT ?
	`, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent registry events for %s: %w", serverID, err)
	}
	defer rows.Close()

	var out []RegistryEventRow
	for rows.Next() {
		var r RegistryEventRow
		var createdAtMillis int64
		if err := rows.Scan(&r.ID, &r.ServerID, &r.EventType, &r.DetailJSON, &createdAtMillis); err != nil {
			return nil, fmt.Errorf("store: scan registry event: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAtMillis)
		out = append(out, r)
	}
	return out, rows.Err()
}
