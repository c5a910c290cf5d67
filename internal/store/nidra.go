package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LoadNidraState reads the singleton nidra_state row (§3.4, §6.5).
func (s *Store) LoadNidraState(ctx context.Context) (NidraStateRow, error) {
	var row NidraStateRow
	var consolidationPhase, monthlyReport, yearlyReport sql.NullString
	var start, end sql.NullInt64
	err := s.Agent.QueryRowContext(ctx, `
		SELECT current_state, last_state_change, last_heartbeat, last_consolidation_start,
			last_consolidation_end, consolidation_phase, consolidation_progress,
			last_monthly_report, last_yearly_report, pending_backfill_days, updated_at
		FROM nidra_state WHERE id = 1
	`).Scan(&row.CurrentState, &row.LastStateChangeMillis, &row.LastHeartbeatMillis, &start, &end,
		&consolidationPhase, &row.ConsolidationProgress, &monthlyReport, &yearlyReport,
		&row.PendingBackfillJSON, &row.UpdatedAtMillis)
	if err != nil {
		return NidraStateRow{}, fmt.Errorf("store: load nidra state: %w", err)
	}
	if start.Valid {
		row.LastConsolidationStart = &start.Int64
	}
	if end.Valid {
		row.LastConsolidationEnd = &end.Int64
	}
	row.ConsolidationPhase = consolidationPhase.String
	row.LastMonthlyReport = monthlyReport.String
	row.LastYearlyReport = yearlyReport.String
	return row, nil
}

// SaveNidraState overwrites the singleton row. The CHECK(id=1) constraint and
// this always-id-1 update together enforce §3.4's "exactly one row" invariant.
func (s *Store) SaveNidraState(ctx context.Context, row NidraStateRow) error {
	_, err := s.Agent.ExecContext(ctx, `
		UPDATE nidra_state SET
			current_state = ?, last_state_change = ?, last_heartbeat = ?,
			last_consolidation_start = ?, last_consolidation_end = ?,
			consolidation_phase = ?, consolidation_progress = ?,
			last_monthly_report = ?, last_yearly_report = ?,
			pending_backfill_days = ?, updated_at = ?
		WHERE id = 1
	`, row.CurrentState, row.LastStateChangeMillis, row.LastHeartbeatMillis,
		row.LastConsolidationStart, row.LastConsolidationEnd,
		nullable(row.ConsolidationPhase), row.ConsolidationProgress,
		nullable(row.LastMonthlyReport), nullable(row.LastYearlyReport),
		row.PendingBackfillJSON, row.UpdatedAtMillis)
	if err != nil {
		return fmt.Errorf("store: save nidra state: %w", err)
	}
	return nil
}
