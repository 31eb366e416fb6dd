package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveRun stores a run and its settlements in one transaction
func (s *Storage) SaveRun(ctx context.Context, run *RunRecord, settlements []Settlement) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO reconciliation_runs
	(id, kind, created_at, duration_ms, auto_matched, suggested, manual_review,
	 unmatched_bank, unmatched_invoices, normalization_errors, truncated,
	 settings_json, summary_json, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Kind,
		run.CreatedAt,
		run.DurationMs,
		run.AutoMatched,
		run.Suggested,
		run.ManualReview,
		run.UnmatchedBank,
		run.UnmatchedInvoices,
		run.NormalizationErrors,
		run.Truncated,
		jsonOrEmpty(run.SettingsJSON),
		jsonOrEmpty(run.SummaryJSON),
		jsonOrEmpty(run.ResultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	if len(settlements) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ledger_settlements
		(ledger_id, run_id, bank_txn_id, amount, match_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare settlement insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range settlements {
			st := &settlements[i]
			st.RunID = run.ID
			st.CreatedAt = run.CreatedAt
			res, err := stmt.ExecContext(ctx,
				st.LedgerID, st.RunID, st.BankTxnID, st.Amount.String(), st.MatchType, st.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to save settlement for %s: %w", st.LedgerID, err)
			}
			// An ignored row means this bank transaction already settled the entry.
			if n, err := res.RowsAffected(); err != nil || n == 0 {
				continue
			}
			if id, err := res.LastInsertId(); err == nil {
				st.ID = id
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by ID, returning nil when it does not exist
func (s *Storage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, kind, created_at, duration_ms, auto_matched, suggested, manual_review,
	       unmatched_bank, unmatched_invoices, normalization_errors, truncated,
	       settings_json, summary_json, result_json
	FROM reconciliation_runs WHERE id = ?
	`, id)

	run := &RunRecord{}
	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.CreatedAt,
		&run.DurationMs,
		&run.AutoMatched,
		&run.Suggested,
		&run.ManualReview,
		&run.UnmatchedBank,
		&run.UnmatchedInvoices,
		&run.NormalizationErrors,
		&run.Truncated,
		&run.SettingsJSON,
		&run.SummaryJSON,
		&run.ResultJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest first, without their result payloads
func (s *Storage) ListRuns(ctx context.Context, filters RunFilters) (*RunListResult, error) {
	var where []string
	var args []any
	if filters.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filters.Kind)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	result := &RunListResult{
		Runs:   make([]*RunRecord, 0),
		Limit:  filters.limit(),
		Offset: filters.Offset,
	}

	countQuery := "SELECT COUNT(*) FROM reconciliation_runs " + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&result.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `
	SELECT id, kind, created_at, duration_ms, auto_matched, suggested, manual_review,
	       unmatched_bank, unmatched_invoices, normalization_errors, truncated,
	       settings_json, summary_json
	FROM reconciliation_runs ` + whereClause + `
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`
	args = append(args, result.Limit, result.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		run := &RunRecord{}
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&run.CreatedAt,
			&run.DurationMs,
			&run.AutoMatched,
			&run.Suggested,
			&run.ManualReview,
			&run.UnmatchedBank,
			&run.UnmatchedInvoices,
			&run.NormalizationErrors,
			&run.Truncated,
			&run.SettingsJSON,
			&run.SummaryJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result.Runs = append(result.Runs, run)
	}
	return result, rows.Err()
}

func jsonOrEmpty(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
