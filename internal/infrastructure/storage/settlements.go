package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// sqliteMaxParams stays under SQLite's default bound on host parameters.
const sqliteMaxParams = 500

// GetSettledAmounts sums stored settlements per ledger id, skipping those made
// by the excluded bank transactions. Amounts are summed as decimals, not in
// SQL, since they are stored as text.
func (s *Storage) GetSettledAmounts(ctx context.Context, ledgerIDs, excludeBankTxnIDs []string) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal)
	excluded := make(map[string]bool, len(excludeBankTxnIDs))
	for _, id := range excludeBankTxnIDs {
		excluded[id] = true
	}

	for start := 0; start < len(ledgerIDs); start += sqliteMaxParams {
		end := min(start+sqliteMaxParams, len(ledgerIDs))
		chunk := ledgerIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT ledger_id, bank_txn_id, amount FROM ledger_settlements WHERE ledger_id IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query settlements: %w", err)
		}

		for rows.Next() {
			var id, bankTxnID string
			var amount decimal.Decimal
			if err := rows.Scan(&id, &bankTxnID, &amount); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan settlement: %w", err)
			}
			if excluded[bankTxnID] {
				continue
			}
			totals[id] = totals[id].Add(amount)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return totals, nil
}

// ListSettlements returns every settlement for one ledger entry, oldest first
func (s *Storage) ListSettlements(ctx context.Context, ledgerID string) ([]Settlement, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, ledger_id, run_id, bank_txn_id, amount, match_type, created_at
	FROM ledger_settlements
	WHERE ledger_id = ?
	ORDER BY created_at, id
	`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements for %s: %w", ledgerID, err)
	}
	defer func() { _ = rows.Close() }()

	settlements := make([]Settlement, 0)
	for rows.Next() {
		var st Settlement
		if err := rows.Scan(&st.ID, &st.LedgerID, &st.RunID, &st.BankTxnID, &st.Amount, &st.MatchType, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}
