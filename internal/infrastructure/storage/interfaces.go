package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	RunRepository
	SettlementRepository
	Close() error
}

// RunRepository handles reconciliation run history
type RunRepository interface {
	// SaveRun stores a run and its settlements in one transaction
	SaveRun(ctx context.Context, run *RunRecord, settlements []Settlement) error

	// GetRun retrieves a run by ID, returning nil when it does not exist
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs newest first, without their result payloads
	ListRuns(ctx context.Context, filters RunFilters) (*RunListResult, error)
}

// SettlementRepository handles amounts applied to ledger entries by past runs
type SettlementRepository interface {
	// GetSettledAmounts sums stored settlements per ledger id, ignoring
	// settlements made by the excluded bank transactions. Ids with no
	// settlements are absent from the map.
	GetSettledAmounts(ctx context.Context, ledgerIDs, excludeBankTxnIDs []string) (map[string]decimal.Decimal, error)

	// ListSettlements returns every settlement for one ledger entry, oldest first
	ListSettlements(ctx context.Context, ledgerID string) ([]Settlement, error)
}

// RunFilters defines filters for listing runs
type RunFilters struct {
	Kind   string // Filter by run kind (empty = all)
	Limit  int    // Max results (0 = default 20)
	Offset int    // Pagination offset
}

// RunListResult contains paginated run results
type RunListResult struct {
	Runs       []*RunRecord `json:"runs"`
	TotalCount int          `json:"total_count"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}

const defaultRunLimit = 20

func (f RunFilters) limit() int {
	if f.Limit <= 0 {
		return defaultRunLimit
	}
	return f.Limit
}
