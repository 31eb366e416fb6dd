package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Run kinds
const (
	KindBankReconciliation = "bank_reconciliation"
	KindVendorRegister     = "vendor_register"
)

// RunRecord is one stored reconciliation run. Counts are denormalized from
// the summary for listing; the full result is kept as JSON.
type RunRecord struct {
	ID                  string    `json:"id"`
	Kind                string    `json:"kind"`
	CreatedAt           time.Time `json:"created_at"`
	DurationMs          int64     `json:"duration_ms"`
	AutoMatched         int       `json:"auto_matched"`
	Suggested           int       `json:"suggested"`
	ManualReview        int       `json:"manual_review"`
	UnmatchedBank       int       `json:"unmatched_bank"`
	UnmatchedInvoices   int       `json:"unmatched_invoices"`
	NormalizationErrors int       `json:"normalization_errors"`
	Truncated           bool      `json:"truncated"`

	// Detailed data stored as JSON
	SettingsJSON string `json:"-"`
	SummaryJSON  string `json:"-"`
	ResultJSON   string `json:"-"` // Empty in list results
}

// Settlement is an amount a run applied against a ledger entry.
type Settlement struct {
	ID        int64           `json:"id"`
	LedgerID  string          `json:"ledger_id"`
	RunID     string          `json:"run_id"`
	BankTxnID string          `json:"bank_txn_id"`
	Amount    decimal.Decimal `json:"amount"`
	MatchType string          `json:"match_type"`
	CreatedAt time.Time       `json:"created_at"`
}
