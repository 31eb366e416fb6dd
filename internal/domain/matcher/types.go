package matcher

import (
	"math/bits"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
)

// MatchType names the rule that produced a match.
type MatchType string

const (
	MatchExact           MatchType = "exact"
	MatchReference       MatchType = "reference"
	MatchName            MatchType = "name"
	MatchPartialPayment  MatchType = "partial_payment"
	MatchBulkPayment     MatchType = "bulk_payment"
	MatchAmountTolerance MatchType = "amount_tolerance"
	MatchDateTolerance   MatchType = "date_tolerance"
	MatchBankCharge      MatchType = "bank_charge"
)

// Tier is the review bucket of an accepted match.
type Tier string

const (
	TierAuto      Tier = "auto_matched"
	TierSuggested Tier = "suggested"
	TierManual    Tier = "manual_review"
)

// Signals is the set of evidence a candidate was scored on.
type Signals uint8

const (
	SignalExactAmount Signals = 1 << iota
	SignalAmountWithinTolerance
	SignalSameDate
	SignalReference
	SignalName
)

// Has reports whether every signal in o is present.
func (s Signals) Has(o Signals) bool {
	return s&o == o
}

// Count returns the number of signals present.
func (s Signals) Count() int {
	return bits.OnesCount8(uint8(s))
}

// Allocation is the portion of a match applied to one ledger entry.
type Allocation struct {
	LedgerID string          `json:"ledger_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// Candidate is a proposed pairing of one or more transactions with one or
// more ledger entries. Multi-member candidates compete for all their ids
// atomically in the solver.
type Candidate struct {
	TransactionIDs   []string
	LedgerIDs        []string
	Confidence       float64
	Type             MatchType
	Reason           string
	Signals          Signals
	Difference       decimal.Decimal // transaction total minus the compared ledger amount
	MatchedAmount    decimal.Decimal // transaction total
	RemainingBalance decimal.Decimal
	Allocations      []Allocation

	// Date and PrimaryID identify the earliest transaction and drive
	// tie-breaking and output order.
	Date      records.Date
	PrimaryID string
}

// Match is a candidate accepted by the solver and assigned a tier.
type Match struct {
	BankTxnID        string          `json:"bank_txn_id"`
	BankTxnIDs       []string        `json:"bank_txn_ids"`
	InvoiceIDs       []string        `json:"invoice_ids"`
	Confidence       float64         `json:"confidence"`
	MatchType        MatchType       `json:"match_type"`
	Difference       decimal.Decimal `json:"difference"`
	MatchedAmount    decimal.Decimal `json:"matched_amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Allocations      []Allocation    `json:"allocations,omitempty"`
	Reason           string          `json:"reason"`
	Tier             Tier            `json:"tier"`
	Date             records.Date    `json:"date"`
}

// Request is the raw input of a reconciliation run.
type Request struct {
	BankTransactions []records.RawTransaction
	LedgerEntries    []records.RawLedgerEntry
}

// Exposure totals unmatched ledger entries for one counterparty.
type Exposure struct {
	Counterparty string          `json:"counterparty"`
	Count        int             `json:"count"`
	Amount       decimal.Decimal `json:"amount"`
}

// Summary holds counts and amount totals per bucket.
type Summary struct {
	TotalTransactions int `json:"total_transactions"`
	TotalInvoices     int `json:"total_invoices"`

	TotalBankAmount    decimal.Decimal `json:"total_bank_amount"`
	TotalInvoiceAmount decimal.Decimal `json:"total_invoice_amount"`
	Difference         decimal.Decimal `json:"difference"`
	MatchedAmount      decimal.Decimal `json:"matched_amount"`
	MatchPercentage    float64         `json:"match_percentage"`

	AutoMatchedCount  int             `json:"auto_matched_count"`
	AutoMatchedAmount decimal.Decimal `json:"auto_matched_amount"`

	SuggestedCount  int             `json:"suggested_count"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`

	ManualReviewCount  int             `json:"manual_review_count"`
	ManualReviewAmount decimal.Decimal `json:"manual_review_amount"`

	UnmatchedBankCount  int             `json:"unmatched_bank_count"`
	UnmatchedBankAmount decimal.Decimal `json:"unmatched_bank_amount"`

	UnmatchedInvoicesCount  int             `json:"unmatched_invoices_count"`
	UnmatchedInvoicesAmount decimal.Decimal `json:"unmatched_invoices_amount"`

	NormalizationErrorCount int `json:"normalization_error_count"`
}

// Result is the full disposition of one run.
type Result struct {
	AutoMatched         []Match               `json:"auto_matched"`
	Suggested           []Match               `json:"suggested"`
	ManualReview        []Match               `json:"manual_review"`
	UnmatchedBank       []records.Transaction `json:"unmatched_bank"`
	UnmatchedInvoices   []records.LedgerEntry `json:"unmatched_invoices"`
	Summary             Summary               `json:"summary"`
	NormalizationErrors []records.RecordError `json:"normalization_errors"`
	UnmatchedExposure   []Exposure            `json:"unmatched_by_counterparty"`
	Truncated           bool                  `json:"truncated"`
	CapacityNotices     []CapacityError       `json:"capacity_notices,omitempty"`
}

// Matches returns every accepted match across all tiers.
func (r *Result) Matches() []Match {
	out := make([]Match, 0, len(r.AutoMatched)+len(r.Suggested)+len(r.ManualReview))
	out = append(out, r.AutoMatched...)
	out = append(out, r.Suggested...)
	out = append(out, r.ManualReview...)
	return out
}

// CapacityErr returns the first capacity limit the run hit, or nil.
func (r *Result) CapacityErr() error {
	if len(r.CapacityNotices) == 0 {
		return nil
	}
	return &r.CapacityNotices[0]
}
