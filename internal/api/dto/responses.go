package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/eshaffer321/ledgermatch/internal/domain/register"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

// HealthResponse represents the API health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Persistence bool   `json:"persistence"`
}

// NewHealthResponse creates an ok status response.
func NewHealthResponse(persistence bool) HealthResponse {
	return HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Persistence: persistence,
	}
}

// AllocationResponse is the part of a match applied to one invoice.
type AllocationResponse struct {
	LedgerID string  `json:"ledger_id"`
	Amount   float64 `json:"amount"`
}

// MatchResponse represents one accepted match.
type MatchResponse struct {
	BankTxnID        string               `json:"bank_txn_id"`
	BankTxnIDs       []string             `json:"bank_txn_ids"`
	InvoiceIDs       []string             `json:"invoice_ids"`
	Confidence       float64              `json:"confidence"`
	MatchType        string               `json:"match_type"`
	Difference       float64              `json:"difference"`
	MatchedAmount    float64              `json:"matched_amount"`
	RemainingBalance float64              `json:"remaining_balance"`
	Allocations      []AllocationResponse `json:"allocations,omitempty"`
	Reason           string               `json:"reason"`
	Date             string               `json:"date"`
}

// TransactionResponse represents an unmatched bank transaction.
type TransactionResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Reference   string  `json:"reference,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// InvoiceResponse represents an unmatched ledger entry.
type InvoiceResponse struct {
	ID           string  `json:"id"`
	Counterparty string  `json:"counterparty,omitempty"`
	Reference    string  `json:"reference,omitempty"`
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	Settled      float64 `json:"settled"`
	Outstanding  float64 `json:"outstanding"`
	Direction    string  `json:"direction"`
}

// SummaryResponse aggregates counts and totals for a run.
type SummaryResponse struct {
	TotalTransactions       int     `json:"total_transactions"`
	TotalInvoices           int     `json:"total_invoices"`
	TotalBankAmount         float64 `json:"total_bank_amount"`
	TotalInvoiceAmount      float64 `json:"total_invoice_amount"`
	Difference              float64 `json:"difference"`
	MatchedAmount           float64 `json:"matched_amount"`
	MatchPercentage         float64 `json:"match_percentage"`
	AutoMatchedCount        int     `json:"auto_matched_count"`
	AutoMatchedAmount       float64 `json:"auto_matched_amount"`
	SuggestedCount          int     `json:"suggested_count"`
	SuggestedAmount         float64 `json:"suggested_amount"`
	ManualReviewCount       int     `json:"manual_review_count"`
	ManualReviewAmount      float64 `json:"manual_review_amount"`
	UnmatchedBankCount      int     `json:"unmatched_bank_count"`
	UnmatchedBankAmount     float64 `json:"unmatched_bank_amount"`
	UnmatchedInvoicesCount  int     `json:"unmatched_invoices_count"`
	UnmatchedInvoicesAmount float64 `json:"unmatched_invoices_amount"`
	NormalizationErrorCount int     `json:"normalization_error_count"`
}

// RecordErrorResponse reports an input record excluded from matching.
type RecordErrorResponse struct {
	RecordID   string `json:"record_id"`
	RecordType string `json:"record_type"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
}

// ExposureResponse is the unmatched balance of one counterparty.
type ExposureResponse struct {
	Counterparty string  `json:"counterparty"`
	Count        int     `json:"count"`
	Amount       float64 `json:"amount"`
}

// CapacityNoticeResponse names a bound the run hit.
type CapacityNoticeResponse struct {
	Limit  string `json:"limit"`
	Detail string `json:"detail"`
}

// ReconciliationResponse is the full outcome of a matching run.
type ReconciliationResponse struct {
	AutoMatched             []MatchResponse          `json:"auto_matched"`
	Suggested               []MatchResponse          `json:"suggested"`
	ManualReview            []MatchResponse          `json:"manual_review"`
	UnmatchedBank           []TransactionResponse    `json:"unmatched_bank"`
	UnmatchedInvoices       []InvoiceResponse        `json:"unmatched_invoices"`
	Summary                 SummaryResponse          `json:"summary"`
	NormalizationErrors     []RecordErrorResponse    `json:"normalization_errors"`
	UnmatchedByCounterparty []ExposureResponse       `json:"unmatched_by_counterparty"`
	Truncated               bool                     `json:"truncated"`
	CapacityNotices         []CapacityNoticeResponse `json:"capacity_notices,omitempty"`
}

// RunMatchingResponse is the body returned by the run-matching endpoint.
type RunMatchingResponse struct {
	Success    bool                   `json:"success"`
	RunID      string                 `json:"run_id"`
	Persisted  bool                   `json:"persisted"`
	DurationMs int64                  `json:"duration_ms"`
	Data       ReconciliationResponse `json:"data"`
}

// InvoiceStatusResponse is the register status of one purchase invoice.
type InvoiceStatusResponse struct {
	InvoiceID       string   `json:"invoice_id"`
	VendorName      string   `json:"vendor_name"`
	VendorTaxID     string   `json:"vendor_tax_id,omitempty"`
	InvoiceNumber   string   `json:"invoice_number"`
	Amount          float64  `json:"amount"`
	Status          string   `json:"status"`
	VendorRecordIDs []string `json:"vendor_record_ids"`
	Confidence      float64  `json:"confidence"`
	Difference      float64  `json:"difference"`
}

// VendorExposureResponse totals a vendor's invoices missing from its feed.
type VendorExposureResponse struct {
	VendorName   string  `json:"vendor_name"`
	VendorTaxID  string  `json:"vendor_tax_id,omitempty"`
	InvoiceCount int     `json:"invoice_count"`
	Amount       float64 `json:"amount"`
}

// VendorRegisterData is the register report body.
type VendorRegisterData struct {
	Invoices       []InvoiceStatusResponse  `json:"invoices"`
	VendorsAtRisk  []VendorExposureResponse `json:"vendors_at_risk"`
	MissingInBooks []string                 `json:"missing_in_books"`
	AmountAtRisk   float64                  `json:"amount_at_risk"`
	Matching       ReconciliationResponse   `json:"matching"`
}

// VendorRegisterResponse is the body returned by the vendor-register endpoint.
type VendorRegisterResponse struct {
	Success    bool               `json:"success"`
	RunID      string             `json:"run_id"`
	Persisted  bool               `json:"persisted"`
	DurationMs int64              `json:"duration_ms"`
	Data       VendorRegisterData `json:"data"`
}

// RunResponse represents a stored run.
type RunResponse struct {
	ID                  string          `json:"id"`
	Kind                string          `json:"kind"`
	CreatedAt           string          `json:"created_at"`
	DurationMs          int64           `json:"duration_ms"`
	AutoMatched         int             `json:"auto_matched"`
	Suggested           int             `json:"suggested"`
	ManualReview        int             `json:"manual_review"`
	UnmatchedBank       int             `json:"unmatched_bank"`
	UnmatchedInvoices   int             `json:"unmatched_invoices"`
	NormalizationErrors int             `json:"normalization_errors"`
	Truncated           bool            `json:"truncated"`
	Settings            json.RawMessage `json:"settings,omitempty"`
	Summary             json.RawMessage `json:"summary,omitempty"`
	Result              json.RawMessage `json:"result,omitempty"`
}

// RunListResponse is a paginated list of runs.
type RunListResponse struct {
	Runs       []RunResponse `json:"runs"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// SettlementResponse represents one stored settlement.
type SettlementResponse struct {
	ID        int64   `json:"id"`
	RunID     string  `json:"run_id"`
	BankTxnID string  `json:"bank_txn_id"`
	Amount    float64 `json:"amount"`
	MatchType string  `json:"match_type"`
	CreatedAt string  `json:"created_at"`
}

// SettlementListResponse lists the settlements of one ledger entry.
type SettlementListResponse struct {
	LedgerID     string               `json:"ledger_id"`
	Settlements  []SettlementResponse `json:"settlements"`
	TotalSettled float64              `json:"total_settled"`
}

// NewReconciliationResponse converts an engine result for the wire.
func NewReconciliationResponse(r *matcher.Result) ReconciliationResponse {
	out := ReconciliationResponse{
		AutoMatched:             toMatches(r.AutoMatched),
		Suggested:               toMatches(r.Suggested),
		ManualReview:            toMatches(r.ManualReview),
		UnmatchedBank:           make([]TransactionResponse, 0, len(r.UnmatchedBank)),
		UnmatchedInvoices:       make([]InvoiceResponse, 0, len(r.UnmatchedInvoices)),
		Summary:                 toSummary(r.Summary),
		NormalizationErrors:     make([]RecordErrorResponse, 0, len(r.NormalizationErrors)),
		UnmatchedByCounterparty: make([]ExposureResponse, 0, len(r.UnmatchedExposure)),
		Truncated:               r.Truncated,
	}
	for _, t := range r.UnmatchedBank {
		out.UnmatchedBank = append(out.UnmatchedBank, toTransaction(t))
	}
	for _, e := range r.UnmatchedInvoices {
		out.UnmatchedInvoices = append(out.UnmatchedInvoices, toInvoice(e))
	}
	for _, e := range r.NormalizationErrors {
		out.NormalizationErrors = append(out.NormalizationErrors, RecordErrorResponse{
			RecordID:   e.RecordID,
			RecordType: string(e.RecordType),
			Kind:       string(e.Kind),
			Reason:     e.Reason,
		})
	}
	for _, e := range r.UnmatchedExposure {
		out.UnmatchedByCounterparty = append(out.UnmatchedByCounterparty, ExposureResponse{
			Counterparty: e.Counterparty,
			Count:        e.Count,
			Amount:       money(e.Amount),
		})
	}
	for _, c := range r.CapacityNotices {
		out.CapacityNotices = append(out.CapacityNotices, CapacityNoticeResponse{Limit: c.Limit, Detail: c.Detail})
	}
	return out
}

// NewVendorRegisterData converts a register report for the wire.
func NewVendorRegisterData(r *register.Report) VendorRegisterData {
	out := VendorRegisterData{
		Invoices:       make([]InvoiceStatusResponse, 0, len(r.Invoices)),
		VendorsAtRisk:  make([]VendorExposureResponse, 0, len(r.VendorsAtRisk)),
		MissingInBooks: append([]string{}, r.MissingInBooks...),
		AmountAtRisk:   money(r.AmountAtRisk),
		Matching:       NewReconciliationResponse(r.Result),
	}
	for _, s := range r.Invoices {
		out.Invoices = append(out.Invoices, InvoiceStatusResponse{
			InvoiceID:       s.InvoiceID,
			VendorName:      s.VendorName,
			VendorTaxID:     s.VendorTaxID,
			InvoiceNumber:   s.InvoiceNumber,
			Amount:          money(s.Amount),
			Status:          string(s.Status),
			VendorRecordIDs: append([]string{}, s.VendorRecordIDs...),
			Confidence:      s.Confidence,
			Difference:      money(s.Difference),
		})
	}
	for _, v := range r.VendorsAtRisk {
		out.VendorsAtRisk = append(out.VendorsAtRisk, VendorExposureResponse{
			VendorName:   v.VendorName,
			VendorTaxID:  v.VendorTaxID,
			InvoiceCount: v.InvoiceCount,
			Amount:       money(v.Amount),
		})
	}
	return out
}

// NewRunResponse converts a stored run. The full result is included only
// when withResult is set.
func NewRunResponse(r *storage.RunRecord, withResult bool) RunResponse {
	out := RunResponse{
		ID:                  r.ID,
		Kind:                r.Kind,
		CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
		DurationMs:          r.DurationMs,
		AutoMatched:         r.AutoMatched,
		Suggested:           r.Suggested,
		ManualReview:        r.ManualReview,
		UnmatchedBank:       r.UnmatchedBank,
		UnmatchedInvoices:   r.UnmatchedInvoices,
		NormalizationErrors: r.NormalizationErrors,
		Truncated:           r.Truncated,
		Settings:            rawJSON(r.SettingsJSON),
		Summary:             rawJSON(r.SummaryJSON),
	}
	if withResult {
		out.Result = rawJSON(r.ResultJSON)
	}
	return out
}

// NewSettlementListResponse converts the settlements of one ledger entry.
func NewSettlementListResponse(ledgerID string, settlements []storage.Settlement) SettlementListResponse {
	out := SettlementListResponse{
		LedgerID:    ledgerID,
		Settlements: make([]SettlementResponse, 0, len(settlements)),
	}
	total := decimal.Zero
	for _, s := range settlements {
		total = total.Add(s.Amount)
		out.Settlements = append(out.Settlements, SettlementResponse{
			ID:        s.ID,
			RunID:     s.RunID,
			BankTxnID: s.BankTxnID,
			Amount:    money(s.Amount),
			MatchType: s.MatchType,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	out.TotalSettled = money(total)
	return out
}

func toMatches(matches []matcher.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		resp := MatchResponse{
			BankTxnID:        m.BankTxnID,
			BankTxnIDs:       append([]string{}, m.BankTxnIDs...),
			InvoiceIDs:       append([]string{}, m.InvoiceIDs...),
			Confidence:       m.Confidence,
			MatchType:        string(m.MatchType),
			Difference:       money(m.Difference),
			MatchedAmount:    money(m.MatchedAmount),
			RemainingBalance: money(m.RemainingBalance),
			Reason:           m.Reason,
			Date:             m.Date.String(),
		}
		for _, a := range m.Allocations {
			resp.Allocations = append(resp.Allocations, AllocationResponse{LedgerID: a.LedgerID, Amount: money(a.Amount)})
		}
		out = append(out, resp)
	}
	return out
}

func toTransaction(t records.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID,
		Date:        t.Date.String(),
		Reference:   t.Reference,
		Description: t.Description,
		Amount:      money(t.Amount),
	}
}

func toInvoice(e records.LedgerEntry) InvoiceResponse {
	return InvoiceResponse{
		ID:           e.ID,
		Counterparty: e.Counterparty,
		Reference:    e.Reference,
		Date:         e.Date.String(),
		Amount:       money(e.Amount),
		Settled:      money(e.Settled),
		Outstanding:  money(e.Outstanding()),
		Direction:    string(e.Direction),
	}
}

func toSummary(s matcher.Summary) SummaryResponse {
	return SummaryResponse{
		TotalTransactions:       s.TotalTransactions,
		TotalInvoices:           s.TotalInvoices,
		TotalBankAmount:         money(s.TotalBankAmount),
		TotalInvoiceAmount:      money(s.TotalInvoiceAmount),
		Difference:              money(s.Difference),
		MatchedAmount:           money(s.MatchedAmount),
		MatchPercentage:         s.MatchPercentage,
		AutoMatchedCount:        s.AutoMatchedCount,
		AutoMatchedAmount:       money(s.AutoMatchedAmount),
		SuggestedCount:          s.SuggestedCount,
		SuggestedAmount:         money(s.SuggestedAmount),
		ManualReviewCount:       s.ManualReviewCount,
		ManualReviewAmount:      money(s.ManualReviewAmount),
		UnmatchedBankCount:      s.UnmatchedBankCount,
		UnmatchedBankAmount:     money(s.UnmatchedBankAmount),
		UnmatchedInvoicesCount:  s.UnmatchedInvoicesCount,
		UnmatchedInvoicesAmount: money(s.UnmatchedInvoicesAmount),
		NormalizationErrorCount: s.NormalizationErrorCount,
	}
}

// money renders a two-place amount as a JSON number.
func money(d decimal.Decimal) float64 {
	return d.Round(records.AmountPlaces).InexactFloat64()
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
