// Package register reconciles a company's purchase register against the
// invoice feed its vendors reported to the tax authority.
//
// The problem has the same shape as bank reconciliation: vendor-reported
// records play the statement side (as debits, since they settle payables)
// and purchase invoices play the ledger side. The report adds a per-invoice
// status and the amount at risk per vendor for invoices the vendors never
// reported.
package register

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
)

// VendorRecord is one invoice as reported by the vendor.
type VendorRecord struct {
	ID            string
	VendorName    string
	VendorTaxID   string
	InvoiceNumber string
	InvoiceDate   string
	Amount        string
}

// PurchaseInvoice is one invoice in the company's purchase register.
type PurchaseInvoice struct {
	ID            string
	VendorName    string
	VendorTaxID   string
	InvoiceNumber string
	InvoiceDate   string
	Amount        string
}

// Request is the input of one register reconciliation.
type Request struct {
	VendorRecords    []VendorRecord
	PurchaseInvoices []PurchaseInvoice
}

// Status is the disposition of one purchase invoice or vendor record.
type Status string

const (
	StatusMatched        Status = "matched"
	StatusAmountMismatch Status = "amount_mismatch"
	StatusPendingReview  Status = "pending_review"
	StatusMissingInFeed  Status = "missing_in_vendor_feed"
	StatusMissingInBooks Status = "missing_in_books"
)

// InvoiceStatus reports how one purchase invoice reconciled.
type InvoiceStatus struct {
	InvoiceID       string          `json:"invoice_id"`
	VendorName      string          `json:"vendor_name"`
	VendorTaxID     string          `json:"vendor_tax_id,omitempty"`
	InvoiceNumber   string          `json:"invoice_number"`
	Amount          decimal.Decimal `json:"amount"`
	Status          Status          `json:"status"`
	VendorRecordIDs []string        `json:"vendor_record_ids"`
	Confidence      float64         `json:"confidence"`
	Difference      decimal.Decimal `json:"difference"`
}

// VendorExposure totals purchase invoices a vendor has not reported.
type VendorExposure struct {
	VendorName   string          `json:"vendor_name"`
	VendorTaxID  string          `json:"vendor_tax_id,omitempty"`
	InvoiceCount int             `json:"invoice_count"`
	Amount       decimal.Decimal `json:"amount"`
}

// Report is the outcome of a register reconciliation.
type Report struct {
	Result         *matcher.Result  `json:"result"`
	Invoices       []InvoiceStatus  `json:"invoices"`
	VendorsAtRisk  []VendorExposure `json:"vendors_at_risk"`
	MissingInBooks []string         `json:"missing_in_books"`
	AmountAtRisk   decimal.Decimal  `json:"amount_at_risk"`
}

// Reconciler matches vendor feeds against purchase registers.
type Reconciler struct {
	engine *matcher.Engine
}

// NewReconciler creates a reconciler. Bank charge absorption does not apply
// to vendor feeds and is always off.
func NewReconciler(settings matcher.Settings, logger *slog.Logger) (*Reconciler, error) {
	engine, err := matcher.NewEngine(Settings(settings), logger)
	if err != nil {
		return nil, err
	}
	return &Reconciler{engine: engine}, nil
}

// Settings adapts engine settings for register matching.
func Settings(s matcher.Settings) matcher.Settings {
	s.AutoMatchBankCharges = false
	return s
}

// ToRaw converts the register request into engine input.
func ToRaw(req Request) matcher.Request {
	txns := make([]records.RawTransaction, 0, len(req.VendorRecords))
	for _, v := range req.VendorRecords {
		txns = append(txns, records.RawTransaction{
			ID:          v.ID,
			Date:        v.InvoiceDate,
			Reference:   v.InvoiceNumber,
			Description: v.VendorName,
			Debit:       v.Amount,
		})
	}

	entries := make([]records.RawLedgerEntry, 0, len(req.PurchaseInvoices))
	for _, p := range req.PurchaseInvoices {
		entries = append(entries, records.RawLedgerEntry{
			ID:           p.ID,
			Counterparty: p.VendorName,
			Reference:    p.InvoiceNumber,
			Date:         p.InvoiceDate,
			Amount:       p.Amount,
			Direction:    string(records.Payable),
		})
	}

	return matcher.Request{BankTransactions: txns, LedgerEntries: entries}
}

// Reconcile matches the vendor feed against the purchase register.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Report, error) {
	result, err := r.engine.Reconcile(ctx, ToRaw(req))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return BuildReport(req, result), nil
}

// BuildReport derives per-invoice statuses and vendor exposure from an
// engine result.
func BuildReport(req Request, result *matcher.Result) *Report {
	report := &Report{
		Result:         result,
		Invoices:       make([]InvoiceStatus, 0, len(req.PurchaseInvoices)),
		VendorsAtRisk:  make([]VendorExposure, 0),
		MissingInBooks: make([]string, 0, len(result.UnmatchedBank)),
		AmountAtRisk:   decimal.Zero,
	}

	byInvoice := make(map[string]matcher.Match)
	for _, m := range result.Matches() {
		for _, id := range m.InvoiceIDs {
			byInvoice[id] = m
		}
	}

	taxIDs := make(map[string]string, len(req.PurchaseInvoices))
	for _, p := range req.PurchaseInvoices {
		id := strings.TrimSpace(p.ID)
		if _, seen := taxIDs[id]; !seen {
			taxIDs[id] = strings.ToUpper(strings.TrimSpace(p.VendorTaxID))
		}
	}

	// Only normalized invoices have a disposition; rejected ones are in
	// result.NormalizationErrors.
	unmatched := make(map[string]records.LedgerEntry, len(result.UnmatchedInvoices))
	for _, e := range result.UnmatchedInvoices {
		unmatched[e.ID] = e
	}
	reported := make(map[string]bool)
	for _, p := range req.PurchaseInvoices {
		id := strings.TrimSpace(p.ID)
		if reported[id] {
			continue
		}
		if m, ok := byInvoice[id]; ok {
			reported[id] = true
			report.Invoices = append(report.Invoices, matchedStatus(id, p, taxIDs[id], m))
			continue
		}
		e, ok := unmatched[id]
		if !ok {
			continue
		}
		reported[id] = true
		report.Invoices = append(report.Invoices, InvoiceStatus{
			InvoiceID:       e.ID,
			VendorName:      e.Counterparty,
			VendorTaxID:     taxIDs[e.ID],
			InvoiceNumber:   e.Reference,
			Amount:          e.Outstanding(),
			Status:          StatusMissingInFeed,
			VendorRecordIDs: []string{},
			Difference:      decimal.Zero,
		})
	}

	report.VendorsAtRisk = vendorExposure(result.UnmatchedInvoices, taxIDs)
	for _, v := range report.VendorsAtRisk {
		report.AmountAtRisk = report.AmountAtRisk.Add(v.Amount)
	}
	for _, t := range result.UnmatchedBank {
		report.MissingInBooks = append(report.MissingInBooks, t.ID)
	}
	return report
}

func matchedStatus(id string, p PurchaseInvoice, taxID string, m matcher.Match) InvoiceStatus {
	status := StatusMatched
	switch {
	case m.Tier != matcher.TierAuto:
		status = StatusPendingReview
	case !m.Difference.IsZero() || !m.RemainingBalance.IsZero():
		status = StatusAmountMismatch
	}

	amount, err := records.ParseAmount(p.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return InvoiceStatus{
		InvoiceID:       id,
		VendorName:      strings.TrimSpace(p.VendorName),
		VendorTaxID:     taxID,
		InvoiceNumber:   strings.TrimSpace(p.InvoiceNumber),
		Amount:          amount,
		Status:          status,
		VendorRecordIDs: m.BankTxnIDs,
		Confidence:      m.Confidence,
		Difference:      m.Difference,
	}
}

// vendorExposure groups unreported invoices by tax id when known, else by
// vendor name, largest amount first.
func vendorExposure(entries []records.LedgerEntry, taxIDs map[string]string) []VendorExposure {
	byKey := make(map[string]*VendorExposure)
	var order []string
	for _, e := range entries {
		taxID := taxIDs[e.ID]
		key := "tax:" + taxID
		if taxID == "" {
			key = "name:" + strings.ToUpper(e.Counterparty)
		}
		x, ok := byKey[key]
		if !ok {
			x = &VendorExposure{VendorName: e.Counterparty, VendorTaxID: taxID, Amount: decimal.Zero}
			byKey[key] = x
			order = append(order, key)
		}
		x.InvoiceCount++
		x.Amount = x.Amount.Add(e.Outstanding())
	}

	out := make([]VendorExposure, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].VendorName < out[j].VendorName
	})
	return out
}
