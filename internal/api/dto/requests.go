package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/eshaffer321/ledgermatch/internal/domain/register"
)

// FlexString accepts a JSON string, number or null. Numbers keep their
// literal text so amounts are never rounded through float64.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// BankTransactionInput is a bank statement line in a matching request.
type BankTransactionInput struct {
	ID          FlexString `json:"id"`
	Date        string     `json:"date"`
	Ref         string     `json:"ref"`
	Reference   string     `json:"reference"`
	Description string     `json:"description"`
	Debit       FlexString `json:"debit"`
	Credit      FlexString `json:"credit"`
}

// ToRaw converts the input into a raw engine record.
func (b BankTransactionInput) ToRaw() records.RawTransaction {
	return records.RawTransaction{
		ID:          b.ID.String(),
		Date:        b.Date,
		Reference:   firstNonEmpty(b.Ref, b.Reference),
		Description: b.Description,
		Debit:       b.Debit.String(),
		Credit:      b.Credit.String(),
	}
}

// InvoiceInput is a sales invoice, purchase bill or other open ledger entry.
// Entries naming a vendor and no direction are treated as payable.
type InvoiceInput struct {
	ID            FlexString `json:"id"`
	InvoiceNo     string     `json:"invoice_no"`
	InvoiceNumber string     `json:"invoice_number"`
	Reference     string     `json:"reference"`
	Customer      string     `json:"customer"`
	CustomerName  string     `json:"customer_name"`
	Vendor        string     `json:"vendor"`
	VendorName    string     `json:"vendor_name"`
	Counterparty  string     `json:"counterparty"`
	Date          string     `json:"date"`
	Amount        FlexString `json:"amount"`
	Settled       FlexString `json:"settled"`
	PaidAmount    FlexString `json:"paid_amount"`
	Direction     string     `json:"direction"`
	Type          string     `json:"type"`
}

// ToRaw converts the input into a raw engine record.
func (i InvoiceInput) ToRaw() records.RawLedgerEntry {
	vendor := firstNonEmpty(i.Vendor, i.VendorName)
	counterparty := firstNonEmpty(i.Counterparty, i.Customer, i.CustomerName, vendor)

	direction := firstNonEmpty(i.Direction, i.Type)
	if direction == "" && vendor != "" {
		direction = string(records.Payable)
	}

	return records.RawLedgerEntry{
		ID:           i.ID.String(),
		Counterparty: counterparty,
		Reference:    firstNonEmpty(i.InvoiceNo, i.InvoiceNumber, i.Reference),
		Date:         i.Date,
		Amount:       i.Amount.String(),
		Settled:      firstNonEmpty(i.Settled.String(), i.PaidAmount.String()),
		Direction:    direction,
	}
}

// SettingsInput overlays matching settings. Absent fields keep the server
// defaults. The worker count is server configuration and cannot be set here.
type SettingsInput struct {
	DateToleranceDays            *int     `json:"date_tolerance_days"`
	AmountTolerance              *float64 `json:"amount_tolerance"`
	EnableReferenceMatching      *bool    `json:"enable_reference_matching"`
	EnableNameMatching           *bool    `json:"enable_name_matching"`
	EnablePartialPaymentMatching *bool    `json:"enable_partial_payment_matching"`
	EnableBulkPaymentMatching    *bool    `json:"enable_bulk_payment_matching"`
	AutoMatchBankCharges         *bool    `json:"auto_match_bank_charges"`
	AutoApprovalLevel            *string  `json:"auto_approval_level"`
	MaxGroupSize                 *int     `json:"max_group_size"`
	MaxGroupSearch               *int     `json:"max_group_search"`
	BankChargeThreshold          *float64 `json:"bank_charge_threshold"`
	ExactAmountGraceDays         *int     `json:"exact_amount_grace_days"`
	AutoThreshold                *float64 `json:"auto_threshold"`
	SuggestThreshold             *float64 `json:"suggest_threshold"`
	MinConfidence                *float64 `json:"min_confidence"`
	NameSimilarity               *float64 `json:"name_similarity"`
	MaxTransactions              *int     `json:"max_transactions"`
	MaxLedgerEntries             *int     `json:"max_ledger_entries"`
}

// Apply returns base with every present field replaced. Validation happens
// when the engine is built.
func (s *SettingsInput) Apply(base matcher.Settings) matcher.Settings {
	if s == nil {
		return base
	}
	out := base
	if s.DateToleranceDays != nil {
		out.DateToleranceDays = *s.DateToleranceDays
	}
	if s.AmountTolerance != nil {
		out.AmountTolerance = decimal.NewFromFloat(*s.AmountTolerance).Round(records.AmountPlaces)
	}
	if s.EnableReferenceMatching != nil {
		out.EnableReferenceMatching = *s.EnableReferenceMatching
	}
	if s.EnableNameMatching != nil {
		out.EnableNameMatching = *s.EnableNameMatching
	}
	if s.EnablePartialPaymentMatching != nil {
		out.EnablePartialPaymentMatching = *s.EnablePartialPaymentMatching
	}
	if s.EnableBulkPaymentMatching != nil {
		out.EnableBulkPaymentMatching = *s.EnableBulkPaymentMatching
	}
	if s.AutoMatchBankCharges != nil {
		out.AutoMatchBankCharges = *s.AutoMatchBankCharges
	}
	if s.AutoApprovalLevel != nil {
		out.AutoApprovalLevel = matcher.ApprovalLevel(strings.ToLower(strings.TrimSpace(*s.AutoApprovalLevel)))
	}
	if s.MaxGroupSize != nil {
		out.MaxGroupSize = *s.MaxGroupSize
	}
	if s.MaxGroupSearch != nil {
		out.MaxGroupSearch = *s.MaxGroupSearch
	}
	if s.BankChargeThreshold != nil {
		out.BankChargeThreshold = decimal.NewFromFloat(*s.BankChargeThreshold).Round(records.AmountPlaces)
	}
	if s.ExactAmountGraceDays != nil {
		out.ExactAmountGraceDays = *s.ExactAmountGraceDays
	}
	if s.AutoThreshold != nil {
		out.AutoThreshold = *s.AutoThreshold
	}
	if s.SuggestThreshold != nil {
		out.SuggestThreshold = *s.SuggestThreshold
	}
	if s.MinConfidence != nil {
		out.MinConfidence = *s.MinConfidence
	}
	if s.NameSimilarity != nil {
		out.NameSimilarity = *s.NameSimilarity
	}
	if s.MaxTransactions != nil {
		out.MaxTransactions = *s.MaxTransactions
	}
	if s.MaxLedgerEntries != nil {
		out.MaxLedgerEntries = *s.MaxLedgerEntries
	}
	return out
}

// RunMatchingRequest is the body of POST /api/reconciliation/run-matching.
type RunMatchingRequest struct {
	BankTransactions []BankTransactionInput `json:"bank_transactions"`
	Invoices         []InvoiceInput         `json:"invoices"`
	Settings         *SettingsInput         `json:"settings"`
	Persist          bool                   `json:"persist"`
}

// Transactions converts the bank lines into raw engine records.
func (r RunMatchingRequest) Transactions() []records.RawTransaction {
	out := make([]records.RawTransaction, 0, len(r.BankTransactions))
	for _, b := range r.BankTransactions {
		out = append(out, b.ToRaw())
	}
	return out
}

// LedgerEntries converts the invoices into raw engine records.
func (r RunMatchingRequest) LedgerEntries() []records.RawLedgerEntry {
	out := make([]records.RawLedgerEntry, 0, len(r.Invoices))
	for _, inv := range r.Invoices {
		out = append(out, inv.ToRaw())
	}
	return out
}

// VendorRecordInput is one invoice from a vendor-reported feed.
type VendorRecordInput struct {
	ID            FlexString `json:"id"`
	VendorName    string     `json:"vendor_name"`
	GSTIN         string     `json:"gstin"`
	VendorTaxID   string     `json:"vendor_tax_id"`
	InvoiceNo     string     `json:"invoice_no"`
	InvoiceNumber string     `json:"invoice_number"`
	Date          string     `json:"date"`
	InvoiceDate   string     `json:"invoice_date"`
	Amount        FlexString `json:"amount"`
}

func (v VendorRecordInput) toRecord() register.VendorRecord {
	return register.VendorRecord{
		ID:            v.ID.String(),
		VendorName:    v.VendorName,
		VendorTaxID:   firstNonEmpty(v.VendorTaxID, v.GSTIN),
		InvoiceNumber: firstNonEmpty(v.InvoiceNo, v.InvoiceNumber),
		InvoiceDate:   firstNonEmpty(v.InvoiceDate, v.Date),
		Amount:        v.Amount.String(),
	}
}

func (v VendorRecordInput) toInvoice() register.PurchaseInvoice {
	r := v.toRecord()
	return register.PurchaseInvoice(r)
}

// VendorRegisterRequest is the body of POST /api/reconciliation/vendor-register.
type VendorRegisterRequest struct {
	VendorRecords    []VendorRecordInput `json:"vendor_records"`
	PurchaseInvoices []VendorRecordInput `json:"purchase_invoices"`
	Settings         *SettingsInput      `json:"settings"`
	Persist          bool                `json:"persist"`
}

// ToRegister converts the body into a register request.
func (r VendorRegisterRequest) ToRegister() register.Request {
	out := register.Request{
		VendorRecords:    make([]register.VendorRecord, 0, len(r.VendorRecords)),
		PurchaseInvoices: make([]register.PurchaseInvoice, 0, len(r.PurchaseInvoices)),
	}
	for _, v := range r.VendorRecords {
		out.VendorRecords = append(out.VendorRecords, v.toRecord())
	}
	for _, p := range r.PurchaseInvoices {
		out.PurchaseInvoices = append(out.PurchaseInvoices, p.toInvoice())
	}
	return out
}

// RunListParams represents query parameters for listing runs.
type RunListParams struct {
	Kind   string `json:"kind"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// DefaultRunListParams returns default values for run list params.
func DefaultRunListParams() RunListParams {
	return RunListParams{
		Limit: 20,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
