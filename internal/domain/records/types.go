// Package records holds the transaction and ledger record shapes the
// reconciliation engine works on, and the normalizer that turns loosely
// typed input into validated, fixed-precision records.
//
// Raw records come from an extraction collaborator (statement parser, OCR,
// vendor feed) and carry every field as text. Normalize validates them and
// produces Transaction and LedgerEntry values with civil dates and decimal
// amounts. Records that fail validation are reported, never silently dropped.
package records

import (
	"github.com/shopspring/decimal"
)

// Direction is the settlement direction of a ledger entry.
type Direction string

const (
	// Receivable entries are settled by incoming money (bank credits).
	Receivable Direction = "receivable"
	// Payable entries are settled by outgoing money (bank debits).
	Payable Direction = "payable"
)

// RawTransaction is a bank statement line as delivered by the extractor.
type RawTransaction struct {
	ID          string
	Date        string
	Reference   string
	Description string
	Debit       string
	Credit      string
}

// RawLedgerEntry is an invoice, bill or vendor-reported record as delivered
// by the extractor.
type RawLedgerEntry struct {
	ID           string
	Counterparty string
	Reference    string
	Date         string
	Amount       string
	Settled      string
	Direction    string
}

// Transaction is a validated bank transaction.
// Amount is signed: credits are positive, debits negative.
type Transaction struct {
	ID          string          `json:"id"`
	Date        Date            `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// IsCredit reports whether the transaction brings money in.
func (t Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// Magnitude returns the absolute transaction amount.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// Settles returns the ledger direction this transaction can settle.
func (t Transaction) Settles() Direction {
	if t.IsCredit() {
		return Receivable
	}
	return Payable
}

// LedgerEntry is a validated open obligation.
type LedgerEntry struct {
	ID           string          `json:"id"`
	Counterparty string          `json:"counterparty,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Date         Date            `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Settled      decimal.Decimal `json:"settled"`
	Direction    Direction       `json:"direction"`
}

// Outstanding returns the balance still open on the entry.
func (e LedgerEntry) Outstanding() decimal.Decimal {
	return e.Amount.Sub(e.Settled)
}

// HasPriorSettlement reports whether part of the entry was already paid.
func (e LedgerEntry) HasPriorSettlement() bool {
	return e.Settled.IsPositive()
}

// Batch is the normalized input of one reconciliation run.
type Batch struct {
	Transactions []Transaction
	Entries      []LedgerEntry
}
