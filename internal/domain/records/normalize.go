package records

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the fixed precision all amounts are rounded to.
const AmountPlaces = 2

// Normalize validates raw transactions and ledger entries.
// Valid records keep their input order. Every rejected record yields exactly
// one RecordError; a duplicate id is rejected after its first occurrence.
func Normalize(txns []RawTransaction, entries []RawLedgerEntry) (Batch, []RecordError) {
	var batch Batch
	var errs []RecordError

	seenTxn := make(map[string]bool, len(txns))
	for _, raw := range txns {
		txn, err := NormalizeTransaction(raw)
		if err == nil && seenTxn[txn.ID] {
			err = &ValidationError{RecordID: txn.ID, RecordType: RecordTransaction, Reason: "duplicate id"}
		}
		if err != nil {
			errs = append(errs, err.Report())
			continue
		}
		seenTxn[txn.ID] = true
		batch.Transactions = append(batch.Transactions, txn)
	}

	seenEntry := make(map[string]bool, len(entries))
	for _, raw := range entries {
		entry, err := NormalizeLedgerEntry(raw)
		if err == nil && seenEntry[entry.ID] {
			err = &ValidationError{RecordID: entry.ID, RecordType: RecordLedgerEntry, Reason: "duplicate id"}
		}
		if err != nil {
			errs = append(errs, err.Report())
			continue
		}
		seenEntry[entry.ID] = true
		batch.Entries = append(batch.Entries, entry)
	}

	return batch, errs
}

// NormalizeTransaction validates a single bank transaction.
func NormalizeTransaction(raw RawTransaction) (Transaction, *ValidationError) {
	id := strings.TrimSpace(raw.ID)
	fail := func(format string, args ...any) (Transaction, *ValidationError) {
		return Transaction{}, &ValidationError{
			RecordID:   id,
			RecordType: RecordTransaction,
			Reason:     fmt.Sprintf(format, args...),
		}
	}

	if id == "" {
		return fail("missing id")
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return fail("invalid date: %v", err)
	}

	debit, err := parseAmount(raw.Debit)
	if err != nil {
		return fail("invalid debit: %v", err)
	}
	credit, err := parseAmount(raw.Credit)
	if err != nil {
		return fail("invalid credit: %v", err)
	}
	if debit.IsNegative() || credit.IsNegative() {
		return fail("debit and credit must not be negative")
	}
	if debit.IsPositive() && credit.IsPositive() {
		return fail("both debit and credit are set")
	}

	amount := credit.Sub(debit)
	if amount.IsZero() {
		return fail("amount is zero")
	}

	ref := strings.TrimSpace(raw.Reference)
	desc := collapseSpace(raw.Description)
	if ref == "" && desc == "" {
		return fail("no reference or description")
	}

	return Transaction{
		ID:          id,
		Date:        date,
		Reference:   ref,
		Description: desc,
		Amount:      amount,
	}, nil
}

// NormalizeLedgerEntry validates a single ledger entry.
func NormalizeLedgerEntry(raw RawLedgerEntry) (LedgerEntry, *ValidationError) {
	id := strings.TrimSpace(raw.ID)
	fail := func(format string, args ...any) (LedgerEntry, *ValidationError) {
		return LedgerEntry{}, &ValidationError{
			RecordID:   id,
			RecordType: RecordLedgerEntry,
			Reason:     fmt.Sprintf(format, args...),
		}
	}

	if id == "" {
		return fail("missing id")
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return fail("invalid date: %v", err)
	}

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return fail("invalid amount: %v", err)
	}
	if amount.IsNegative() {
		return fail("amount must not be negative")
	}
	if amount.IsZero() {
		return fail("amount is zero")
	}

	settled, err := parseAmount(raw.Settled)
	if err != nil {
		return fail("invalid settled amount: %v", err)
	}
	if settled.IsNegative() {
		return fail("settled amount must not be negative")
	}
	if settled.GreaterThanOrEqual(amount) {
		return fail("entry is fully settled")
	}

	direction, err := ParseDirection(raw.Direction)
	if err != nil {
		return fail("%v", err)
	}

	ref := strings.TrimSpace(raw.Reference)
	name := collapseSpace(raw.Counterparty)
	if ref == "" && name == "" {
		return fail("no reference or counterparty")
	}

	return LedgerEntry{
		ID:           id,
		Counterparty: name,
		Reference:    ref,
		Date:         date,
		Amount:       amount,
		Settled:      settled,
		Direction:    direction,
	}, nil
}

// ParseDirection accepts receivable/payable and a few common aliases.
// An empty value means receivable.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "receivable", "sales", "customer", "ar":
		return Receivable, nil
	case "payable", "purchase", "vendor", "ap":
		return Payable, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// ParseAmount parses a decimal amount, stripping thousands separators,
// and rounds it to AmountPlaces. An empty string is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	return parseAmount(s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	return d.Round(AmountPlaces), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
