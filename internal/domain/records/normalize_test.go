package records

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTransaction_SignedAmount(t *testing.T) {
	t.Run("credit is positive", func(t *testing.T) {
		txn, err := NormalizeTransaction(RawTransaction{
			ID: "1", Date: "2024-04-05", Reference: "CHQ001", Credit: "520000",
		})
		require.Nil(t, err)
		assert.True(t, txn.Amount.Equal(decimal.NewFromInt(520000)))
		assert.True(t, txn.IsCredit())
		assert.Equal(t, Receivable, txn.Settles())
	})

	t.Run("debit is negative", func(t *testing.T) {
		txn, err := NormalizeTransaction(RawTransaction{
			ID: "2", Date: "05/04/2024", Description: "NEFT  ACME   SUPPLIES", Debit: "1,250.505",
		})
		require.Nil(t, err)
		assert.Equal(t, "-1250.51", txn.Amount.StringFixed(2))
		assert.Equal(t, "1250.51", txn.Magnitude().StringFixed(2))
		assert.Equal(t, Payable, txn.Settles())
		assert.Equal(t, "NEFT ACME SUPPLIES", txn.Description)
		assert.Equal(t, NewDate(2024, time.April, 5), txn.Date)
	})
}

func TestNormalizeTransaction_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		raw    RawTransaction
		reason string
	}{
		{"missing id", RawTransaction{Date: "2024-01-01", Reference: "R", Credit: "10"}, "missing id"},
		{"bad date", RawTransaction{ID: "1", Date: "yesterday", Reference: "R", Credit: "10"}, "invalid date"},
		{"both sides", RawTransaction{ID: "1", Date: "2024-01-01", Reference: "R", Credit: "10", Debit: "5"}, "both debit and credit"},
		{"zero", RawTransaction{ID: "1", Date: "2024-01-01", Reference: "R", Credit: "0"}, "amount is zero"},
		{"negative", RawTransaction{ID: "1", Date: "2024-01-01", Reference: "R", Credit: "-4"}, "must not be negative"},
		{"not a number", RawTransaction{ID: "1", Date: "2024-01-01", Reference: "R", Credit: "ten"}, "invalid credit"},
		{"no text", RawTransaction{ID: "1", Date: "2024-01-01", Credit: "10"}, "no reference or description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeTransaction(tt.raw)
			require.NotNil(t, err)
			assert.Contains(t, err.Reason, tt.reason)
			assert.Equal(t, RecordTransaction, err.RecordType)
		})
	}
}

func TestNormalizeLedgerEntry(t *testing.T) {
	t.Run("valid payable with prior settlement", func(t *testing.T) {
		entry, err := NormalizeLedgerEntry(RawLedgerEntry{
			ID: "INV-7", Counterparty: "Acme Pvt Ltd", Reference: "INV-7",
			Date: "2024-03-01", Amount: "100000", Settled: "40000", Direction: "vendor",
		})
		require.Nil(t, err)
		assert.Equal(t, Payable, entry.Direction)
		assert.Equal(t, "60000.00", entry.Outstanding().StringFixed(2))
		assert.True(t, entry.HasPriorSettlement())
	})

	t.Run("empty direction defaults to receivable", func(t *testing.T) {
		entry, err := NormalizeLedgerEntry(RawLedgerEntry{
			ID: "1", Counterparty: "ABC Corp", Date: "2024-04-01", Amount: "520000",
		})
		require.Nil(t, err)
		assert.Equal(t, Receivable, entry.Direction)
		assert.False(t, entry.HasPriorSettlement())
	})

	t.Run("fully settled is rejected", func(t *testing.T) {
		_, err := NormalizeLedgerEntry(RawLedgerEntry{
			ID: "1", Counterparty: "ABC", Date: "2024-04-01", Amount: "100", Settled: "100",
		})
		require.NotNil(t, err)
		assert.Contains(t, err.Reason, "fully settled")
	})

	t.Run("unknown direction is rejected", func(t *testing.T) {
		_, err := NormalizeLedgerEntry(RawLedgerEntry{
			ID: "1", Counterparty: "ABC", Date: "2024-04-01", Amount: "100", Direction: "sideways",
		})
		require.NotNil(t, err)
		assert.Contains(t, err.Reason, "unknown direction")
	})
}

func TestNormalize_ReportsEveryRejectedRecordOnce(t *testing.T) {
	// Arrange
	txns := []RawTransaction{
		{ID: "1", Date: "2024-01-01", Reference: "A", Credit: "10"},
		{ID: "1", Date: "2024-01-02", Reference: "B", Credit: "20"},
		{ID: "2", Date: "bad", Reference: "C", Credit: "30"},
		{ID: "3", Date: "2024-01-03", Reference: "D", Debit: "40"},
	}
	entries := []RawLedgerEntry{
		{ID: "E1", Counterparty: "X", Date: "2024-01-01", Amount: "10"},
		{ID: "E2", Counterparty: "Y", Date: "2024-01-01", Amount: "0"},
		{ID: "E1", Counterparty: "Z", Date: "2024-01-01", Amount: "15"},
	}

	// Act
	batch, errs := Normalize(txns, entries)

	// Assert
	require.Len(t, batch.Transactions, 2)
	assert.Equal(t, "1", batch.Transactions[0].ID)
	assert.Equal(t, "3", batch.Transactions[1].ID)
	require.Len(t, batch.Entries, 1)
	assert.Equal(t, "X", batch.Entries[0].Counterparty)

	require.Len(t, errs, 4)
	assert.Equal(t, "duplicate id", errs[0].Reason)
	assert.Equal(t, "1", errs[0].RecordID)
	assert.Equal(t, "2", errs[1].RecordID)
	assert.Equal(t, "E2", errs[2].RecordID)
	assert.Equal(t, RecordLedgerEntry, errs[3].RecordType)
	for _, e := range errs {
		assert.Equal(t, KindValidation, e.Kind)
	}
}

func TestDate(t *testing.T) {
	t.Run("layouts collapse to the same day", func(t *testing.T) {
		want := NewDate(2024, time.April, 5)
		for _, s := range []string{"2024-04-05", "05-04-2024", "05/04/2024", "2024-04-05T18:30:00Z"} {
			got, err := ParseDate(s)
			require.NoError(t, err, s)
			assert.Equal(t, want, got, s)
		}
	})

	t.Run("day arithmetic", func(t *testing.T) {
		a := NewDate(2024, time.February, 27)
		b := NewDate(2024, time.March, 2)
		assert.Equal(t, 4, b.DaysFrom(a))
		assert.Equal(t, -4, a.DaysFrom(b))
		assert.Equal(t, 4, a.DaysApart(b))
		assert.Equal(t, b, a.AddDays(4))
		assert.True(t, a.Before(b))
	})

	t.Run("json round trip", func(t *testing.T) {
		data, err := json.Marshal(NewDate(2024, time.April, 1))
		require.NoError(t, err)
		assert.Equal(t, `"2024-04-01"`, string(data))

		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"01/04/2024"`), &d))
		assert.Equal(t, NewDate(2024, time.April, 1), d)
	})
}
