package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, mutate func(*Settings)) *Engine {
	t.Helper()
	settings := DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}
	engine, err := NewEngine(settings, testLogger())
	require.NoError(t, err)
	return engine
}

func credit(id, date, ref, desc, amount string) records.RawTransaction {
	return records.RawTransaction{ID: id, Date: date, Reference: ref, Description: desc, Credit: amount}
}

func debit(id, date, ref, desc, amount string) records.RawTransaction {
	return records.RawTransaction{ID: id, Date: date, Reference: ref, Description: desc, Debit: amount}
}

func invoice(id, counterparty, ref, date, amount string) records.RawLedgerEntry {
	return records.RawLedgerEntry{ID: id, Counterparty: counterparty, Reference: ref, Date: date, Amount: amount}
}

func bill(id, counterparty, ref, date, amount string) records.RawLedgerEntry {
	e := invoice(id, counterparty, ref, date, amount)
	e.Direction = string(records.Payable)
	return e
}

func reconcile(t *testing.T, engine *Engine, txns []records.RawTransaction, entries []records.RawLedgerEntry) *Result {
	t.Helper()
	result, err := engine.Reconcile(context.Background(), Request{BankTransactions: txns, LedgerEntries: entries})
	require.NoError(t, err)
	return result
}

// assertPartition checks that every valid id lands in exactly one bucket
// and that no two matches share an id.
func assertPartition(t *testing.T, result *Result, txnIDs, entryIDs []string) {
	t.Helper()
	seenTxn := make(map[string]int)
	seenEntry := make(map[string]int)
	for _, m := range result.Matches() {
		for _, id := range m.BankTxnIDs {
			seenTxn[id]++
		}
		for _, id := range m.InvoiceIDs {
			seenEntry[id]++
		}
	}
	for _, txn := range result.UnmatchedBank {
		seenTxn[txn.ID]++
	}
	for _, e := range result.UnmatchedInvoices {
		seenEntry[e.ID]++
	}

	assert.Len(t, seenTxn, len(txnIDs))
	for _, id := range txnIDs {
		assert.Equal(t, 1, seenTxn[id], "transaction %s", id)
	}
	assert.Len(t, seenEntry, len(entryIDs))
	for _, id := range entryIDs {
		assert.Equal(t, 1, seenEntry[id], "ledger entry %s", id)
	}
}

func findMatch(t *testing.T, result *Result, txnID string) Match {
	t.Helper()
	for _, m := range result.Matches() {
		for _, id := range m.BankTxnIDs {
			if id == txnID {
				return m
			}
		}
	}
	require.Failf(t, "no match", "transaction %s is not matched", txnID)
	return Match{}
}

func TestNewEngine_RejectsInvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.AmountTolerance = decimal.NewFromInt(-1)

	engine, err := NewEngine(settings, testLogger())

	require.Error(t, err)
	assert.Nil(t, engine)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "amount_tolerance", cfgErr.Field)
}

func TestEngine_ExactAmountOutsideWindowIsAutoMatched(t *testing.T) {
	// Arrange
	engine := newTestEngine(t, nil)

	// Act
	result := reconcile(t, engine,
		[]records.RawTransaction{credit("1", "2024-04-05", "CHQ001", "", "520000")},
		[]records.RawLedgerEntry{invoice("1", "ABC Corp", "", "2024-04-01", "520000")},
	)

	// Assert
	require.Len(t, result.AutoMatched, 1)
	m := result.AutoMatched[0]
	assert.Equal(t, "1", m.BankTxnID)
	assert.Equal(t, []string{"1"}, m.InvoiceIDs)
	assert.GreaterOrEqual(t, m.Confidence, 90.0)
	assert.Equal(t, TierAuto, m.Tier)
	assert.Empty(t, result.UnmatchedBank)
	assert.Empty(t, result.UnmatchedInvoices)
	assert.Equal(t, 100.0, result.Summary.MatchPercentage)
}

func TestEngine_PartialPaymentLeavesBalance(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := reconcile(t, engine,
		[]records.RawTransaction{credit("T1", "2024-04-01", "INV-100", "NEFT ACME TRADERS", "95000")},
		[]records.RawLedgerEntry{invoice("INV-100", "Acme Traders", "INV-100", "2024-04-01", "100000")},
	)

	m := findMatch(t, result, "T1")
	assert.Equal(t, MatchPartialPayment, m.MatchType)
	assert.Equal(t, []string{"INV-100"}, m.InvoiceIDs)
	assert.Equal(t, "5000.00", m.RemainingBalance.StringFixed(2))
	assert.True(t, m.Difference.IsZero())
	assert.Equal(t, 75.0, m.Confidence, "reference base with no amount penalty")
	require.Len(t, m.Allocations, 1)
	assert.Equal(t, "95000.00", m.Allocations[0].Amount.StringFixed(2))
	assert.Empty(t, result.UnmatchedInvoices)
}

func TestEngine_PaymentOfOutstandingBalanceAfterPriorSettlement(t *testing.T) {
	engine := newTestEngine(t, nil)
	entry := invoice("INV-7", "Initech", "", "2024-04-01", "100000")
	entry.Settled = "60000"

	result := reconcile(t, engine,
		[]records.RawTransaction{credit("T7", "2024-04-01", "", "CASH DEPOSIT", "40000")},
		[]records.RawLedgerEntry{entry},
	)

	require.Len(t, result.AutoMatched, 1)
	m := result.AutoMatched[0]
	assert.Equal(t, MatchPartialPayment, m.MatchType)
	assert.Equal(t, 95.0, m.Confidence)
	assert.True(t, m.RemainingBalance.IsZero())
	assert.Equal(t, "40000.00", result.Summary.TotalInvoiceAmount.StringFixed(2))
}

func TestEngine_BulkPaymentAcrossInvoices(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := reconcile(t, engine,
		[]records.RawTransaction{credit("1", "2024-05-03", "", "RTGS GLOBEX", "100000")},
		[]records.RawLedgerEntry{
			invoice("A", "Globex Ltd", "G-1", "2024-05-01", "50000"),
			invoice("B", "Globex Ltd", "G-2", "2024-05-02", "30000"),
			invoice("C", "Globex Ltd", "G-3", "2024-05-03", "20000"),
		},
	)

	require.Len(t, result.AutoMatched, 1)
	m := result.AutoMatched[0]
	assert.Equal(t, MatchBulkPayment, m.MatchType)
	assert.Equal(t, []string{"A", "B", "C"}, m.InvoiceIDs)
	assert.Equal(t, "100000.00", m.MatchedAmount.StringFixed(2))
	assert.Equal(t, 90.0, m.Confidence)
	assertPartition(t, result, []string{"1"}, []string{"A", "B", "C"})
}

func TestEngine_SplitPaymentsSettleOneInvoice(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := reconcile(t, engine,
		[]records.RawTransaction{
			credit("T1", "2024-07-01", "INV-9", "", "10000"),
			credit("T2", "2024-07-02", "", "HOOLI PART 2", "20000"),
		},
		[]records.RawLedgerEntry{invoice("INV-9", "Hooli", "INV-9", "2024-07-01", "30000")},
	)

	require.Len(t, result.AutoMatched, 1)
	m := result.AutoMatched[0]
	assert.Equal(t, MatchBulkPayment, m.MatchType)
	assert.Equal(t, "T1", m.BankTxnID)
	assert.Equal(t, []string{"T1", "T2"}, m.BankTxnIDs)
	assert.Equal(t, []string{"INV-9"}, m.InvoiceIDs)
	assert.Equal(t, "30000.00", m.MatchedAmount.StringFixed(2))
	assertPartition(t, result, []string{"T1", "T2"}, []string{"INV-9"})
}

func TestEngine_UnmatchedTransactionCountsInSummary(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := reconcile(t, engine,
		[]records.RawTransaction{credit("9", "2024-06-01", "", "UNKNOWN TRANSFER", "12345")},
		[]records.RawLedgerEntry{invoice("X", "Umbrella", "", "2024-01-01", "500")},
	)

	require.Len(t, result.UnmatchedBank, 1)
	assert.Equal(t, "9", result.UnmatchedBank[0].ID)
	assert.Equal(t, 1, result.Summary.UnmatchedBankCount)
	assert.Equal(t, "12345.00", result.Summary.UnmatchedBankAmount.StringFixed(2))
	assert.Equal(t, 0.0, result.Summary.MatchPercentage)
	require.Len(t, result.UnmatchedExposure, 1)
	assert.Equal(t, "Umbrella", result.UnmatchedExposure[0].Counterparty)
}

func TestEngine_BankCharges(t *testing.T) {
	txns := []records.RawTransaction{debit("C1", "2024-03-31", "", "SMS ALERT CHARGES", "59")}

	t.Run("absorbed when enabled", func(t *testing.T) {
		result := reconcile(t, newTestEngine(t, nil), txns, nil)

		require.Len(t, result.AutoMatched, 1)
		m := result.AutoMatched[0]
		assert.Equal(t, MatchBankCharge, m.MatchType)
		assert.Equal(t, 100.0, m.Confidence)
		assert.Empty(t, m.InvoiceIDs)
		assert.Empty(t, result.UnmatchedBank)
	})

	t.Run("left unmatched when disabled", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) { s.AutoMatchBankCharges = false })
		result := reconcile(t, engine, txns, nil)

		assert.Empty(t, result.AutoMatched)
		require.Len(t, result.UnmatchedBank, 1)
	})

	t.Run("large debits are never bank charges", func(t *testing.T) {
		result := reconcile(t, newTestEngine(t, nil),
			[]records.RawTransaction{debit("C2", "2024-03-31", "", "TRANSFER", "5000")}, nil)

		assert.Empty(t, result.AutoMatched)
		require.Len(t, result.UnmatchedBank, 1)
	})
}

func TestEngine_DirectionMustAgree(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := reconcile(t, engine,
		[]records.RawTransaction{
			credit("IN", "2024-02-01", "", "RECEIPT", "7500"),
			debit("OUT", "2024-02-01", "", "VENDOR PAYMENT", "7500"),
		},
		[]records.RawLedgerEntry{bill("B1", "Vandelay Industries", "", "2024-02-01", "7500")},
	)

	m := findMatch(t, result, "OUT")
	assert.Equal(t, []string{"B1"}, m.InvoiceIDs)
	require.Len(t, result.UnmatchedBank, 1)
	assert.Equal(t, "IN", result.UnmatchedBank[0].ID)
}

func TestEngine_ApprovalLevels(t *testing.T) {
	txns := []records.RawTransaction{
		credit("1", "2024-04-01", "", "NEFT", "1000"),
		credit("2", "2024-04-01", "", "NEFT", "2050"),
		credit("3", "2024-04-03", "", "NEFT", "3100"),
	}
	entries := []records.RawLedgerEntry{
		invoice("A", "Alpha", "", "2024-04-01", "1000"),
		invoice("B", "Beta", "", "2024-04-01", "2000"),
		invoice("C", "Gamma", "", "2024-04-01", "3000"),
	}

	t.Run("high", func(t *testing.T) {
		result := reconcile(t, newTestEngine(t, nil), txns, entries)
		assert.Len(t, result.AutoMatched, 1)  // 95
		assert.Len(t, result.Suggested, 1)    // 77.5
		assert.Len(t, result.ManualReview, 1) // 66
	})

	t.Run("all", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) { s.AutoApprovalLevel = ApprovalAll })
		result := reconcile(t, engine, txns, entries)
		assert.Len(t, result.AutoMatched, 2)
		assert.Empty(t, result.Suggested)
		assert.Len(t, result.ManualReview, 1)
	})

	t.Run("manual", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) { s.AutoApprovalLevel = ApprovalManual })
		result := reconcile(t, engine, txns, entries)
		assert.Empty(t, result.AutoMatched)
		assert.Empty(t, result.Suggested)
		assert.Len(t, result.ManualReview, 3)
	})
}

// mixedFixture exercises every match type at once.
func mixedFixture() ([]records.RawTransaction, []records.RawLedgerEntry) {
	txns := []records.RawTransaction{
		credit("1", "2024-04-05", "CHQ001", "", "520000"),
		credit("2", "2024-04-01", "INV-100", "NEFT ACME TRADERS", "95000"),
		credit("3", "2024-05-03", "", "RTGS GLOBEX", "100000"),
		credit("4", "2024-06-01", "", "UNKNOWN TRANSFER", "12345"),
		debit("5", "2024-03-31", "", "SMS ALERT CHARGES", "59"),
		debit("6", "2024-02-02", "", "VANDELAY", "7450"),
		credit("7", "2024-04-02", "", "NEFT", "2050"),
		{ID: "", Date: "2024-01-01", Credit: "1"},
		credit("8", "not a date", "", "BROKEN", "10"),
	}
	entries := []records.RawLedgerEntry{
		invoice("E1", "ABC Corp", "", "2024-04-01", "520000"),
		invoice("E2", "Acme Traders", "INV-100", "2024-04-01", "100000"),
		invoice("E3", "Globex Ltd", "G-1", "2024-05-01", "50000"),
		invoice("E4", "Globex Ltd", "G-2", "2024-05-02", "30000"),
		invoice("E5", "Globex Ltd", "G-3", "2024-05-03", "20000"),
		bill("E6", "Vandelay Industries", "", "2024-02-01", "7500"),
		invoice("E7", "Beta", "", "2024-04-01", "2000"),
		invoice("E8", "Umbrella", "", "2024-01-01", "500"),
		invoice("E9", "Zero", "", "2024-01-01", "0"),
	}
	return txns, entries
}

func TestEngine_EveryRecordLandsInExactlyOneBucket(t *testing.T) {
	txns, entries := mixedFixture()

	result := reconcile(t, newTestEngine(t, nil), txns, entries)

	assertPartition(t, result,
		[]string{"1", "2", "3", "4", "5", "6", "7"},
		[]string{"E1", "E2", "E3", "E4", "E5", "E6", "E7", "E8"},
	)
	require.Len(t, result.NormalizationErrors, 3)
	assert.Equal(t, 3, result.Summary.NormalizationErrorCount)
	assert.Equal(t, 7, result.Summary.TotalTransactions)
	assert.Equal(t, 8, result.Summary.TotalInvoices)

	sum := result.Summary
	assert.True(t, sum.MatchedAmount.Add(sum.UnmatchedBankAmount).Equal(sum.TotalBankAmount))
	assert.Equal(t, sum.AutoMatchedCount+sum.SuggestedCount+sum.ManualReviewCount, len(result.Matches()))
}

func TestEngine_Idempotent(t *testing.T) {
	txns, entries := mixedFixture()

	first := reconcile(t, newTestEngine(t, func(s *Settings) { s.Workers = 1 }), txns, entries)
	second := reconcile(t, newTestEngine(t, func(s *Settings) { s.Workers = 8 }), txns, entries)
	third := reconcile(t, newTestEngine(t, func(s *Settings) { s.Workers = 8 }), txns, entries)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	c, err := json.Marshal(third)
	require.NoError(t, err)

	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, string(b), string(c))
}

// The matched total holds or grows on this fixture. It is not a general
// guarantee; see TestEngine_WiderAmountToleranceCanPreferCloserPayment.
func TestEngine_WiderTolerancesNeverMatchLess(t *testing.T) {
	txns, entries := mixedFixture()
	txns = append(txns,
		credit("20", "2024-08-01", "", "CASH DEPOSIT", "2000"),
		credit("21", "2024-09-10", "", "CASH DEPOSIT", "4000"),
	)
	entries = append(entries,
		invoice("E20", "Soylent", "", "2024-08-01", "2080"),
		invoice("E21", "Wonka", "", "2024-09-05", "4060"),
	)

	tolerances := []int64{0, 50, 100, 500}
	windows := []int{0, 3, 7}
	matched := make([][]decimal.Decimal, len(tolerances))
	for i, tol := range tolerances {
		matched[i] = make([]decimal.Decimal, len(windows))
		for j, days := range windows {
			engine := newTestEngine(t, func(s *Settings) {
				s.AmountTolerance = decimal.NewFromInt(tol)
				s.DateToleranceDays = days
			})
			matched[i][j] = reconcile(t, engine, txns, entries).Summary.MatchedAmount
		}
	}

	for i := range tolerances {
		for j := range windows {
			if i > 0 {
				assert.True(t, matched[i][j].GreaterThanOrEqual(matched[i-1][j]),
					"raising amount tolerance to %d lowered matched amount", tolerances[i])
			}
			if j > 0 {
				assert.True(t, matched[i][j].GreaterThanOrEqual(matched[i][j-1]),
					"raising date tolerance to %d lowered matched amount", windows[j])
			}
		}
	}
	assert.True(t, matched[len(tolerances)-1][len(windows)-1].GreaterThan(matched[0][0]))
}

// Exact amounts are admitted past the date window, so a wider amount
// tolerance can let a same-day smaller payment outrank a late exact one and
// lower the matched total. This is a known exception to tolerance
// monotonicity.
func TestEngine_WiderAmountToleranceCanPreferCloserPayment(t *testing.T) {
	txns := []records.RawTransaction{
		credit("BIG", "2024-04-11", "", "NEFT", "1000"),
		credit("SMALL", "2024-04-01", "", "NEFT", "990"),
	}
	entries := []records.RawLedgerEntry{invoice("E1", "Acme Ltd", "", "2024-04-01", "1000")}

	narrow := reconcile(t, newTestEngine(t, func(s *Settings) { s.AmountTolerance = decimal.NewFromInt(10) }), txns, entries)
	wide := reconcile(t, newTestEngine(t, func(s *Settings) { s.AmountTolerance = decimal.NewFromInt(100) }), txns, entries)

	big := findMatch(t, narrow, "BIG")
	assert.Equal(t, MatchDateTolerance, big.MatchType)
	assert.Equal(t, 81.0, big.Confidence)
	assert.Equal(t, "1000.00", narrow.Summary.MatchedAmount.StringFixed(2))

	small := findMatch(t, wide, "SMALL")
	assert.Equal(t, MatchAmountTolerance, small.MatchType)
	assert.Equal(t, 83.5, small.Confidence)
	assert.Equal(t, "990.00", wide.Summary.MatchedAmount.StringFixed(2))
	assert.True(t, wide.Summary.MatchedAmount.LessThan(narrow.Summary.MatchedAmount))
}

func TestEngine_AllocationsAgreeWithRemainingBalance(t *testing.T) {
	t.Run("difference within tolerance closes the entry", func(t *testing.T) {
		result := reconcile(t, newTestEngine(t, nil),
			[]records.RawTransaction{credit("T1", "2024-04-01", "", "NEFT", "990")},
			[]records.RawLedgerEntry{invoice("INV-1", "Acme Ltd", "", "2024-04-01", "1000")},
		)

		m := findMatch(t, result, "T1")
		assert.Equal(t, MatchAmountTolerance, m.MatchType)
		assert.Equal(t, "-10.00", m.Difference.StringFixed(2))
		assert.True(t, m.RemainingBalance.IsZero())
		require.Len(t, m.Allocations, 1)
		assert.Equal(t, "1000.00", m.Allocations[0].Amount.StringFixed(2))
	})

	t.Run("short payment beyond tolerance keeps its balance", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) { s.EnablePartialPaymentMatching = false })
		result := reconcile(t, engine,
			[]records.RawTransaction{credit("T2", "2024-04-01", "INV-2", "", "850")},
			[]records.RawLedgerEntry{invoice("INV-2", "Acme Ltd", "INV-2", "2024-04-01", "1000")},
		)

		m := findMatch(t, result, "T2")
		assert.Equal(t, MatchReference, m.MatchType)
		assert.Equal(t, 52.5, m.Confidence)
		assert.Equal(t, "150.00", m.RemainingBalance.StringFixed(2))
		require.Len(t, m.Allocations, 1)
		assert.Equal(t, "850.00", m.Allocations[0].Amount.StringFixed(2))
	})
}

func TestEngine_CapacityLimits(t *testing.T) {
	t.Run("input beyond max_transactions", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) { s.MaxTransactions = 1 })

		result := reconcile(t, engine,
			[]records.RawTransaction{
				credit("1", "2024-04-01", "", "A", "100"),
				credit("2", "2024-04-01", "", "B", "200"),
			}, nil)

		assert.True(t, result.Truncated)
		require.Len(t, result.NormalizationErrors, 1)
		assert.Equal(t, "2", result.NormalizationErrors[0].RecordID)
		assert.Equal(t, records.KindCapacity, result.NormalizationErrors[0].Kind)
		assert.Equal(t, 1, result.Summary.TotalTransactions)

		var capErr *CapacityError
		require.True(t, errors.As(result.CapacityErr(), &capErr))
		assert.Equal(t, "max_transactions", capErr.Limit)
	})

	t.Run("bulk search budget", func(t *testing.T) {
		engine := newTestEngine(t, func(s *Settings) {
			s.MaxGroupSearch = 5
			s.AmountTolerance = decimal.Zero
		})
		var entries []records.RawLedgerEntry
		for _, id := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
			entries = append(entries, invoice(id, "Initech", "", "2024-04-01", "20"))
		}

		result := reconcile(t, engine,
			[]records.RawTransaction{credit("1", "2024-04-01", "", "DEPOSIT", "100")}, entries)

		assert.True(t, result.Truncated)
		require.NotEmpty(t, result.CapacityNotices)
		assert.Equal(t, "max_group_search", result.CapacityNotices[0].Limit)
		m := findMatch(t, result, "1")
		assert.Len(t, m.InvoiceIDs, 5)
	})
}

func TestEngine_EmptyInput(t *testing.T) {
	result := reconcile(t, newTestEngine(t, nil), nil, nil)

	assert.Empty(t, result.Matches())
	assert.NotNil(t, result.UnmatchedBank)
	assert.NotNil(t, result.UnmatchedInvoices)
	assert.Equal(t, 0.0, result.Summary.MatchPercentage)
	assert.False(t, result.Truncated)
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Reconcile(ctx, Request{
		BankTransactions: []records.RawTransaction{credit("1", "2024-04-01", "", "A", "100")},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEngine_DisabledSignals(t *testing.T) {
	engine := newTestEngine(t, func(s *Settings) {
		s.EnableReferenceMatching = false
		s.EnableNameMatching = false
		s.EnablePartialPaymentMatching = false
		s.EnableBulkPaymentMatching = false
	})
	txns, entries := mixedFixture()

	result := reconcile(t, engine, txns, entries)

	for _, m := range result.Matches() {
		assert.NotEqual(t, MatchPartialPayment, m.MatchType)
		assert.NotEqual(t, MatchBulkPayment, m.MatchType)
		assert.NotEqual(t, MatchReference, m.MatchType)
		assert.NotEqual(t, MatchName, m.MatchType)
	}
	assertPartition(t, result,
		[]string{"1", "2", "3", "4", "5", "6", "7"},
		[]string{"E1", "E2", "E3", "E4", "E5", "E6", "E7", "E8"},
	)
}
