package matcher

import (
	"sort"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
)

// summarize fills the unmatched buckets, the per-counterparty exposure and
// the summary from the tiered matches.
func summarize(result *Result, ix *index) {
	matchedTxns := make(map[string]bool)
	matchedEntries := make(map[string]bool)
	for _, m := range result.Matches() {
		for _, id := range m.BankTxnIDs {
			matchedTxns[id] = true
		}
		for _, id := range m.InvoiceIDs {
			matchedEntries[id] = true
		}
	}

	sum := &result.Summary
	sum.TotalTransactions = len(ix.txns)
	sum.TotalInvoices = len(ix.entries)
	sum.NormalizationErrorCount = len(result.NormalizationErrors)

	for _, t := range ix.txns {
		sum.TotalBankAmount = sum.TotalBankAmount.Add(t.Magnitude())
		if !matchedTxns[t.ID] {
			result.UnmatchedBank = append(result.UnmatchedBank, t)
			sum.UnmatchedBankAmount = sum.UnmatchedBankAmount.Add(t.Magnitude())
		}
	}
	for _, e := range ix.entries {
		sum.TotalInvoiceAmount = sum.TotalInvoiceAmount.Add(e.Outstanding())
		if !matchedEntries[e.ID] {
			result.UnmatchedInvoices = append(result.UnmatchedInvoices, e)
			sum.UnmatchedInvoicesAmount = sum.UnmatchedInvoicesAmount.Add(e.Outstanding())
		}
	}
	sum.UnmatchedBankCount = len(result.UnmatchedBank)
	sum.UnmatchedInvoicesCount = len(result.UnmatchedInvoices)

	sum.AutoMatchedCount, sum.AutoMatchedAmount = tierTotals(result.AutoMatched)
	sum.SuggestedCount, sum.SuggestedAmount = tierTotals(result.Suggested)
	sum.ManualReviewCount, sum.ManualReviewAmount = tierTotals(result.ManualReview)

	sum.MatchedAmount = sum.AutoMatchedAmount.Add(sum.SuggestedAmount).Add(sum.ManualReviewAmount)
	sum.Difference = sum.TotalBankAmount.Sub(sum.TotalInvoiceAmount)
	sum.MatchPercentage = percentage(sum.MatchedAmount, sum.TotalBankAmount)

	result.UnmatchedExposure = exposure(result.UnmatchedInvoices)
}

func tierTotals(matches []Match) (int, decimal.Decimal) {
	total := decimal.Zero
	for _, m := range matches {
		total = total.Add(m.MatchedAmount)
	}
	return len(matches), total
}

// percentage returns part/whole*100 rounded to two places, or 0 when whole
// is zero.
func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// exposure groups unmatched entries by counterparty, largest amount first.
func exposure(entries []records.LedgerEntry) []Exposure {
	byKey := make(map[string]*Exposure)
	var order []string
	for _, e := range entries {
		key := nameKey(e.Counterparty)
		if key == "" {
			key = e.Counterparty
		}
		x, ok := byKey[key]
		if !ok {
			label := e.Counterparty
			if label == "" {
				label = "(unknown)"
			}
			x = &Exposure{Counterparty: label, Amount: decimal.Zero}
			byKey[key] = x
			order = append(order, key)
		}
		x.Count++
		x.Amount = x.Amount.Add(e.Outstanding())
	}

	out := make([]Exposure, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Counterparty < out[j].Counterparty
	})
	return out
}
