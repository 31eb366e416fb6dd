package matcher

import "sort"

// Classify returns the tier for a confidence under the given settings.
func Classify(confidence float64, s Settings) Tier {
	switch s.AutoApprovalLevel {
	case ApprovalManual:
		return TierManual
	case ApprovalAll:
		if confidence >= s.SuggestThreshold {
			return TierAuto
		}
		return TierManual
	default:
		switch {
		case confidence >= s.AutoThreshold:
			return TierAuto
		case confidence >= s.SuggestThreshold:
			return TierSuggested
		}
		return TierManual
	}
}

func toMatch(c Candidate, tier Tier) Match {
	return Match{
		BankTxnID:        c.PrimaryID,
		BankTxnIDs:       c.TransactionIDs,
		InvoiceIDs:       c.LedgerIDs,
		Confidence:       c.Confidence,
		MatchType:        c.Type,
		Difference:       c.Difference,
		MatchedAmount:    c.MatchedAmount,
		RemainingBalance: c.RemainingBalance,
		Allocations:      c.Allocations,
		Reason:           c.Reason,
		Tier:             tier,
		Date:             c.Date,
	}
}

// bucket places accepted candidates into tiers, each ordered by transaction
// date then transaction id.
func bucket(result *Result, accepted []Candidate, s Settings) {
	ordered := make([]Candidate, len(accepted))
	copy(ordered, accepted)
	sortForOutput(ordered)

	for _, c := range ordered {
		tier := Classify(c.Confidence, s)
		m := toMatch(c, tier)
		switch tier {
		case TierAuto:
			result.AutoMatched = append(result.AutoMatched, m)
		case TierSuggested:
			result.Suggested = append(result.Suggested, m)
		default:
			result.ManualReview = append(result.ManualReview, m)
		}
	}
}

func sortForOutput(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Date.Before(b.Date) || b.Date.Before(a.Date) {
			return a.Date.Before(b.Date)
		}
		if c := compareIDs(a.PrimaryID, b.PrimaryID); c != 0 {
			return c < 0
		}
		return compareIDLists(a.LedgerIDs, b.LedgerIDs) < 0
	})
}
