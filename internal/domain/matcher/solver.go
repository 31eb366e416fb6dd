package matcher

import (
	"sort"
	"strconv"
	"strings"
)

// Solver selects a conflict-free subset of candidates: no transaction id and
// no ledger id may appear in more than one accepted candidate.
type Solver interface {
	Solve(candidates []Candidate) []Candidate
}

// GreedySolver accepts candidates in descending priority and discards any
// candidate with an already claimed member. It never backtracks, so the
// result approximates rather than guarantees maximum total confidence.
//
// Priority is, in order:
//   - higher confidence
//   - earlier transaction date
//   - lower transaction id (numeric when both ids are integers)
//   - more signals
//   - fewer members
//   - lower ledger ids, compared element by element
type GreedySolver struct{}

// Solve implements Solver.
func (GreedySolver) Solve(candidates []Candidate) []Candidate {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return higherPriority(ordered[i], ordered[j])
	})

	claimedTxns := make(map[string]bool)
	claimedEntries := make(map[string]bool)
	var accepted []Candidate

	for _, c := range ordered {
		if anyClaimed(claimedTxns, c.TransactionIDs) || anyClaimed(claimedEntries, c.LedgerIDs) {
			continue
		}
		for _, id := range c.TransactionIDs {
			claimedTxns[id] = true
		}
		for _, id := range c.LedgerIDs {
			claimedEntries[id] = true
		}
		accepted = append(accepted, c)
	}
	return accepted
}

func anyClaimed(claimed map[string]bool, ids []string) bool {
	for _, id := range ids {
		if claimed[id] {
			return true
		}
	}
	return false
}

func higherPriority(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Date.Before(b.Date) || b.Date.Before(a.Date) {
		return a.Date.Before(b.Date)
	}
	if c := compareIDs(a.PrimaryID, b.PrimaryID); c != 0 {
		return c < 0
	}
	if sa, sb := a.Signals.Count(), b.Signals.Count(); sa != sb {
		return sa > sb
	}
	if ma, mb := len(a.TransactionIDs)+len(a.LedgerIDs), len(b.TransactionIDs)+len(b.LedgerIDs); ma != mb {
		return ma < mb
	}
	if c := compareIDLists(a.LedgerIDs, b.LedgerIDs); c != 0 {
		return c < 0
	}
	return compareIDLists(a.TransactionIDs, b.TransactionIDs) < 0
}

// compareIDs orders integer ids numerically before all other ids, which
// compare lexically.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func compareIDLists(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIDs(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return compareIDs(ids[i], ids[j]) < 0 })
}
