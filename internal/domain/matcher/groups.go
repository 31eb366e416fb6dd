package matcher

import (
	"fmt"
	"sort"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
)

// groupsPerSearch is how many combinations one search may propose.
const groupsPerSearch = 3

// combo is a subset found by searchGroups, as positions into its input.
type combo struct {
	members []int
	sum     decimal.Decimal
	diff    decimal.Decimal
}

func (c combo) less(o combo) bool {
	if !c.diff.Equal(o.diff) {
		return c.diff.LessThan(o.diff)
	}
	if len(c.members) != len(o.members) {
		return len(c.members) < len(o.members)
	}
	for i := range c.members {
		if c.members[i] != o.members[i] {
			return c.members[i] < o.members[i]
		}
	}
	return false
}

// searchGroups finds subsets of 2..maxSize amounts whose sum is within tol
// of target. amounts must be sorted descending and positive. The search
// visits at most budget nodes; exhausted reports that it stopped early.
func searchGroups(amounts []decimal.Decimal, target, tol decimal.Decimal, maxSize, budget int) (found []combo, exhausted bool) {
	n := len(amounts)
	if n < 2 {
		return nil, false
	}
	lo, hi := target.Sub(tol), target.Add(tol)

	suffix := make([]decimal.Decimal, n+1)
	suffix[n] = decimal.Zero
	for i := n - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1].Add(amounts[i])
	}

	nodes := 0
	path := make([]int, 0, maxSize)

	var dfs func(start int, sum decimal.Decimal)
	dfs = func(start int, sum decimal.Decimal) {
		for i := start; i < n && !exhausted; i++ {
			// Taking everything that is left cannot reach the target.
			if sum.Add(suffix[i]).LessThan(lo) {
				return
			}
			nodes++
			if nodes > budget {
				exhausted = true
				return
			}
			next := sum.Add(amounts[i])
			if next.GreaterThan(hi) {
				continue
			}
			path = append(path, i)
			if len(path) >= 2 && next.GreaterThanOrEqual(lo) {
				found = keepBest(found, combo{
					members: append([]int(nil), path...),
					sum:     next,
					diff:    next.Sub(target).Abs(),
				})
			}
			if len(path) < maxSize {
				dfs(i+1, next)
			}
			path = path[:len(path)-1]
		}
	}
	dfs(0, decimal.Zero)
	return found, exhausted
}

func keepBest(best []combo, c combo) []combo {
	at := sort.Search(len(best), func(i int) bool { return c.less(best[i]) })
	if at >= groupsPerSearch {
		return best
	}
	best = append(best, combo{})
	copy(best[at+1:], best[at:])
	best[at] = c
	if len(best) > groupsPerSearch {
		best = best[:groupsPerSearch]
	}
	return best
}

// bulkForTransaction proposes groups of one counterparty's entries that a
// single transaction pays together. pool maps counterparty keys to entry
// positions inside the date window.
func (ix *index) bulkForTransaction(ti int, pool map[string][]int, out *outcome) {
	s := ix.settings
	t := ix.txns[ti]
	amount := t.Magnitude()

	keys := make([]string, 0, len(pool))
	for k, members := range pool {
		if len(members) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := pool[key]
		sort.Slice(members, func(a, b int) bool {
			ea, eb := ix.entries[members[a]], ix.entries[members[b]]
			if c := ea.Outstanding().Cmp(eb.Outstanding()); c != 0 {
				return c > 0
			}
			return compareIDs(ea.ID, eb.ID) < 0
		})
		amounts := make([]decimal.Decimal, len(members))
		for i, ei := range members {
			amounts[i] = ix.entries[ei].Outstanding()
		}

		combos, exhausted := searchGroups(amounts, amount, s.AmountTolerance, s.MaxGroupSize, s.MaxGroupSearch)
		if exhausted {
			out.capacity = append(out.capacity, CapacityError{
				Limit:  "max_group_search",
				Detail: fmt.Sprintf("bulk search for transaction %s against %q stopped after %d nodes", t.ID, key, s.MaxGroupSearch),
			})
		}

		for _, cb := range combos {
			ev := evidence{diff: cb.diff}
			ledgerIDs := make([]string, 0, len(cb.members))
			allocations := make([]Allocation, 0, len(cb.members))
			for _, m := range cb.members {
				ei := members[m]
				e := ix.entries[ei]
				if d := t.Date.DaysApart(e.Date); d > ev.days {
					ev.days = d
				}
				reference, name := ix.linked(ti, ei)
				ev.reference = ev.reference || reference
				ev.name = ev.name || name
				ledgerIDs = append(ledgerIDs, e.ID)
				allocations = append(allocations, Allocation{LedgerID: e.ID, Amount: e.Outstanding()})
			}

			conf, ok := ix.scorer.scoreGroup(ev)
			if !ok {
				continue
			}
			sortIDs(ledgerIDs)
			sort.Slice(allocations, func(a, b int) bool {
				return compareIDs(allocations[a].LedgerID, allocations[b].LedgerID) < 0
			})

			counterparty := ix.entries[members[cb.members[0]]].Counterparty
			out.candidates = append(out.candidates, Candidate{
				TransactionIDs: []string{t.ID},
				LedgerIDs:      ledgerIDs,
				Confidence:     conf,
				Type:           MatchBulkPayment,
				Signals:        ev.signals(s.AmountTolerance),
				Difference:     amount.Sub(cb.sum),
				MatchedAmount:  amount,
				Allocations:    allocations,
				Date:           t.Date,
				PrimaryID:      t.ID,
				Reason: fmt.Sprintf("%d entries from %s sum to %s",
					len(ledgerIDs), counterparty, cb.sum.StringFixed(2)),
			})
		}
	}
}

// evaluateEntry proposes groups of textually linked transactions that
// together pay entry ei.
func (ix *index) evaluateEntry(ei int) outcome {
	var out outcome
	s := ix.settings
	e := ix.entries[ei]
	outstanding := e.Outstanding()
	limit := outstanding.Add(s.AmountTolerance)

	var members []int
	for _, ti := range window(ix.txnsByDirection[e.Direction], ix.txnDate, e.Date, s.DateToleranceDays) {
		if ix.txns[ti].Magnitude().GreaterThan(limit) {
			continue
		}
		if reference, name := ix.linked(ti, ei); reference || name {
			members = append(members, ti)
		}
	}
	if len(members) < 2 {
		return out
	}

	sort.Slice(members, func(a, b int) bool {
		ta, tb := ix.txns[members[a]], ix.txns[members[b]]
		if c := ta.Magnitude().Cmp(tb.Magnitude()); c != 0 {
			return c > 0
		}
		return compareIDs(ta.ID, tb.ID) < 0
	})
	amounts := make([]decimal.Decimal, len(members))
	for i, ti := range members {
		amounts[i] = ix.txns[ti].Magnitude()
	}

	combos, exhausted := searchGroups(amounts, outstanding, s.AmountTolerance, s.MaxGroupSize, s.MaxGroupSearch)
	if exhausted {
		out.capacity = append(out.capacity, CapacityError{
			Limit:  "max_group_search",
			Detail: fmt.Sprintf("bulk search for ledger entry %s stopped after %d nodes", e.ID, s.MaxGroupSearch),
		})
	}

	for _, cb := range combos {
		ev := evidence{diff: cb.diff}
		txns := make([]records.Transaction, 0, len(cb.members))
		for _, m := range cb.members {
			ti := members[m]
			t := ix.txns[ti]
			if d := t.Date.DaysApart(e.Date); d > ev.days {
				ev.days = d
			}
			reference, name := ix.linked(ti, ei)
			ev.reference = ev.reference || reference
			ev.name = ev.name || name
			txns = append(txns, t)
		}

		conf, ok := ix.scorer.scoreGroup(ev)
		if !ok {
			continue
		}

		sort.Slice(txns, func(a, b int) bool {
			if txns[a].Date.Before(txns[b].Date) || txns[b].Date.Before(txns[a].Date) {
				return txns[a].Date.Before(txns[b].Date)
			}
			return compareIDs(txns[a].ID, txns[b].ID) < 0
		})
		ids := make([]string, len(txns))
		for i, t := range txns {
			ids[i] = t.ID
		}

		// The combined payments are within tolerance of the balance, which closes.
		applied := outstanding
		out.candidates = append(out.candidates, Candidate{
			TransactionIDs:   ids,
			LedgerIDs:        []string{e.ID},
			Confidence:       conf,
			Type:             MatchBulkPayment,
			Signals:          ev.signals(s.AmountTolerance),
			Difference:       cb.sum.Sub(outstanding),
			MatchedAmount:    cb.sum,
			RemainingBalance: outstanding.Sub(applied),
			Allocations:      []Allocation{{LedgerID: e.ID, Amount: applied}},
			Date:             txns[0].Date,
			PrimaryID:        txns[0].ID,
			Reason: fmt.Sprintf("%d payments sum to %s against %s",
				len(ids), cb.sum.StringFixed(2), entryLabel(e)),
		})
	}
	return out
}

func entryLabel(e records.LedgerEntry) string {
	if e.Reference != "" {
		return e.Reference
	}
	return e.Counterparty
}
