package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eshaffer321/ledgermatch/internal/domain/records"
	"github.com/shopspring/decimal"
)

// txnText holds the precomputed comparison keys of a transaction.
type txnText struct {
	refKey  string
	descKey string
	tokens  []string
}

// entryText holds the precomputed comparison keys of a ledger entry.
type entryText struct {
	refKey  string
	nameKey string
	tokens  []string
}

// index is the read-only view of one run's normalized records. Every
// per-transaction and per-entry evaluation reads from it concurrently.
type index struct {
	settings Settings
	scorer   scorer

	txns      []records.Transaction
	entries   []records.LedgerEntry
	txnText   []txnText
	entryText []entryText

	// Positions into txns/entries, sorted by (date, id) per direction.
	txnsByDirection    map[records.Direction][]int
	entriesByDirection map[records.Direction][]int
}

// outcome collects what one evaluation produced.
type outcome struct {
	candidates []Candidate
	capacity   []CapacityError
}

func newIndex(settings Settings, batch records.Batch) *index {
	ix := &index{
		settings:           settings,
		scorer:             newScorer(settings),
		txns:               batch.Transactions,
		entries:            batch.Entries,
		txnText:            make([]txnText, len(batch.Transactions)),
		entryText:          make([]entryText, len(batch.Entries)),
		txnsByDirection:    make(map[records.Direction][]int),
		entriesByDirection: make(map[records.Direction][]int),
	}

	for i, t := range ix.txns {
		ix.txnText[i] = txnText{
			refKey:  referenceKey(t.Reference),
			descKey: referenceKey(t.Description),
			tokens:  nameTokens(t.Description + " " + t.Reference),
		}
		dir := t.Settles()
		ix.txnsByDirection[dir] = append(ix.txnsByDirection[dir], i)
	}
	for i, e := range ix.entries {
		tokens := nameTokens(e.Counterparty)
		ix.entryText[i] = entryText{
			refKey:  referenceKey(e.Reference),
			nameKey: strings.Join(tokens, " "),
			tokens:  tokens,
		}
		ix.entriesByDirection[e.Direction] = append(ix.entriesByDirection[e.Direction], i)
	}

	for _, positions := range ix.txnsByDirection {
		sortByDate(positions, func(i int) (records.Date, string) { return ix.txns[i].Date, ix.txns[i].ID })
	}
	for _, positions := range ix.entriesByDirection {
		sortByDate(positions, func(i int) (records.Date, string) { return ix.entries[i].Date, ix.entries[i].ID })
	}
	return ix
}

func sortByDate(positions []int, key func(int) (records.Date, string)) {
	sort.Slice(positions, func(a, b int) bool {
		da, ia := key(positions[a])
		db, ib := key(positions[b])
		if da.Before(db) || db.Before(da) {
			return da.Before(db)
		}
		return compareIDs(ia, ib) < 0
	})
}

// window returns the slice of date-sorted positions whose date lies within
// days of center.
func window(positions []int, dateOf func(int) records.Date, center records.Date, days int) []int {
	from, to := center.AddDays(-days), center.AddDays(days)
	lo := sort.Search(len(positions), func(k int) bool {
		return !dateOf(positions[k]).Before(from)
	})
	hi := sort.Search(len(positions), func(k int) bool {
		return to.Before(dateOf(positions[k]))
	})
	if hi < lo {
		return nil
	}
	return positions[lo:hi]
}

func (ix *index) entryDate(i int) records.Date { return ix.entries[i].Date }

func (ix *index) txnDate(i int) records.Date { return ix.txns[i].Date }

// linked reports the textual signals between transaction ti and entry ei,
// honoring the enable flags.
func (ix *index) linked(ti, ei int) (reference, name bool) {
	tt, et := ix.txnText[ti], ix.entryText[ei]
	if ix.settings.EnableReferenceMatching {
		reference = referenceMatches(et.refKey, tt.refKey, tt.descKey)
	}
	if ix.settings.EnableNameMatching {
		name = nameMatches(et.tokens, tt.tokens, ix.settings.NameSimilarity)
	}
	return reference, name
}

// evaluateTransaction builds every candidate for transaction ti: one-to-one
// pairings, partial payments and bulk groups.
func (ix *index) evaluateTransaction(ti int) outcome {
	var out outcome
	s := ix.settings
	t := ix.txns[ti]
	amount := t.Magnitude()
	reach := s.DateToleranceDays + s.ExactAmountGraceDays

	pool := make(map[string][]int)
	for _, ei := range window(ix.entriesByDirection[t.Settles()], ix.entryDate, t.Date, reach) {
		e := ix.entries[ei]
		days := t.Date.DaysApart(e.Date)
		inWindow := days <= s.DateToleranceDays
		outstanding := e.Outstanding()
		diff := amount.Sub(outstanding).Abs()

		// Beyond the window only exact amounts count.
		if !inWindow && !diff.IsZero() {
			continue
		}

		reference, name := ix.linked(ti, ei)
		short := amount.LessThan(outstanding.Sub(s.AmountTolerance))

		switch {
		case s.EnablePartialPaymentMatching && inWindow && short && (reference || name):
			if c, ok := ix.partialCandidate(ti, ei, days, reference, name); ok {
				out.candidates = append(out.candidates, c)
			}
		case diff.LessThanOrEqual(s.AmountTolerance) || (inWindow && (reference || name)):
			if c, ok := ix.pairCandidate(ti, ei, evidence{diff: diff, days: days, reference: reference, name: name}); ok {
				out.candidates = append(out.candidates, c)
			}
		}

		key := ix.entryText[ei].nameKey
		if s.EnableBulkPaymentMatching && inWindow && key != "" && outstanding.LessThanOrEqual(amount.Add(s.AmountTolerance)) {
			pool[key] = append(pool[key], ei)
		}
	}

	if s.EnableBulkPaymentMatching {
		ix.bulkForTransaction(ti, pool, &out)
	}
	return out
}

// pairCandidate scores a one-to-one pairing against the entry's outstanding
// balance.
func (ix *index) pairCandidate(ti, ei int, ev evidence) (Candidate, bool) {
	conf, mt, ok := ix.scorer.score(ev)
	if !ok {
		return Candidate{}, false
	}

	t, e := ix.txns[ti], ix.entries[ei]
	amount := t.Magnitude()
	outstanding := e.Outstanding()

	// A difference inside the tolerance is written off, so the entry closes.
	applied := decimal.Min(amount, outstanding)
	if ev.diff.LessThanOrEqual(ix.settings.AmountTolerance) {
		applied = outstanding
	}

	c := Candidate{
		TransactionIDs:   []string{t.ID},
		LedgerIDs:        []string{e.ID},
		Confidence:       conf,
		Type:             mt,
		Signals:          ev.signals(ix.settings.AmountTolerance),
		Difference:       amount.Sub(outstanding),
		MatchedAmount:    amount,
		RemainingBalance: outstanding.Sub(applied),
		Allocations:      []Allocation{{LedgerID: e.ID, Amount: applied}},
		Date:             t.Date,
		PrimaryID:        t.ID,
		Reason:           describe(mt, ev),
	}

	if ix.settings.EnablePartialPaymentMatching && e.HasPriorSettlement() {
		c.Type = MatchPartialPayment
		c.Reason = fmt.Sprintf("pays outstanding balance %s after %s already settled (%s)",
			outstanding.StringFixed(2), e.Settled.StringFixed(2), c.Reason)
	}
	return c, true
}

// partialCandidate pairs a payment smaller than the outstanding balance with
// a textually linked entry. The payment is applied in full and the rest of
// the balance stays open.
func (ix *index) partialCandidate(ti, ei, days int, reference, name bool) (Candidate, bool) {
	conf, ok := ix.scorer.scoreLinked(days, reference, name)
	if !ok {
		return Candidate{}, false
	}

	t, e := ix.txns[ti], ix.entries[ei]
	amount := t.Magnitude()
	outstanding := e.Outstanding()
	ev := evidence{diff: outstanding.Sub(amount), days: days, reference: reference, name: name}

	return Candidate{
		TransactionIDs:   []string{t.ID},
		LedgerIDs:        []string{e.ID},
		Confidence:       conf,
		Type:             MatchPartialPayment,
		Signals:          ev.signals(ix.settings.AmountTolerance),
		Difference:       decimal.Zero,
		MatchedAmount:    amount,
		RemainingBalance: outstanding.Sub(amount),
		Allocations:      []Allocation{{LedgerID: e.ID, Amount: amount}},
		Date:             t.Date,
		PrimaryID:        t.ID,
		Reason: fmt.Sprintf("partial payment of %s against outstanding %s, %s remaining",
			amount.StringFixed(2), outstanding.StringFixed(2), outstanding.Sub(amount).StringFixed(2)),
	}, true
}

// bankChargeCandidate absorbs a small debit that found no candidate.
func (ix *index) bankChargeCandidate(ti int) (Candidate, bool) {
	t := ix.txns[ti]
	if !ix.settings.AutoMatchBankCharges || t.IsCredit() {
		return Candidate{}, false
	}
	amount := t.Magnitude()
	if amount.GreaterThan(ix.settings.BankChargeThreshold) {
		return Candidate{}, false
	}
	return Candidate{
		TransactionIDs: []string{t.ID},
		LedgerIDs:      []string{},
		Confidence:     100,
		Type:           MatchBankCharge,
		Difference:     amount,
		MatchedAmount:  amount,
		Date:           t.Date,
		PrimaryID:      t.ID,
		Reason: fmt.Sprintf("debit of %s at or below bank charge threshold %s with no ledger candidate",
			amount.StringFixed(2), ix.settings.BankChargeThreshold.StringFixed(2)),
	}, true
}

func describe(mt MatchType, ev evidence) string {
	switch mt {
	case MatchExact:
		if ev.reference {
			return "amount, date and reference match exactly"
		}
		return "amount and date match exactly"
	case MatchDateTolerance:
		return fmt.Sprintf("amount matches exactly, dates %d days apart", ev.days)
	case MatchAmountTolerance:
		return fmt.Sprintf("amount within tolerance (difference %s), dates %d days apart", ev.diff.StringFixed(2), ev.days)
	case MatchReference:
		return fmt.Sprintf("reference matches, amount differs by %s, dates %d days apart", ev.diff.StringFixed(2), ev.days)
	case MatchName:
		return fmt.Sprintf("counterparty name matches, amount differs by %s, dates %d days apart", ev.diff.StringFixed(2), ev.days)
	}
	return string(mt)
}
