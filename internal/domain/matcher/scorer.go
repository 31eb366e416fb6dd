package matcher

import (
	"math"

	"github.com/shopspring/decimal"
)

// Score bases and penalties.
const (
	scoreExactWithReference = 100.0
	scoreExactAmount        = 95.0
	scoreExactAmountFloor   = 70.0
	scoreAmountTolerance    = 85.0
	scoreReference          = 75.0
	scoreName               = 60.0
	scoreNameCap            = 74.0
	amountPenalty           = 15.0 // at a difference equal to the tolerance
	dayPenalty              = 2.0
	groupPenalty            = 5.0
)

// evidence is everything the scorer knows about one pairing.
type evidence struct {
	diff      decimal.Decimal // absolute amount difference
	days      int             // absolute date offset
	reference bool
	name      bool
}

func (ev evidence) signals(amountTol decimal.Decimal) Signals {
	var s Signals
	if ev.diff.IsZero() {
		s |= SignalExactAmount
	} else if ev.diff.LessThanOrEqual(amountTol) {
		s |= SignalAmountWithinTolerance
	}
	if ev.days == 0 {
		s |= SignalSameDate
	}
	if ev.reference {
		s |= SignalReference
	}
	if ev.name {
		s |= SignalName
	}
	return s
}

// scorer turns evidence into a confidence using the first rule that
// applies, in priority order.
type scorer struct {
	amountTol     decimal.Decimal
	dateTol       int
	minConfidence float64
}

func newScorer(s Settings) scorer {
	return scorer{
		amountTol:     s.AmountTolerance,
		dateTol:       s.DateToleranceDays,
		minConfidence: s.MinConfidence,
	}
}

// score returns the confidence and match type for ev, or false when the
// pairing has no positive signal or falls below the discard threshold.
// Exact amounts lose points only for days beyond date_tolerance_days.
func (sc scorer) score(ev evidence) (float64, MatchType, bool) {
	var conf float64
	var mt MatchType

	days := float64(ev.days)
	switch {
	case ev.diff.IsZero() && ev.days == 0 && ev.reference:
		conf, mt = scoreExactWithReference, MatchExact
	case ev.diff.IsZero():
		// Only days outside the window cost confidence; exact amounts are
		// admitted up to the grace period beyond it.
		late := ev.days - sc.dateTol
		if late < 0 {
			late = 0
		}
		conf = math.Max(scoreExactAmountFloor, scoreExactAmount-dayPenalty*float64(late))
		mt = MatchExact
		if ev.days > 0 {
			mt = MatchDateTolerance
		}
	case ev.diff.LessThanOrEqual(sc.amountTol) && (ev.days == 0 || (ev.days <= sc.dateTol && !ev.reference && !ev.name)):
		// With a date offset a text signal takes over from the amount rule.
		conf = scoreAmountTolerance - amountPenalty*sc.ratio(ev.diff) - dayPenalty*days
		mt = MatchAmountTolerance
	case ev.reference:
		conf = scoreReference - dayPenalty*days - amountPenalty*sc.ratio(ev.diff)
		mt = MatchReference
	case ev.name:
		conf = math.Min(scoreNameCap, scoreName-dayPenalty*days-amountPenalty*sc.ratio(ev.diff))
		mt = MatchName
	default:
		return 0, "", false
	}

	return sc.accept(conf, mt)
}

// scoreLinked scores a pairing that rests on text alone with the amount
// difference taken as zero, as for a partial payment against a larger
// outstanding balance.
func (sc scorer) scoreLinked(days int, reference, name bool) (float64, bool) {
	var conf float64
	switch {
	case reference:
		conf = scoreReference - dayPenalty*float64(days)
	case name:
		conf = math.Min(scoreNameCap, scoreName-dayPenalty*float64(days))
	default:
		return 0, false
	}
	conf, _, ok := sc.accept(conf, MatchPartialPayment)
	return conf, ok
}

// scoreGroup scores a bulk group on its total difference and widest date
// offset.
func (sc scorer) scoreGroup(ev evidence) (float64, bool) {
	conf, _, ok := sc.score(ev)
	if !ok {
		return 0, false
	}
	conf, _, ok = sc.accept(conf-groupPenalty, MatchBulkPayment)
	return conf, ok
}

func (sc scorer) accept(conf float64, mt MatchType) (float64, MatchType, bool) {
	if math.IsInf(conf, -1) {
		return 0, "", false
	}
	conf = roundConfidence(conf)
	if conf < sc.minConfidence {
		return 0, "", false
	}
	return conf, mt, true
}

// ratio is diff / amount tolerance. A zero tolerance makes any difference
// infinitely costly.
func (sc scorer) ratio(diff decimal.Decimal) float64 {
	if diff.IsZero() {
		return 0
	}
	if !sc.amountTol.IsPositive() {
		return math.Inf(1)
	}
	return diff.Div(sc.amountTol).InexactFloat64()
}

func roundConfidence(conf float64) float64 {
	if math.IsInf(conf, -1) || math.IsNaN(conf) || conf < 0 {
		return 0
	}
	if conf > 100 {
		return 100
	}
	return math.Round(conf*100) / 100
}
