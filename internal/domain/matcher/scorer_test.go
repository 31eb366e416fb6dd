package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestScorer_Score(t *testing.T) {
	sc := newScorer(DefaultSettings())

	tests := []struct {
		name     string
		ev       evidence
		want     float64
		wantType MatchType
		wantOK   bool
	}{
		{"exact amount, date and reference", evidence{diff: decimal.Zero, days: 0, reference: true}, 100, MatchExact, true},
		{"exact amount and date", evidence{diff: decimal.Zero, days: 0}, 95, MatchExact, true},
		{"exact amount inside window", evidence{diff: decimal.Zero, days: 2}, 95, MatchDateTolerance, true},
		{"exact amount two days past window", evidence{diff: decimal.Zero, days: 5}, 91, MatchDateTolerance, true},
		{"exact amount far past window hits floor", evidence{diff: decimal.Zero, days: 30}, 70, MatchDateTolerance, true},
		{"half tolerance same day", evidence{diff: decimal.NewFromInt(50), days: 0}, 77.5, MatchAmountTolerance, true},
		{"full tolerance two days", evidence{diff: decimal.NewFromInt(100), days: 2}, 66, MatchAmountTolerance, true},
		{"half tolerance same day with reference", evidence{diff: decimal.NewFromInt(50), days: 0, reference: true}, 77.5, MatchAmountTolerance, true},
		{"half tolerance two days with reference", evidence{diff: decimal.NewFromInt(50), days: 2, reference: true}, 63.5, MatchReference, true},
		{"tenth of tolerance one day with name", evidence{diff: decimal.NewFromInt(10), days: 1, name: true}, 56.5, MatchName, true},
		{"reference beyond tolerance", evidence{diff: decimal.NewFromInt(120), days: 1, reference: true}, 55, MatchReference, true},
		{"name beyond tolerance is discarded", evidence{diff: decimal.NewFromInt(120), days: 0, name: true}, 0, "", false},
		{"no signal", evidence{diff: decimal.NewFromInt(500), days: 1}, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mt, ok := sc.score(tt.ev)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, mt)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestScorer_NameNeverOutranksReference(t *testing.T) {
	settings := DefaultSettings()
	settings.MinConfidence = 0
	sc := newScorer(settings)

	for days := 0; days <= 3; days++ {
		ref, _, okRef := sc.score(evidence{diff: decimal.NewFromInt(110), days: days, reference: true})
		name, _, okName := sc.score(evidence{diff: decimal.NewFromInt(110), days: days, name: true})
		assert.True(t, okRef)
		assert.True(t, okName)
		assert.Greater(t, ref, name)
		assert.LessOrEqual(t, name, 74.0)
	}
}

func TestScorer_ZeroToleranceRejectsAnyDifference(t *testing.T) {
	settings := DefaultSettings()
	settings.AmountTolerance = decimal.Zero
	settings.MinConfidence = 0
	sc := newScorer(settings)

	_, _, ok := sc.score(evidence{diff: decimal.NewFromFloat(0.01), reference: true})
	assert.False(t, ok)

	got, mt, ok := sc.score(evidence{diff: decimal.Zero})
	assert.True(t, ok)
	assert.Equal(t, MatchExact, mt)
	assert.Equal(t, 95.0, got)
}

func TestScorer_ScoreLinked(t *testing.T) {
	sc := newScorer(DefaultSettings())

	got, ok := sc.scoreLinked(1, true, false)
	assert.True(t, ok)
	assert.Equal(t, 73.0, got)

	got, ok = sc.scoreLinked(0, false, true)
	assert.True(t, ok)
	assert.Equal(t, 60.0, got)

	_, ok = sc.scoreLinked(6, false, true)
	assert.False(t, ok, "48 is below the discard threshold")

	_, ok = sc.scoreLinked(0, false, false)
	assert.False(t, ok)
}

func TestScorer_ScoreGroup(t *testing.T) {
	sc := newScorer(DefaultSettings())

	got, ok := sc.scoreGroup(evidence{diff: decimal.Zero, days: 1})
	assert.True(t, ok)
	assert.Equal(t, 90.0, got)

	got, ok = sc.scoreGroup(evidence{diff: decimal.NewFromInt(20), days: 0})
	assert.True(t, ok)
	assert.Equal(t, 77.0, got)
}

func TestEvidence_Signals(t *testing.T) {
	tol := decimal.NewFromInt(100)

	s := evidence{diff: decimal.Zero, days: 0, reference: true}.signals(tol)
	assert.True(t, s.Has(SignalExactAmount|SignalSameDate|SignalReference))
	assert.Equal(t, 3, s.Count())

	s = evidence{diff: decimal.NewFromInt(40), days: 2, name: true}.signals(tol)
	assert.True(t, s.Has(SignalAmountWithinTolerance|SignalName))
	assert.False(t, s.Has(SignalSameDate))
	assert.Equal(t, 2, s.Count())

	s = evidence{diff: decimal.NewFromInt(400), days: 2}.signals(tol)
	assert.Equal(t, 0, s.Count())
}
