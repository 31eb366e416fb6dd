package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amounts(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestSearchGroups_FindsExactSum(t *testing.T) {
	// Act
	found, exhausted := searchGroups(amounts(50000, 30000, 20000), decimal.NewFromInt(100000), decimal.NewFromInt(100), 10, 1000)

	// Assert
	assert.False(t, exhausted)
	require.Len(t, found, 1)
	assert.Equal(t, []int{0, 1, 2}, found[0].members)
	assert.True(t, found[0].diff.IsZero())
}

func TestSearchGroups_RanksByDifferenceThenSize(t *testing.T) {
	// 60+40 and 60+40 (second 40) are exact, 70+25 is 5 short.
	found, exhausted := searchGroups(amounts(70, 60, 40, 40, 25), decimal.NewFromInt(100), decimal.NewFromInt(5), 3, 1000)

	assert.False(t, exhausted)
	require.Len(t, found, groupsPerSearch)
	assert.Equal(t, []int{1, 2}, found[0].members)
	assert.Equal(t, []int{1, 3}, found[1].members)
	assert.True(t, found[2].diff.Equal(decimal.NewFromInt(5)))
}

func TestSearchGroups_RespectsMaxSize(t *testing.T) {
	found, exhausted := searchGroups(amounts(25, 25, 25, 25), decimal.NewFromInt(100), decimal.Zero, 3, 1000)

	assert.False(t, exhausted)
	assert.Empty(t, found)
}

func TestSearchGroups_SingleItemIsNotAGroup(t *testing.T) {
	found, exhausted := searchGroups(amounts(100), decimal.NewFromInt(100), decimal.Zero, 10, 1000)

	assert.False(t, exhausted)
	assert.Empty(t, found)
}

func TestSearchGroups_BudgetExhaustion(t *testing.T) {
	values := make([]int64, 20)
	for i := range values {
		values[i] = 1
	}

	found, exhausted := searchGroups(amounts(values...), decimal.NewFromInt(10), decimal.Zero, 10, 50)

	assert.True(t, exhausted)
	assert.LessOrEqual(t, len(found), groupsPerSearch)
}
