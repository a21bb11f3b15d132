package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestCheckTotals(t *testing.T) {
	c := NewChecker()

	t.Run("consistent totals", func(t *testing.T) {
		res := c.CheckTotals(Amounts{HT: f(100), TVA: f(5.5), TTC: f(105.5)})
		assert.False(t, res.HasDiscrepancy)
		assert.Empty(t, res.Warnings)
	})

	t.Run("tolerates two cents", func(t *testing.T) {
		res := c.CheckTotals(Amounts{HT: f(100), TVA: f(20), TTC: f(120.02)})
		assert.False(t, res.HasDiscrepancy)
	})

	t.Run("flags inconsistent totals", func(t *testing.T) {
		res := c.CheckTotals(Amounts{HT: f(100), TVA: f(20), TTC: f(130)})
		assert.True(t, res.HasDiscrepancy)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "130,00 €")
	})

	t.Run("derives missing TTC", func(t *testing.T) {
		res := c.CheckTotals(Amounts{HT: f(100), TVA: f(10)})
		require.NotNil(t, res.Completed.TTC)
		assert.Equal(t, 110.0, *res.Completed.TTC)
	})

	t.Run("derives missing HT", func(t *testing.T) {
		res := c.CheckTotals(Amounts{TVA: f(10), TTC: f(110)})
		require.NotNil(t, res.Completed.HT)
		assert.Equal(t, 100.0, *res.Completed.HT)
	})

	t.Run("derives missing TVA", func(t *testing.T) {
		res := c.CheckTotals(Amounts{HT: f(100), TTC: f(120.1)})
		require.NotNil(t, res.Completed.TVA)
		assert.Equal(t, 20.1, *res.Completed.TVA)
	})
}

func TestCheckLines(t *testing.T) {
	c := NewChecker()

	assert.False(t, c.CheckLines(f(30), []float64{10, 20}).HasDiscrepancy)
	assert.False(t, c.CheckLines(nil, []float64{10, 20}).HasDiscrepancy)

	res := c.CheckLines(f(40), []float64{10, 20})
	assert.True(t, res.HasDiscrepancy)
	assert.InDelta(t, 25.0, res.MaxDiscrepancy, 1e-9)
}

func TestCompare(t *testing.T) {
	c := NewChecker()

	res := c.Compare(
		Amounts{HT: f(100), TVA: f(20), TTC: f(120)},
		Amounts{HT: f(102), TVA: f(20), TTC: f(150)},
	)
	assert.True(t, res.HasDiscrepancy)
	assert.Len(t, res.Warnings, 1)
	assert.InDelta(t, 20.0, res.MaxDiscrepancy, 1e-9)

	res = c.Compare(Amounts{HT: f(100)}, Amounts{HT: f(100), TTC: f(120)})
	assert.False(t, res.HasDiscrepancy)
	require.NotNil(t, res.Completed.TTC)
	assert.Equal(t, 120.0, *res.Completed.TTC)
}

func TestCompareSignMismatch(t *testing.T) {
	c := NewChecker()

	res := c.Compare(Amounts{HT: f(100)}, Amounts{HT: f(-100)})
	assert.True(t, res.HasDiscrepancy)
	assert.InDelta(t, 100.0, res.MaxDiscrepancy, 1e-9)
}
