// Package reconcile checks the totals of an invoice against their own
// arithmetic, against the sum of its lines and against totals extracted from
// the source document.
package reconcile

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"restodash/internal/format"
	"restodash/internal/logger"
)

var (
	// arithmeticTolerance is the accepted gap between HT + TVA and TTC.
	arithmeticTolerance = decimal.NewFromFloat(0.02)

	// sourceTolerancePct is the accepted gap, in percent, between stored and
	// extracted totals.
	sourceTolerancePct = 5.0

	hundred = decimal.NewFromInt(100)
)

// Amounts holds the three totals of an invoice. Nil means unknown.
type Amounts struct {
	HT  *float64 `json:"ht"`
	TVA *float64 `json:"tva"`
	TTC *float64 `json:"ttc"`
}

// Result lists the problems found on a set of totals.
type Result struct {
	Warnings       []string `json:"warnings"`
	HasDiscrepancy bool     `json:"has_discrepancy"`
	MaxDiscrepancy float64  `json:"max_discrepancy_pct"`

	// Completed holds the totals with missing values derived from the other two.
	Completed Amounts `json:"completed"`
}

// Checker runs the reconciliation rules.
type Checker struct {
	log zerolog.Logger
}

// NewChecker creates a new checker
func NewChecker() *Checker {
	return &Checker{log: logger.WithComponent("reconcile")}
}

// CheckTotals verifies HT + TVA = TTC and derives a missing total from the
// two others.
func (c *Checker) CheckTotals(a Amounts) *Result {
	result := &Result{Warnings: []string{}, Completed: a}

	ht, hasHT := toDecimal(a.HT)
	tva, hasTVA := toDecimal(a.TVA)
	ttc, hasTTC := toDecimal(a.TTC)

	switch {
	case hasHT && hasTVA && hasTTC:
		computed := ht.Add(tva)
		if gap := computed.Sub(ttc).Abs(); gap.GreaterThan(arithmeticTolerance) {
			result.HasDiscrepancy = true
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"HT (%s) + TVA (%s) = %s, mais TTC = %s (écart %s)",
				format.CurrencyDecimal(ht), format.CurrencyDecimal(tva),
				format.CurrencyDecimal(computed), format.CurrencyDecimal(ttc),
				format.CurrencyDecimal(gap)))

			c.log.Warn().
				Str("ht", ht.String()).
				Str("tva", tva.String()).
				Str("ttc", ttc.String()).
				Str("gap", gap.String()).
				Msg("Invoice totals do not add up")
		}
	case hasHT && hasTVA:
		result.Completed.TTC = fromDecimal(ht.Add(tva))
		result.Warnings = append(result.Warnings, "TTC calculé à partir de HT + TVA")
	case hasTTC && hasTVA:
		result.Completed.HT = fromDecimal(ttc.Sub(tva))
		result.Warnings = append(result.Warnings, "HT calculé à partir de TTC - TVA")
	case hasTTC && hasHT:
		result.Completed.TVA = fromDecimal(ttc.Sub(ht))
		result.Warnings = append(result.Warnings, "TVA calculée à partir de TTC - HT")
	}

	return result
}

// CheckLines compares the HT total with the sum of the line totals.
func (c *Checker) CheckLines(ht *float64, lineTotals []float64) *Result {
	result := &Result{Warnings: []string{}}

	total, ok := toDecimal(ht)
	if !ok || len(lineTotals) == 0 {
		return result
	}

	sum := decimal.Zero
	for _, line := range lineTotals {
		sum = sum.Add(decimal.NewFromFloat(line))
	}

	if gap := sum.Sub(total).Abs(); gap.GreaterThan(arithmeticTolerance) {
		result.HasDiscrepancy = true
		result.MaxDiscrepancy = discrepancyPct(total, sum)
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"La somme des lignes (%s) diffère du total HT (%s)",
			format.CurrencyDecimal(sum), format.CurrencyDecimal(total)))
	}
	return result
}

// Compare checks stored totals against totals extracted from the document.
func (c *Checker) Compare(stored, extracted Amounts) *Result {
	result := &Result{Warnings: []string{}, Completed: stored}

	c.compareOne("HT", stored.HT, extracted.HT, &result.Completed.HT, result)
	c.compareOne("TVA", stored.TVA, extracted.TVA, &result.Completed.TVA, result)
	c.compareOne("TTC", stored.TTC, extracted.TTC, &result.Completed.TTC, result)

	c.log.Debug().
		Bool("has_discrepancy", result.HasDiscrepancy).
		Float64("max_discrepancy_pct", result.MaxDiscrepancy).
		Strs("warnings", result.Warnings).
		Msg("Compared stored and extracted totals")

	return result
}

func (c *Checker) compareOne(name string, stored, extracted *float64, completed **float64, result *Result) {
	s, hasStored := toDecimal(stored)
	e, hasExtracted := toDecimal(extracted)

	switch {
	case hasStored && hasExtracted:
		pct := discrepancyPct(s, e)
		if pct > result.MaxDiscrepancy {
			result.MaxDiscrepancy = pct
		}
		if pct > sourceTolerancePct {
			result.HasDiscrepancy = true
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s enregistré %s, document %s (écart %.1f%%)",
				name, format.CurrencyDecimal(s), format.CurrencyDecimal(e), pct))
		}
	case hasExtracted:
		*completed = fromDecimal(e)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s absent, valeur du document : %s", name, format.CurrencyDecimal(e)))
	}
}

// discrepancyPct returns the gap between two amounts relative to the larger
// one. Amounts of opposite sign are a full 100% gap.
func discrepancyPct(a, b decimal.Decimal) float64 {
	if a.IsZero() && b.IsZero() {
		return 0
	}
	if a.IsZero() || b.IsZero() || a.Sign() != b.Sign() {
		return 100
	}

	larger, smaller := a.Abs(), b.Abs()
	if smaller.GreaterThan(larger) {
		larger, smaller = smaller, larger
	}
	pct, _ := larger.Sub(smaller).Div(larger).Mul(hundred).Float64()
	return pct
}

func toDecimal(v *float64) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*v), true
}

func fromDecimal(d decimal.Decimal) *float64 {
	f, _ := d.Round(2).Float64()
	return &f
}
