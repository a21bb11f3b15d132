package reconcile_test

import (
	"fmt"

	"restodash/internal/reconcile"
)

func ptr(v float64) *float64 { return &v }

func ExampleChecker_CheckTotals() {
	checker := reconcile.NewChecker()

	result := checker.CheckTotals(reconcile.Amounts{HT: ptr(100), TVA: ptr(5.5), TTC: ptr(110)})
	fmt.Println(result.HasDiscrepancy)
	fmt.Println(result.Warnings[0])

	// A missing total is derived from the two others
	result = checker.CheckTotals(reconcile.Amounts{HT: ptr(100), TVA: ptr(5.5)})
	fmt.Println(*result.Completed.TTC)
	// Output:
	// true
	// HT (100,00 €) + TVA (5,50 €) = 105,50 €, mais TTC = 110,00 € (écart 4,50 €)
	// 105.5
}

func ExampleChecker_Compare() {
	checker := reconcile.NewChecker()

	stored := reconcile.Amounts{HT: ptr(100), TTC: ptr(105.5)}
	extracted := reconcile.Amounts{TVA: ptr(5.5), TTC: ptr(120)}

	result := checker.Compare(stored, extracted)
	for _, w := range result.Warnings {
		fmt.Println(w)
	}
	// Output:
	// TVA absent, valeur du document : 5,50 €
	// TTC enregistré 105,50 €, document 120,00 € (écart 12.1%)
}
