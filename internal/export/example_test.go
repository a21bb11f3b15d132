package export_test

import (
	"fmt"

	"restodash/internal/export"
)

func ExampleSanitizeFilename() {
	fmt.Println(export.SanitizeFilename("Facture été 2024.pdf"))
	fmt.Println(export.SanitizeFilename("N°123 (copie)"))
	fmt.Println(export.SanitizeFilename("€€€"))
	// Output:
	// Facture-ete-2024.pdf
	// N-123-(copie)
	// document
}
