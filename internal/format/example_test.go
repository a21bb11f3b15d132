package format_test

import (
	"fmt"

	"restodash/internal/format"
)

func ExampleCurrency() {
	amount := 1234.56
	fmt.Println(format.Currency(&amount))
	fmt.Println(format.Currency(nil))
	// Output:
	// 1 234,56 €
	// --
}

func ExampleParseNumber() {
	fmt.Println(format.ParseNumber("1 234,56 €"))
	fmt.Println(format.ParseNumber("1.234,56"))
	fmt.Println(format.ParseNumber("abc"))
	// Output:
	// 1234.56
	// 1234.56
	// 0
}

func ExampleInvoiceReference() {
	fmt.Println(format.InvoiceReference("F-42", "3f2a9c71-0d4e"))
	fmt.Println(format.InvoiceReference("", "3f2a9c71-0d4e"))
	fmt.Println(format.NormalizeInvoiceNumber(format.FormatInvoiceNumber("F-42")))
	// Output:
	// N°F-42
	// #3f2a9c71
	// F-42
}

func ExamplePercentage() {
	up, down := 12.5, -3.0
	fmt.Println(format.Percentage(&up))
	fmt.Println(format.Percentage(&down))
	fmt.Println(format.Percentage(nil))
	// Output:
	// +12,5%
	// -3%
	// 0%
}

func ExampleDate() {
	fmt.Println(format.Date("2024-03-15T10:00:00Z"))
	fmt.Println(format.Date("hier"))
	fmt.Println(format.Quantity(2.5))
	// Output:
	// 15/03/2024
	// --
	// 2,5
}
