package textextract_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoiceapi/internal/textextract"
	"invoiceapi/internal/textextract/pdftest"
)

// ExampleEngine_Extract runs a two step chain where the first strategy's
// output is too short to be trusted.
func ExampleEngine_Extract() {
	engine := textextract.NewEngine(
		textextract.Strategy{
			Name: "header-only",
			Extract: func(ctx context.Context, raw []byte) (string, error) {
				return "FACTURA", nil
			},
			Accept: textextract.MinTrimmedLength(10),
		},
		textextract.Strategy{
			Name: "broken",
			Extract: func(ctx context.Context, raw []byte) (string, error) {
				return "", errors.New("xref table not found")
			},
		},
		textextract.Strategy{
			Name: "full",
			Extract: func(ctx context.Context, raw []byte) (string, error) {
				return "FACTURA F43289956 Cliente 375986", nil
			},
			Accept: textextract.NonEmpty,
		},
	)

	res, ok := engine.Extract(context.Background(), []byte("%PDF-1.4"))
	fmt.Println(ok, res.Strategy)
	fmt.Println(res.Text)

	_, ok = engine.Extract(context.Background(), nil)
	fmt.Println(ok)

	// Output:
	// true full
	// FACTURA F43289956 Cliente 375986
	// false
}

func ExampleNewDefaultEngine() {
	engine := textextract.NewDefaultEngine(textextract.Config{MinPrimaryChars: 20})
	fmt.Println(strings.Join(engine.Strategies(), " -> "))

	doc := pdftest.Build([]string{"FACTURA F43289956", "Importe total 2.980,07 EUR"})
	res, ok := engine.Extract(context.Background(), doc)
	fmt.Println(ok, res.Strategy, strings.Contains(res.Text, "F43289956"))

	_, ok = engine.Extract(context.Background(), pdftest.Build([]string{}))
	fmt.Println(ok)

	// Output:
	// plain -> layout -> repaired
	// true plain true
	// false
}
