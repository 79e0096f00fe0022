package textextract

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPDF is returned when the bytes do not parse as a PDF document.
	ErrNotPDF = errors.New("not a readable PDF document")

	// ErrNoPages is returned when the document has no page objects.
	ErrNoPages = errors.New("document has no pages")

	// ErrParserPanic marks a panic recovered from an underlying parser.
	ErrParserPanic = errors.New("pdf parser panicked")
)

// StrategyError ties a failure to the strategy that produced it.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("textextract: strategy %s failed: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}
