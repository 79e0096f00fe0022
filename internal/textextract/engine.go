// Package textextract turns PDF bytes into plain text through an ordered
// chain of extraction strategies, each guarded by an acceptance predicate.
package textextract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"invoiceapi/internal/logger"
)

// DefaultMinPrimaryChars is the trimmed length the primary strategy must
// exceed before its output is trusted.
const DefaultMinPrimaryChars = 100

// ExtractFunc produces text from raw document bytes.
type ExtractFunc func(ctx context.Context, raw []byte) (string, error)

// Predicate decides whether a strategy's output is good enough to return.
type Predicate func(text string) bool

// Strategy is one step of the fallback chain.
type Strategy struct {
	Name    string
	Extract ExtractFunc
	Accept  Predicate
}

// Result is the accepted text and the strategy that produced it.
type Result struct {
	Text     string
	Strategy string
}

// Extractor is implemented by Engine and by test doubles.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (Result, bool)
}

// Engine evaluates strategies in order and returns the first accepted output.
type Engine struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewEngine creates an engine over the given strategies.
func NewEngine(strategies ...Strategy) *Engine {
	return &Engine{
		strategies: strategies,
		log:        logger.WithComponent("textextract"),
	}
}

// Strategies returns the names of the configured strategies in order.
func (e *Engine) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name)
	}
	return names
}

// Extract runs the chain. The boolean is false when no strategy produced
// acceptable text; Extract never returns an error or panics on bad input.
func (e *Engine) Extract(ctx context.Context, raw []byte) (Result, bool) {
	if len(raw) == 0 {
		e.log.Debug().Msg("Empty document, nothing to extract")
		return Result{}, false
	}

	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			e.log.Warn().Err(err).Str("strategy", s.Name).Msg("Extraction canceled")
			return Result{}, false
		}

		text, err := e.run(ctx, s, raw)
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("strategy", s.Name).
				Msg("Extraction strategy failed, trying next")
			continue
		}

		if s.Accept != nil && !s.Accept(text) {
			e.log.Debug().
				Str("strategy", s.Name).
				Int("chars", utf8.RuneCountInString(strings.TrimSpace(text))).
				Msg("Strategy output rejected")
			continue
		}

		e.log.Info().
			Str("strategy", s.Name).
			Int("chars", utf8.RuneCountInString(text)).
			Msg("Text extracted from document")
		return Result{Text: text, Strategy: s.Name}, true
	}

	e.log.Warn().Int("bytes", len(raw)).Msg("No strategy produced usable text")
	return Result{}, false
}

// run isolates a strategy so that a panic in a parser becomes an error.
func (e *Engine) run(ctx context.Context, s Strategy, raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StrategyError{Strategy: s.Name, Err: fmt.Errorf("%w: %v", ErrParserPanic, r)}
		}
	}()

	text, err = s.Extract(ctx, raw)
	if err != nil {
		return "", &StrategyError{Strategy: s.Name, Err: err}
	}
	return text, nil
}

// MinTrimmedLength accepts text whose trimmed length is strictly greater
// than n characters.
func MinTrimmedLength(n int) Predicate {
	return func(text string) bool {
		return utf8.RuneCountInString(strings.TrimSpace(text)) > n
	}
}

// NonEmpty accepts any text with non-whitespace content.
func NonEmpty(text string) bool {
	return strings.TrimSpace(text) != ""
}
