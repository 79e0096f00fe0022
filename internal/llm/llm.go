// Package llm provides the chat-completion collaborator used by the invoice
// extraction client, with adapters for OpenAI and Vertex AI Gemini.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single system + user exchange.
type Request struct {
	System      string
	User        string
	Temperature float32
}

// Completer sends one request and returns the model's completion text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// FailureKind classifies provider failures independently of the provider.
type FailureKind int

const (
	// KindUnknown covers transport errors, cancellations and anything the
	// adapter could not classify.
	KindUnknown FailureKind = iota
	// KindRateLimited means the provider rejected the call for rate or quota
	// reasons.
	KindRateLimited
	// KindProvider is any other error reported by the provider API.
	KindProvider
)

func (k FailureKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// ErrEmptyCompletion is returned when the provider answered without content.
var ErrEmptyCompletion = errors.New("provider returned no completion")

// ProviderError is the error shape every adapter returns.
type ProviderError struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: %s %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// MessageOf returns the provider's message carried by err, if any.
func MessageOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
