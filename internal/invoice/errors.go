package invoice

import (
	"encoding/json"
	"errors"
	"fmt"

	"invoiceapi/pkg/models"
)

// Failure messages returned to callers inside the outcome envelope.
const (
	MsgNoText           = "no text provided"
	MsgParseFailed      = "failed to parse invoice data"
	MsgRateLimited      = "rate limit exceeded or quota depleted on the LLM provider"
	MsgProcessingFailed = "failed to process invoice"
)

// FailureKind classifies why an extraction produced no record.
type FailureKind string

const (
	// FailureNoText means the client was called without text.
	FailureNoText FailureKind = "no_text"
	// FailureModelOutput means the model answered but the answer was not a
	// usable invoice document. The raw answer is kept.
	FailureModelOutput FailureKind = "model_output"
	// FailureRateLimited means the provider refused the call for rate or
	// quota reasons.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureProvider means the provider reported an error with a message.
	FailureProvider FailureKind = "provider"
	// FailureUnknown covers everything else.
	FailureUnknown FailureKind = "unknown"
)

var (
	// ErrMalformedOutput is returned when the model's answer is not JSON.
	ErrMalformedOutput = errors.New("model output is not valid JSON")

	// ErrUnexpectedShape is returned when the JSON does not describe an invoice.
	ErrUnexpectedShape = errors.New("model output does not match the invoice shape")
)

// Failure describes an extraction that produced no record. It is carried in
// an Outcome rather than returned as an error.
type Failure struct {
	Kind       FailureKind
	Message    string
	RawContent string // set for FailureModelOutput only
	Err        error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("invoice: %s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("invoice: %s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// HasRawContent reports whether the failure carries the model's raw answer.
func (f *Failure) HasRawContent() bool {
	return f.Kind == FailureModelOutput
}

// Outcome is the result of one extraction: a record or a failure.
type Outcome struct {
	Record  *models.InvoiceRecord
	Failure *Failure
	// Discarded lists the invoice numbers of further invoices the model
	// returned alongside Record. They are not part of Record.
	Discarded []string
}

// Succeeded reports whether the outcome carries a record.
func (o Outcome) Succeeded() bool {
	return o.Record != nil && o.Failure == nil
}

type failureBody struct {
	Error      string  `json:"error"`
	RawContent *string `json:"rawContent,omitempty"`
}

// MarshalJSON renders a success as the record itself and a failure as
// {"error": ..., "rawContent": ...}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Failure != nil {
		body := failureBody{Error: o.Failure.Message}
		if o.Failure.HasRawContent() {
			raw := o.Failure.RawContent
			body.RawContent = &raw
		}
		return json.Marshal(body)
	}
	if o.Record == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Record)
}

func success(rec *models.InvoiceRecord) Outcome {
	return Outcome{Record: rec}
}

func failed(kind FailureKind, message string, err error) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message, Err: err}}
}

func malformed(raw string, err error) Outcome {
	return Outcome{Failure: &Failure{
		Kind:       FailureModelOutput,
		Message:    MsgParseFailed,
		RawContent: raw,
		Err:        err,
	}}
}
