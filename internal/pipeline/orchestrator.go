// Package pipeline sequences document retrieval, text extraction and
// structured extraction for one request.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoiceapi/internal/invoice"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/storage"
	"invoiceapi/internal/textextract"
)

// Response messages for non-success statuses.
const (
	MsgMissingCredentials = "LLM credentials are not configured on the server"
	MsgNoBody             = "no request body provided"
	MsgInvalidBody        = "invalid request body"
	MsgNoKey              = "no document key provided"
	MsgDownloadFailed     = "could not download document"
	MsgNoText             = "could not extract text from PDF"
	MsgInternal           = "internal server error"
)

// Request identifies the document to process. The legacy "s3Key" field is
// accepted as an alias.
type Request struct {
	DocumentKey string `json:"documentKey"`
	S3Key       string `json:"s3Key"`

	// DecodeErr is set by the transport when a body was sent but could not
	// be decoded into a Request.
	DecodeErr error `json:"-"`
}

// Key returns the document key, preferring documentKey.
func (r *Request) Key() string {
	if r == nil {
		return ""
	}
	if k := strings.TrimSpace(r.DocumentKey); k != "" {
		return k
	}
	return strings.TrimSpace(r.S3Key)
}

// Response is the outcome of one request.
type Response struct {
	Status  Status
	Text    string
	Invoice *invoice.Outcome
	Error   string
}

type successBody struct {
	Text      string           `json:"text"`
	Invoice   *invoice.Outcome `json:"invoice"`
	Discarded []string         `json:"discardedInvoices,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Body returns the JSON envelope for the response.
func (r Response) Body() any {
	if r.Status == StatusOK {
		body := successBody{Text: r.Text, Invoice: r.Invoice}
		if r.Invoice != nil {
			body.Discarded = r.Invoice.Discarded
		}
		return body
	}
	return errorBody{Error: r.Error}
}

// Orchestrator wires the store, the text engine and the extraction client.
type Orchestrator struct {
	store          storage.Store
	engine         textextract.Extractor
	client         invoice.Extractor
	hasCredentials func() bool
}

// New creates an orchestrator. hasCredentials is consulted on every request
// so a missing LLM credential surfaces as a configuration error.
func New(store storage.Store, engine textextract.Extractor, client invoice.Extractor, hasCredentials func() bool) *Orchestrator {
	if hasCredentials == nil {
		hasCredentials = func() bool { return true }
	}
	return &Orchestrator{
		store:          store,
		engine:         engine,
		client:         client,
		hasCredentials: hasCredentials,
	}
}

// Process runs the pipeline for one request. It never panics; unexpected
// failures become StatusInternal.
func (o *Orchestrator) Process(ctx context.Context, req *Request) (resp Response) {
	log := logger.FromContext(ctx, "pipeline")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Unhandled failure while processing request")
			resp = errorResponse(StatusInternal, fmt.Sprintf("%s: %v", MsgInternal, r))
		}
		log.Info().
			Str("status", resp.Status.String()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	}()

	if !o.hasCredentials() {
		log.Error().Msg("LLM credentials not configured")
		return errorResponse(StatusConfigError, MsgMissingCredentials)
	}
	if req == nil {
		return errorResponse(StatusBadRequest, MsgNoBody)
	}
	if req.DecodeErr != nil {
		log.Warn().Err(req.DecodeErr).Msg("Request body could not be decoded")
		return errorResponse(StatusBadRequest, MsgInvalidBody)
	}

	key := req.Key()
	if key == "" {
		return errorResponse(StatusBadRequest, MsgNoKey)
	}

	log.Info().Str("key", key).Msg("Downloading document")
	raw, err := o.store.Fetch(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Document download failed")
		return errorResponse(StatusNotFound, fmt.Sprintf("%s: %v", MsgDownloadFailed, err))
	}

	return o.extract(ctx, key, raw)
}

// ProcessDocument runs text and structured extraction on bytes already in
// hand. name is only used for logging.
func (o *Orchestrator) ProcessDocument(ctx context.Context, name string, raw []byte) (resp Response) {
	log := logger.FromContext(ctx, "pipeline")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("document", name).Msg("Unhandled failure while processing document")
			resp = errorResponse(StatusInternal, fmt.Sprintf("%s: %v", MsgInternal, r))
		}
	}()

	if !o.hasCredentials() {
		return errorResponse(StatusConfigError, MsgMissingCredentials)
	}
	return o.extract(ctx, name, raw)
}

func (o *Orchestrator) extract(ctx context.Context, name string, raw []byte) Response {
	log := logger.FromContext(ctx, "pipeline")

	result, ok := o.engine.Extract(ctx, raw)
	if !ok {
		log.Warn().Str("document", name).Int("bytes", len(raw)).Msg("No text could be extracted")
		return errorResponse(StatusUnprocessable, MsgNoText)
	}

	log.Info().
		Str("document", name).
		Str("strategy", result.Strategy).
		Int("chars", len(result.Text)).
		Msg("Text extracted, requesting structured data")

	outcome := o.client.Extract(ctx, result.Text)
	if len(outcome.Discarded) > 0 {
		log.Warn().
			Str("document", name).
			Strs("discarded", outcome.Discarded).
			Msg("Document holds more than one invoice, only the first is returned")
	}
	if outcome.Failure != nil {
		log.Warn().
			Str("document", name).
			Str("failure", string(outcome.Failure.Kind)).
			Msg("Structured extraction failed, returning failure outcome")
	}

	return Response{Status: StatusOK, Text: result.Text, Invoice: &outcome}
}

func errorResponse(status Status, message string) Response {
	return Response{Status: status, Error: message}
}
