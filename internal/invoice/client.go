// Package invoice converts extracted document text into a structured invoice
// record with a single LLM call.
package invoice

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"invoiceapi/internal/llm"
	"invoiceapi/internal/logger"
	"invoiceapi/pkg/models"
)

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature float32 = 0.1

// Extractor is implemented by Client and by test doubles.
type Extractor interface {
	Extract(ctx context.Context, text string) Outcome
}

// ClientConfig configures the extraction client
type ClientConfig struct {
	Temperature float32
	// MergeDuplicates folds invoice objects that share an invoice number into
	// one record when the model returns an array.
	MergeDuplicates bool
}

// DefaultClientConfig returns the configuration used when none is given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Temperature:     DefaultTemperature,
		MergeDuplicates: true,
	}
}

// Client is the structured extraction client.
type Client struct {
	completer  llm.Completer
	config     ClientConfig
	validation *RecordValidation
	log        zerolog.Logger
}

// NewClient creates a client that calls completer once per extraction.
func NewClient(completer llm.Completer, config ClientConfig) *Client {
	return &Client{
		completer:  completer,
		config:     config,
		validation: NewRecordValidation(),
		log:        logger.WithComponent("invoice"),
	}
}

// Extract asks the model for the invoice in text and returns the outcome.
// Every failure is reported inside the Outcome; Extract never returns an
// error and never retries.
func (c *Client) Extract(ctx context.Context, text string) Outcome {
	log := logger.FromContext(ctx, "invoice")

	if strings.TrimSpace(text) == "" {
		log.Error().Msg("No text provided for extraction")
		return failed(FailureNoText, MsgNoText, nil)
	}

	log.Info().Int("chars", len(text)).Msg("Requesting structured extraction")

	content, err := c.completer.Complete(ctx, buildRequest(text, c.config.Temperature))
	if err != nil {
		return c.providerFailure(log, err)
	}

	return c.interpret(log, content)
}

func (c *Client) providerFailure(log zerolog.Logger, err error) Outcome {
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		log.Error().Err(err).Msg("Provider rate limit or quota exceeded")
		return failed(FailureRateLimited, MsgRateLimited, err)
	case llm.KindProvider:
		if msg := llm.MessageOf(err); msg != "" {
			log.Error().Err(err).Msg("Provider rejected the extraction request")
			return failed(FailureProvider, msg, err)
		}
	}

	log.Error().Err(err).Msg("Error processing invoice with provider")
	return failed(FailureUnknown, MsgProcessingFailed, err)
}

// interpret turns the raw completion into an outcome. The raw content is
// preserved unchanged in model-output failures.
func (c *Client) interpret(log zerolog.Logger, content string) Outcome {
	parsed, err := parseStructuredJSON(content)
	if err != nil {
		log.Error().Err(err).Int("chars", len(content)).Msg("Failed to parse model response as JSON")
		return malformed(content, err)
	}

	docs, err := splitDocuments(parsed)
	if err != nil {
		log.Error().Err(err).Msg("Model response is not an invoice object")
		return malformed(content, err)
	}

	records := make([]*models.InvoiceRecord, 0, len(docs))
	for i, doc := range docs {
		rec, generic, err := decodeDocument(doc)
		if err != nil {
			log.Error().Err(err).Int("document", i).Msg("Failed to decode invoice document")
			return malformed(content, err)
		}
		if err := validateDocument(generic); err != nil {
			log.Warn().Err(err).Int("document", i).Msg("Invoice document deviates from schema")
		}
		records = append(records, rec)
	}

	rec, discarded := c.combine(log, records)
	normalizeRecord(rec)
	c.validation.Validate(rec)

	log.Info().
		Str("invoice_number", rec.InvoiceNumber.String()).
		Int("shipments", len(rec.Shipments)).
		Msg("Invoice data extracted")

	out := success(rec)
	out.Discarded = discarded
	return out
}

// combine reduces the decoded documents to one record. With merging enabled,
// documents sharing an invoice number are folded together, and documents
// without a number continue the preceding invoice. The first invoice is
// returned when distinct invoices remain, together with the numbers of the
// invoices left out.
func (c *Client) combine(log zerolog.Logger, records []*models.InvoiceRecord) (*models.InvoiceRecord, []string) {
	if len(records) == 1 {
		return records[0], nil
	}

	if !c.config.MergeDuplicates {
		discarded := invoiceNumbers(records[1:])
		log.Warn().
			Int("invoices", len(records)).
			Strs("discarded", discarded).
			Msg("Model returned several invoices, keeping the first")
		return records[0], discarded
	}

	var groups []*models.InvoiceRecord
	index := make(map[string]*models.InvoiceRecord)
	for _, rec := range records {
		key := invoiceKey(rec.InvoiceNumber)
		switch {
		case key == "" && len(groups) > 0:
			groups[len(groups)-1].Merge(rec)
		case key != "" && index[key] != nil:
			index[key].Merge(rec)
		default:
			groups = append(groups, rec)
			if key != "" {
				index[key] = rec
			}
		}
	}

	var discarded []string
	if len(groups) > 1 {
		discarded = invoiceNumbers(groups[1:])
		log.Warn().
			Str("kept", groups[0].InvoiceNumber.String()).
			Strs("discarded", discarded).
			Msg("Document contains several distinct invoices, keeping the first")
	}

	return groups[0], discarded
}

func invoiceNumbers(records []*models.InvoiceRecord) []string {
	numbers := make([]string, 0, len(records))
	for _, rec := range records {
		numbers = append(numbers, rec.InvoiceNumber.String())
	}
	return numbers
}

func invoiceKey(number models.Text) string {
	if !number.Valid {
		return ""
	}
	return strings.ToUpper(strings.Join(strings.Fields(number.Value), ""))
}
