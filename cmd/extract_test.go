package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/pipeline"
	"invoiceapi/internal/textextract"
	"invoiceapi/pkg/models"
)

type fixedEngine struct{ ok bool }

func (e fixedEngine) Extract(ctx context.Context, raw []byte) (textextract.Result, bool) {
	return textextract.Result{Text: "FACTURA F1", Strategy: "stub"}, e.ok
}

type fixedClient struct{ outcome invoice.Outcome }

func (c fixedClient) Extract(ctx context.Context, text string) invoice.Outcome {
	return c.outcome
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateInvoicePDF(t *testing.T) {
	log := zerolog.Nop()

	_, err := validateInvoicePDF(filepath.Join(t.TempDir(), "missing.pdf"), 0, log)
	assert.ErrorContains(t, err, "not found")

	_, err = validateInvoicePDF(writeFile(t, "empty.pdf", nil), 0, log)
	assert.ErrorContains(t, err, "empty")

	_, err = validateInvoicePDF(writeFile(t, "big.pdf", make([]byte, 64)), 32, log)
	assert.ErrorContains(t, err, "too large")

	_, err = validateInvoicePDF(t.TempDir(), 0, log)
	assert.ErrorContains(t, err, "not a regular file")

	info, err := validateInvoicePDF(writeFile(t, "ok.pdf", []byte("%PDF-1.4")), 32, log)
	require.NoError(t, err)
	assert.Equal(t, "ok.pdf", info.Name())
}

func TestExtractFile(t *testing.T) {
	record := &models.InvoiceRecord{InvoiceNumber: models.NewText("F1")}
	orch := pipeline.New(nil, fixedEngine{ok: true}, fixedClient{invoice.Outcome{Record: record}}, func() bool { return true })

	result := extractFile(context.Background(), orch, writeFile(t, "factura.pdf", []byte("%PDF-1.4")), 0, zerolog.Nop())

	assert.Equal(t, "factura.pdf", result.File)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "FACTURA F1", result.Text)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, record, result.entry().Record)
	assert.Empty(t, result.Discarded)
}

func TestExtractFileListsDiscardedInvoices(t *testing.T) {
	record := &models.InvoiceRecord{InvoiceNumber: models.NewText("F1")}
	outcome := invoice.Outcome{Record: record, Discarded: []string{"F2", "F3"}}
	orch := pipeline.New(nil, fixedEngine{ok: true}, fixedClient{outcome}, func() bool { return true })

	result := extractFile(context.Background(), orch, writeFile(t, "factura.pdf", []byte("%PDF-1.4")), 0, zerolog.Nop())

	assert.Equal(t, 200, result.Status)
	assert.Equal(t, []string{"F2", "F3"}, result.Discarded)
}

func TestExtractFileFailures(t *testing.T) {
	orch := pipeline.New(nil, fixedEngine{ok: false}, fixedClient{}, func() bool { return true })

	missing := extractFile(context.Background(), orch, filepath.Join(t.TempDir(), "missing.pdf"), 0, zerolog.Nop())
	assert.Equal(t, 400, missing.Status)

	noText := extractFile(context.Background(), orch, writeFile(t, "scan.pdf", []byte("%PDF-1.4")), 0, zerolog.Nop())
	assert.Equal(t, 422, noText.Status)
	assert.Equal(t, pipeline.MsgNoText, noText.Error)
	assert.Equal(t, 2, countFailed([]ExtractResult{missing, noText}))

	entry := noText.entry()
	assert.True(t, entry.Failed())
}

func TestResultEntryCarriesModelFailure(t *testing.T) {
	r := ExtractResult{File: "a.pdf", Status: 200, Invoice: &invoice.Outcome{Failure: &invoice.Failure{
		Kind:    invoice.FailureRateLimited,
		Message: invoice.MsgRateLimited,
	}}}

	entry := r.entry()

	assert.Nil(t, entry.Record)
	assert.Equal(t, invoice.MsgRateLimited, entry.Error)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))

	long := strings.Repeat("á", textPreviewChars+10)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, textPreviewChars+3, len([]rune(got)))
}
