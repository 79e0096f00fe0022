package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"invoiceapi/internal/export"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/pipeline"
	"invoiceapi/internal/sheets"
	"invoiceapi/internal/textextract"
)

const textPreviewChars = 500

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file...]",
	Short: "Extract structured invoice data from local PDF files",
	Long: `Run text extraction and LLM structured extraction on one or more local
PDF invoices. Files are processed one after another and the results are
printed as a JSON array.

Required environment variables (depending on LLM_PROVIDER):
  OPENAI_API_KEY   - OpenAI API key (LLM_PROVIDER=openai, default)
  VERTEX_PROJECT   - Google Cloud project (LLM_PROVIDER=vertex)

Optional outputs:
  --xlsx       write an Excel workbook with Invoices and Shipments sheets
  --sheet-url  append one row per shipment to a Google Sheet`,
	Example: `  # Extract one invoice to stdout
  invoiceapi extract factura.pdf

  # Extract several invoices and save JSON and Excel output
  invoiceapi extract facturas/*.pdf -o result.json --xlsx result.xlsx

  # Append the shipments to a Google Sheet
  invoiceapi extract factura.pdf --sheet-url "https://docs.google.com/spreadsheets/d/ID/edit"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

// ExtractResult is the JSON output for one file.
type ExtractResult struct {
	File       string           `json:"file"`
	Pages      int              `json:"pages,omitempty"`
	Status     int              `json:"status"`
	Text       string           `json:"text,omitempty"`
	Invoice    *invoice.Outcome `json:"invoice,omitempty"`
	Discarded  []string         `json:"discarded_invoices,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

func (r ExtractResult) entry() export.Entry {
	e := export.Entry{Source: r.File, Error: r.Error}
	if r.Invoice != nil {
		if r.Invoice.Succeeded() {
			e.Record = r.Invoice.Record
		} else {
			e.Error = r.Invoice.Failure.Message
		}
	}
	return e
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().String("xlsx", "", "Write an Excel workbook to this path")
	extractCmd.Flags().String("sheet-url", "", "Google Sheet URL to append shipment rows to (default: GOOGLE_SHEET_URL)")
	extractCmd.Flags().String("sheet-name", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
	extractCmd.Flags().Bool("text", false, "Include the full extracted text in the output")
	extractCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	sheetName, _ := cmd.Flags().GetString("sheet-name")
	includeText, _ := cmd.Flags().GetBool("text")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if sheetURL == "" {
		sheetURL = appConfig.GoogleSheetURL
	}
	if sheetName == "" {
		sheetName = appConfig.GoogleSheetWorksheet
	}

	log.Info().
		Int("files", len(args)).
		Str("output", outputPath).
		Str("xlsx", xlsxPath).
		Bool("sheet", sheetURL != "").
		Int("timeout", timeoutSecs).
		Msg("Starting invoice extraction")

	ctx, cancel := createExtractContext(timeoutSecs, log)
	defer cancel()

	deps, err := buildDependencies(ctx, appConfig, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	results := make([]ExtractResult, 0, len(args))
	for _, path := range args {
		if err := ctx.Err(); err != nil {
			return handleExtractError(err, log)
		}
		result := extractFile(ctx, deps.orchestrator, path, appConfig.MaxDocumentBytes, log)
		if !includeText {
			result.Text = preview(result.Text)
		}
		results = append(results, result)
	}

	if xlsxPath != "" {
		if err := writeWorkbook(results, xlsxPath, log); err != nil {
			return err
		}
	}

	if sheetURL != "" {
		if err := appendToSheet(ctx, results, sheetURL, sheetName, log); err != nil {
			return err
		}
	}

	if err := outputExtractResults(results, outputPath, log); err != nil {
		return err
	}

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

func extractFile(ctx context.Context, orch *pipeline.Orchestrator, path string, maxBytes int64, log zerolog.Logger) ExtractResult {
	start := time.Now()
	result := ExtractResult{File: filepath.Base(path)}

	fail := func(status pipeline.Status, err error) ExtractResult {
		result.Status = status.HTTPCode()
		result.Error = err.Error()
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	if _, err := validateInvoicePDF(path, maxBytes, log); err != nil {
		return fail(pipeline.StatusBadRequest, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to read PDF file")
		return fail(pipeline.StatusNotFound, fmt.Errorf("failed to read PDF file: %w", err))
	}

	if pages, err := textextract.PageCount(raw); err == nil {
		result.Pages = pages
	} else {
		log.Warn().Err(err).Str("file", path).Msg("Could not count pages")
	}

	resp := orch.ProcessDocument(ctx, result.File, raw)
	result.Status = resp.Status.HTTPCode()
	result.Text = resp.Text
	result.Invoice = resp.Invoice
	if resp.Invoice != nil {
		result.Discarded = resp.Invoice.Discarded
	}
	result.Error = resp.Error
	result.DurationMS = time.Since(start).Milliseconds()

	event := log.Info()
	if resp.Status != pipeline.StatusOK {
		event = log.Warn()
	}
	event.
		Str("file", path).
		Int("pages", result.Pages).
		Str("status", resp.Status.String()).
		Int64("duration_ms", result.DurationMS).
		Msg("File processed")

	if resp.Invoice != nil && resp.Invoice.Succeeded() {
		rec := resp.Invoice.Record
		log.Info().
			Str("invoice_number", rec.InvoiceNumber.String()).
			Str("client", rec.Client.String()).
			Int("shipments", len(rec.Shipments)).
			Msg("Invoice extracted")
	}

	return result
}

// validateInvoicePDF validates the PDF file for invoice processing
func validateInvoicePDF(pdfPath string, maxBytes int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Invoice PDF file not found")
			return nil, fmt.Errorf("invoice PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	if maxBytes > 0 && fileInfo.Size() > maxBytes {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxBytes).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes",
			fileInfo.Size(), maxBytes)
	}

	return fileInfo, nil
}

// createExtractContext creates a context with timeout and signal handling
func createExtractContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling extraction")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice extraction aborted")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("invoice extraction timed out. Try increasing --timeout or processing fewer files")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("invoice extraction was canceled")
	default:
		return fmt.Errorf("invoice extraction failed: %w", err)
	}
}

func writeWorkbook(results []ExtractResult, path string, log zerolog.Logger) error {
	entries := make([]export.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, r.entry())
	}

	data, err := export.WriteXLSX(entries, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Error().Err(err).Str("xlsx", path).Msg("Failed to write workbook")
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	log.Info().Str("xlsx", path).Int("bytes", len(data)).Msg("Workbook written")
	return nil
}

func appendToSheet(ctx context.Context, results []ExtractResult, sheetURL, sheetName string, log zerolog.Logger) error {
	svc, err := sheets.NewSheetsService(ctx, sheetURL, sheets.Credentials{
		File: appConfig.GoogleCredentialsFile,
		JSON: appConfig.GoogleCredentialsJSON,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}

	entries := make([]export.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, r.entry())
	}
	if err := svc.AppendEntries(ctx, entries, sheetName); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}
	return nil
}

// outputExtractResults writes the results as indented JSON to path or stdout
func outputExtractResults(results []ExtractResult, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal results to JSON")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath == "" {
		if _, err := os.Stdout.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Println()
		return nil
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(jsonData)).
		Msg("Results written to file")
	return nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= textPreviewChars {
		return text
	}
	return string(runes[:textPreviewChars]) + "..."
}

func countFailed(results []ExtractResult) int {
	n := 0
	for _, r := range results {
		if r.Status != pipeline.StatusOK.HTTPCode() {
			n++
		}
	}
	return n
}
