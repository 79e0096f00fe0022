package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"invoiceapi/internal/logger"
)

// Sheet names in the generated workbook.
const (
	InvoiceSheet  = "Invoices"
	ShipmentSheet = "Shipments"
)

// WriteXLSX builds a workbook with an invoice summary sheet and a shipment
// sheet and returns it as bytes.
func WriteXLSX(entries []Entry, processedAt time.Time) ([]byte, error) {
	const op = "export.WriteXLSX"

	log := logger.WithComponent("export")

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet is renamed rather than left empty.
	if err := f.SetSheetName(f.GetSheetName(0), InvoiceSheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(ShipmentSheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	invoiceRows := make([][]any, 0, len(entries))
	var shipmentRows [][]any
	for _, e := range entries {
		invoiceRows = append(invoiceRows, InvoiceRow(e, processedAt))
		shipmentRows = append(shipmentRows, ShipmentRows(e, processedAt)...)
	}

	if err := writeSheet(f, InvoiceSheet, InvoiceHeaders, invoiceRows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeSheet(f, ShipmentSheet, ShipmentHeaders, shipmentRows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_ = f.SetColWidth(InvoiceSheet, "A", "A", 32)
	_ = f.SetColWidth(InvoiceSheet, "B", "F", 16)
	_ = f.SetColWidth(InvoiceSheet, "I", "I", 48)
	_ = f.SetColWidth(ShipmentSheet, "A", "A", 32)
	_ = f.SetColWidth(ShipmentSheet, "F", "F", 18)
	_ = f.SetColWidth(ShipmentSheet, "H", "I", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: xlsx write: %w", op, err)
	}

	log.Info().
		Int("invoices", len(invoiceRows)).
		Int("shipments", len(shipmentRows)).
		Msg("Workbook written")

	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
