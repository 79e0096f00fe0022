// Package export turns extracted invoices into tabular rows for spreadsheets.
package export

import (
	"time"

	"invoiceapi/pkg/models"
)

// TimestampLayout is used for the "Processed at" column.
const TimestampLayout = "02/01/2006 15:04:05"

// Status values written to the Status column.
const (
	StatusOK     = "OK"
	StatusFailed = "ERROR"
)

// Entry is the extraction result for one source document.
type Entry struct {
	Source string
	Record *models.InvoiceRecord
	Error  string
}

// Failed reports whether the entry has no usable record.
func (e Entry) Failed() bool {
	return e.Record == nil || e.Error != ""
}

func (e Entry) status() string {
	if e.Failed() {
		return StatusFailed
	}
	return StatusOK
}

// InvoiceHeaders are the columns of the per-invoice sheet.
var InvoiceHeaders = []string{
	"Document", "Invoice number", "Invoice date", "Client", "Total amount",
	"Currency", "Shipments", "Status", "Error", "Processed at",
}

// ShipmentHeaders are the columns of the flattened shipment sheet.
var ShipmentHeaders = []string{
	"Document", "Invoice number", "Invoice date", "Client", "Currency",
	"Shipment", "Shipment date", "Sender", "Recipient", "Packages",
	"Weight", "Volume", "Status", "Processed at",
}

// InvoiceRow returns one row per entry, aligned with InvoiceHeaders.
func InvoiceRow(e Entry, processedAt time.Time) []any {
	ts := processedAt.Format(TimestampLayout)
	if e.Record == nil {
		return []any{e.Source, "", "", "", "", "", 0, e.status(), e.Error, ts}
	}
	r := e.Record
	return []any{
		e.Source,
		r.InvoiceNumber.String(),
		r.Date.String(),
		r.Client.String(),
		numberCell(r.TotalAmount),
		r.Currency.String(),
		len(r.Shipments),
		e.status(),
		e.Error,
		ts,
	}
}

// ShipmentRows flattens an entry into one row per shipment line, aligned
// with ShipmentHeaders. Entries without lines still produce a single row so
// that failures stay visible.
func ShipmentRows(e Entry, processedAt time.Time) [][]any {
	ts := processedAt.Format(TimestampLayout)
	if e.Record == nil {
		return [][]any{{e.Source, "", "", "", "", "", "", "", "", "", "", "", e.status(), ts}}
	}

	r := e.Record
	header := []any{e.Source, r.InvoiceNumber.String(), r.Date.String(), r.Client.String(), r.Currency.String()}
	if len(r.Shipments) == 0 {
		row := append(append([]any{}, header...), "", "", "", "", "", "", "", e.status(), ts)
		return [][]any{row}
	}

	rows := make([][]any, 0, len(r.Shipments))
	for _, line := range r.Shipments {
		row := append([]any{}, header...)
		row = append(row,
			line.ShipmentID.String(),
			line.Date.String(),
			line.Sender.String(),
			line.Recipient.String(),
			numberCell(line.Packages),
			numberCell(line.Weight),
			numberCell(line.Volume),
			e.status(),
			ts,
		)
		rows = append(rows, row)
	}
	return rows
}

// numberCell leaves null numbers blank rather than writing 0.
func numberCell(n models.Number) any {
	if !n.Valid {
		return ""
	}
	return n.Value
}
