package models

import (
	"bytes"
	"encoding/json"
)

// InvoiceRecord is the structured result of an extraction. JSON keys follow the
// wire format consumed by the back-office integrations.
type InvoiceRecord struct {
	// Header fields
	InvoiceNumber Text   `json:"numeroFactura"` // Invoice number as printed
	Date          Text   `json:"fecha"`         // DD/MM/YYYY
	Client        Text   `json:"cliente"`       // Client code
	TotalAmount   Number `json:"importeTotal"`  // Total amount
	Currency      Text   `json:"moneda"`        // ISO currency code

	// Shipment line items in document order
	Shipments ShipmentLines `json:"expediciones"`
}

// ShipmentLine is one shipment ("expedicion") billed on the invoice.
type ShipmentLine struct {
	ShipmentID Text   `json:"expedicion"`
	Date       Text   `json:"fecha"`
	Sender     Text   `json:"remitente"`
	Recipient  Text   `json:"destinatario"`
	Packages   Number `json:"bultos"`
	Weight     Number `json:"peso"`
	Volume     Number `json:"volumen"`
}

// ShipmentLines decodes a JSON array of lines. A lone object becomes a
// one-element list; any other value, or an element that is not an object,
// is dropped rather than failing the whole record.
type ShipmentLines []ShipmentLine

func (s *ShipmentLines) UnmarshalJSON(data []byte) error {
	*s = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '{':
		var line ShipmentLine
		if err := json.Unmarshal(data, &line); err != nil {
			return nil
		}
		*s = ShipmentLines{line}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil
		}
		lines := make(ShipmentLines, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				continue
			}
			var line ShipmentLine
			if err := json.Unmarshal(item, &line); err != nil {
				continue
			}
			lines = append(lines, line)
		}
		*s = lines
	}
	return nil
}

// HasHeader reports whether any header field was resolved.
func (r *InvoiceRecord) HasHeader() bool {
	return r.InvoiceNumber.Valid || r.Date.Valid || r.Client.Valid ||
		r.TotalAmount.Valid || r.Currency.Valid
}

// Merge folds other into r: header fields already set on r win, shipments
// from other are appended after r's.
func (r *InvoiceRecord) Merge(other *InvoiceRecord) {
	if other == nil {
		return
	}
	r.InvoiceNumber = r.InvoiceNumber.Or(other.InvoiceNumber)
	r.Date = r.Date.Or(other.Date)
	r.Client = r.Client.Or(other.Client)
	r.TotalAmount = r.TotalAmount.Or(other.TotalAmount)
	r.Currency = r.Currency.Or(other.Currency)
	r.Shipments = append(r.Shipments, other.Shipments...)
}
