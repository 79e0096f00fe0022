package invoice

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"invoiceapi/internal/logger"
	"invoiceapi/pkg/models"
)

// RecordValidation inspects extracted records for values that are present
// but implausible. Findings are warnings: the record is returned unchanged.
type RecordValidation struct {
	log zerolog.Logger
}

// NewRecordValidation creates a new record validation service
func NewRecordValidation() *RecordValidation {
	return &RecordValidation{
		log: logger.WithComponent("invoice-validation"),
	}
}

// Validate returns human-readable warnings for rec.
func (rv *RecordValidation) Validate(rec *models.InvoiceRecord) []string {
	var warnings []string

	if !rec.InvoiceNumber.Valid {
		warnings = append(warnings, "invoice number not found")
	}
	if rec.Date.Valid && yearOf(rec.Date.Value) == 0 {
		warnings = append(warnings, fmt.Sprintf("invoice date %q is not DD/MM/YYYY", rec.Date.Value))
	}
	if rec.TotalAmount.Valid && rec.TotalAmount.Value < 0 {
		warnings = append(warnings, fmt.Sprintf("negative total amount %.2f", rec.TotalAmount.Value))
	}
	if rec.Currency.Valid && len(rec.Currency.Value) != 3 {
		warnings = append(warnings, fmt.Sprintf("currency %q is not an ISO code", rec.Currency.Value))
	}

	seen := make(map[string]int, len(rec.Shipments))
	for i, line := range rec.Shipments {
		if !line.ShipmentID.Valid {
			warnings = append(warnings, fmt.Sprintf("shipment %d has no shipment number", i+1))
		} else if first, dup := seen[line.ShipmentID.Value]; dup {
			warnings = append(warnings, fmt.Sprintf("shipment %s repeated at lines %d and %d", line.ShipmentID.Value, first+1, i+1))
		} else {
			seen[line.ShipmentID.Value] = i
		}

		if line.Packages.Valid && (line.Packages.Value < 0 || line.Packages.Value != math.Trunc(line.Packages.Value)) {
			warnings = append(warnings, fmt.Sprintf("shipment %d has a non-integer package count %v", i+1, line.Packages.Value))
		}
		if line.Weight.Valid && line.Weight.Value < 0 {
			warnings = append(warnings, fmt.Sprintf("shipment %d has a negative weight", i+1))
		}
		if line.Volume.Valid && line.Volume.Value < 0 {
			warnings = append(warnings, fmt.Sprintf("shipment %d has a negative volume", i+1))
		}
	}

	if len(warnings) > 0 {
		rv.log.Warn().
			Str("invoice_number", rec.InvoiceNumber.String()).
			Int("shipments", len(rec.Shipments)).
			Strs("warnings", warnings).
			Msg("Extracted invoice has suspicious values")
	}

	return warnings
}
