package invoice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"invoiceapi/pkg/models"
)

var (
	dayFirstDate = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2}|\d{4})$`)
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	dayMonth     = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})$`)
)

// normalizeRecord rewrites dates to DD/MM/YYYY, maps currency names to ISO
// codes and drops shipment lines that carry no data at all.
func normalizeRecord(rec *models.InvoiceRecord) {
	invoiceYear := 0
	if date, ok := normalizeDate(rec.Date.String(), 0); ok {
		rec.Date = models.NewText(date)
		invoiceYear = yearOf(date)
	}

	if rec.Currency.Valid {
		rec.Currency = models.NewText(normalizeCurrency(rec.Currency.Value))
	}

	shipments := make([]models.ShipmentLine, 0, len(rec.Shipments))
	for _, line := range rec.Shipments {
		if isEmptyLine(line) {
			continue
		}
		if date, ok := normalizeDate(line.Date.String(), invoiceYear); ok {
			line.Date = models.NewText(date)
		}
		shipments = append(shipments, line)
	}
	rec.Shipments = shipments
}

func isEmptyLine(line models.ShipmentLine) bool {
	return !line.ShipmentID.Valid && !line.Date.Valid && !line.Sender.Valid &&
		!line.Recipient.Valid && !line.Packages.Valid && !line.Weight.Valid && !line.Volume.Valid
}

// normalizeDate converts common day-first and ISO layouts to DD/MM/YYYY.
// Dates without a year use defaultYear when it is set. The boolean is false
// when the input is not recognised; callers keep the original value then.
func normalizeDate(s string, defaultYear int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	var day, month, year int
	switch {
	case dayFirstDate.MatchString(s):
		m := dayFirstDate.FindStringSubmatch(s)
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
	case isoDate.MatchString(s):
		m := isoDate.FindStringSubmatch(s)
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	case dayMonth.MatchString(s) && defaultYear > 0:
		m := dayMonth.FindStringSubmatch(s)
		day, month, year = atoi(m[1]), atoi(m[2]), defaultYear
	default:
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), true
}

func yearOf(ddmmyyyy string) int {
	if len(ddmmyyyy) != 10 {
		return 0
	}
	return atoi(ddmmyyyy[6:])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// normalizeCurrency standardizes currency symbols and names to ISO codes
func normalizeCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))

	switch normalized {
	case "€", "EURO", "EUROS", "EUR":
		return "EUR"
	case "$", "DOLLAR", "DOLLARS", "DÓLAR", "DÓLARES", "USD", "US$":
		return "USD"
	case "£", "POUND", "POUNDS", "LIBRA", "LIBRAS", "GBP":
		return "GBP"
	case "CHF", "FRANKEN", "SWISS FRANC", "FRANCO SUIZO":
		return "CHF"
	default:
		return normalized
	}
}
