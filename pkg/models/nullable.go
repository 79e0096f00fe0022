package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

var jsonNull = []byte("null")

// Text is a nullable string. Model output is loosely typed, so numbers are
// accepted and kept in their literal form.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a valid Text, or an invalid one for blank input.
func NewText(s string) Text {
	s = strings.TrimSpace(s)
	return Text{Value: s, Valid: s != ""}
}

// Or returns t when it is valid, otherwise fallback.
func (t Text) Or(fallback Text) Text {
	if t.Valid {
		return t
	}
	return fallback
}

// String returns the value or "" when null.
func (t Text) String() string {
	if !t.Valid {
		return ""
	}
	return t.Value
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return jsonNull, nil
	}
	return json.Marshal(t.Value)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = NewText(s)
	case '{', '[':
		// Nested structures are not meaningful for scalar fields.
		return nil
	default:
		// numbers and booleans keep their literal form
		*t = NewText(string(data))
	}
	return nil
}

// Number is a nullable decimal.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Or returns n when it is valid, otherwise fallback.
func (n Number) Or(fallback Number) Number {
	if n.Valid {
		return n
	}
	return fallback
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts JSON numbers and numeric strings in either decimal
// convention. Values that cannot be read as a number become null.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, ok := ParseDecimal(s); ok {
			*n = NewNumber(v)
		}
		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*n = NewNumber(v)
	return nil
}

// ParseDecimal reads amounts written as "1.234,56", "1,234.56", "12,5",
// "12.5 kg" or "€ 1.234". When both separators appear the last one is the
// decimal mark. A single comma is a decimal mark; repeated separators of the
// same kind are thousands grouping.
func ParseDecimal(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".,")
	if cleaned == "" || cleaned == "-" {
		return 0, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
