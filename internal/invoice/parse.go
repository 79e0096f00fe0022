package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"invoiceapi/pkg/models"
)

// parseStructuredJSON parses JSON from model output, recovering from
// markdown code fences and prose around a single JSON value.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || !json.Valid([]byte(candidate)) {
			continue
		}
		return json.RawMessage(candidate), nil
	}

	return nil, ErrMalformedOutput
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Opening fence, possibly with a language tag.
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	objectStart := strings.Index(content, "{")
	arrayStart := strings.Index(content, "[")

	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(content, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

// splitDocuments returns the invoice documents in parsed: the value itself
// when it is an object, or each element when it is an array of objects.
func splitDocuments(parsed json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(parsed)
	if len(trimmed) == 0 {
		return nil, ErrUnexpectedShape
	}

	switch trimmed[0] {
	case '{':
		return []json.RawMessage{trimmed}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		var docs []json.RawMessage
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) > 0 && item[0] == '{' {
				docs = append(docs, item)
			}
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("%w: no invoice objects in array", ErrUnexpectedShape)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrUnexpectedShape)
	}
}

// decodeDocument decodes one invoice object, tolerating quoted numbers and
// numeric identifiers. The returned error is non-nil only when the document
// cannot be mapped onto the record shape at all.
func decodeDocument(doc json.RawMessage) (*models.InvoiceRecord, any, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	var rec models.InvoiceRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, generic, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return &rec, generic, nil
}
