package invoice

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// invoiceSchemaJSON describes one invoice document as the model should emit
// it. Scalars are loosely typed because models often quote numbers.
const invoiceSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "numeroFactura": {"type": ["string", "number", "null"]},
    "fecha":         {"type": ["string", "null"]},
    "cliente":       {"type": ["string", "number", "null"]},
    "importeTotal":  {"type": ["number", "string", "null"]},
    "moneda":        {"type": ["string", "null"]},
    "expediciones": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "expedicion":   {"type": ["string", "number", "null"]},
          "fecha":        {"type": ["string", "null"]},
          "remitente":    {"type": ["string", "null"]},
          "destinatario": {"type": ["string", "null"]},
          "bultos":       {"type": ["number", "string", "null"]},
          "peso":         {"type": ["number", "string", "null"]},
          "volumen":      {"type": ["number", "string", "null"]}
        }
      }
    }
  },
  "required": ["numeroFactura", "expediciones"]
}`

var invoiceSchema = mustCompileSchema("invoice.json", invoiceSchemaJSON)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// validateDocument checks one decoded JSON document against the invoice
// schema. Violations are reported, not enforced.
func validateDocument(doc any) error {
	if err := invoiceSchema.Validate(doc); err != nil {
		return fmt.Errorf("invoice document does not match schema: %w", err)
	}
	return nil
}
