package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// DecodeRecord validates serialized tool-call arguments against the invoice
// schema and decodes them. Used by both provider clients so a schema-
// violating response fails the attempt identically everywhere.
func DecodeRecord(args []byte) (*InvoiceRecord, error) {
	if err := ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), args); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	var rec InvoiceRecord
	if err := json.Unmarshal(args, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal invoice record: %w", err)
	}
	return &rec, nil
}
