package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AnTengye/cvintake/backend/extract"
)

// extractedDataSchema describes the extractedData form field sent by clients
// that ran extraction in the browser. Unknown keys are tolerated.
const extractedDataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "education":      {"type": "array", "items": {"type": "string"}},
    "qualifications": {"type": "array", "items": {"type": "string"}},
    "projects":       {"type": "array", "items": {"type": "string"}},
    "rawText":        {"type": "string"},
    "personalInfo": {
      "type": "object",
      "properties": {
        "name":       {"type": "string"},
        "email":      {"type": "string"},
        "phone":      {"type": "string"},
        "linkedin":   {"type": "string"},
        "website":    {"type": "string"},
        "otherLinks": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func extractedSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extracted.json", strings.NewReader(extractedDataSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("extracted.json")
	})
	return compiledSchema, schemaErr
}

// ParseExtractedData validates raw against the extractedData schema and
// decodes it. Errors wrap ErrInvalidExtractedData.
func ParseExtractedData(raw []byte) (extract.ExtractedCVData, error) {
	var out extract.ExtractedCVData

	schema, err := extractedSchema()
	if err != nil {
		return out, fmt.Errorf("compile schema: %w", err)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidExtractedData, err)
	}
	if err := schema.Validate(v); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidExtractedData, err)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidExtractedData, err)
	}
	return out, nil
}
