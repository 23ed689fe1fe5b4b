package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// checkoutRecordSchema describes the checkout record served by the checkout API.
const checkoutRecordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "merchantAddress", "amount", "assetId", "status", "createdAt", "expiresAt"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "method": {"type": "string", "enum": ["contract", "direct"]},
    "programId": {"type": "integer", "minimum": 1},
    "programAddress": {"type": "string"},
    "merchantAddress": {"type": "string", "minLength": 58, "maxLength": 58},
    "merchantName": {"type": "string"},
    "amount": {"type": "integer", "minimum": 1},
    "assetId": {"type": "integer", "minimum": 0},
    "note": {"type": "string"},
    "status": {"type": "string", "enum": ["pending", "paid", "notified", "expired", "failed"]},
    "createdAt": {"type": "string", "format": "date-time"},
    "expiresAt": {"type": "string", "format": "date-time"}
  }
}`

var recordSchema = mustCompile(checkoutRecordSchema)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid checkout record schema: %v", err))
	}
	return s
}

// ValidateRecord checks a raw checkout record against the record schema.
func ValidateRecord(body []byte) error {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("failed to validate checkout record: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fmt.Errorf("checkout record does not match schema: %s", strings.Join(problems, "; "))
}
