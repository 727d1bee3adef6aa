package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema constrains the shape of a configuration document before it
// is accepted by Update. Backend settings stay opaque here; each provider
// validates its own slice on Initialize.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["activeBackend", "backendSettings"],
  "properties": {
    "version": {"type": "string"},
    "defaultSourceLanguage": {"type": "string", "minLength": 1},
    "defaultTargetLanguage": {"type": "string", "minLength": 1},
    "defaultTranslationStyle": {"enum": ["natural", "literal"]},
    "supportedLanguages": {"type": "array", "items": {"$ref": "#/definitions/language"}},
    "disabledLanguages": {"type": ["array", "null"], "items": {"$ref": "#/definitions/language"}},
    "activeBackend": {"type": "string", "minLength": 1},
    "backendSettings": {
      "type": "object",
      "additionalProperties": {"type": ["object", "null"]}
    }
  },
  "definitions": {
    "language": {
      "type": "object",
      "required": ["code"],
      "properties": {
        "code": {"type": "string", "pattern": "^[A-Za-z]{2,3}([_-][A-Za-z0-9]{2,8})*$"},
        "name": {"type": "string"},
        "enabled": {"type": "boolean"}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// Validate checks a configuration against the document schema and returns
// one error listing every violation.
func Validate(c *Configuration) error {
	if c == nil {
		return fmt.Errorf("configuration is empty")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	return ValidateDocument(data)
}

// ValidateDocument checks a raw JSON document against the schema.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
