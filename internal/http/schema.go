package http

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request schemas are part of the wire contract with the authoring frontend;
// they are compiled once at handler construction.

const runRequestSchema = `{
	"type": "object",
	"required": ["template_type", "model"],
	"properties": {
		"template_type": {"enum": ["text", "chat"]},
		"template_text": {"type": "string"},
		"template_messages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["role", "content"],
				"properties": {
					"role": {"enum": ["system", "user", "assistant"]},
					"content": {"type": "string"}
				}
			}
		},
		"variables": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"model": {"type": "string", "minLength": 1},
		"temperature": {"type": "number", "minimum": 0, "maximum": 2},
		"max_tokens": {"type": "integer", "minimum": 1, "maximum": 4096},
		"reasoning_effort": {"enum": ["minimal", "low", "medium", "high"]}
	}
}`

const multiRunRequestSchema = `{
	"type": "object",
	"required": ["template_type", "models"],
	"properties": {
		"prompt_id": {"type": "string"},
		"version_id": {"type": "string"},
		"template_type": {"enum": ["text", "chat"]},
		"template_text": {"type": "string"},
		"template_messages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["role", "content"],
				"properties": {
					"role": {"enum": ["system", "user", "assistant"]},
					"content": {"type": "string"}
				}
			}
		},
		"variables": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"models": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["model"],
				"properties": {
					"id": {"type": "string"},
					"model": {"type": "string", "minLength": 1},
					"provider": {"type": "string"},
					"temperature": {"type": "number", "minimum": 0, "maximum": 2},
					"max_tokens": {"type": "integer", "minimum": 1, "maximum": 4096},
					"reasoning_effort": {"enum": ["minimal", "low", "medium", "high"]},
					"enabled": {"type": "boolean"}
				}
			}
		}
	}
}`

// compileSchema compiles an embedded schema document.
func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return schema, nil
}

// validateAndDecode validates raw JSON against the schema, then decodes it
// into out. Validation errors carry the offending path for the author.
func validateAndDecode(schema *jsonschema.Schema, raw []byte, out interface{}) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
