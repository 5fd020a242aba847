package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var schemaJSON string

const schemaURL = "config-v1.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the compiled configuration schema.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// SchemaJSON returns the raw schema document.
func SchemaJSON() string { return schemaJSON }

// ValidateDocument checks a raw configuration document against the schema.
// The format is taken from path's extension as in Load. Unknown keys and
// wrongly typed values are reported here, before defaults hide them.
func ValidateDocument(data []byte, path string) error {
	s, err := Schema()
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := decode(data, path, &raw); err != nil {
		return err
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// Round-trip through JSON so every format yields the same value types.
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("normalize config document: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("normalize config document: %w", err)
	}

	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
