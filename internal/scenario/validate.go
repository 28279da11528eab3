package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// compiledSchema compiles schemaJSON once and caches the result. Unlike
// the per-call tool-argument schemas it's grounded on, a scenario's
// schema is fixed at build time, so there's no resource-collision risk
// in reusing one compiled *jsonschema.Schema across calls.
func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schemaJSON)))
		if err != nil {
			compileErr = fmt.Errorf("scenario: unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "mem://scenario/schema"
		if err := c.AddResource(url, doc); err != nil {
			compileErr = fmt.Errorf("scenario: add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	return compiled, compileErr
}

// validateDocument validates raw (a decoded YAML/JSON document, i.e.
// map[string]any or similar) against the scenario JSON Schema.
func validateDocument(raw any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("scenario: marshal document: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("scenario: unmarshal document: %w", err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("scenario: schema validation failed: %w", err)
	}
	return nil
}
