// Package schema wraps santhosh-tekuri/jsonschema/v6 to give task and
// event definitions a cheap, compile-once validator for their payload
// shape, per spec.md §1 ("typed schema validation of payloads... delegated
// to a JSON-schema validator").
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates json.RawMessage payloads against a single compiled
// JSON schema document.
type Validator struct {
	compiled *jsonschema.Schema
}

// Compile compiles a JSON schema given as a Go value (typically a
// map[string]any literal written at registration time). A nil schema
// compiles to a Validator that accepts anything.
func Compile(name string, def any) (*Validator, error) {
	if def == nil {
		return &Validator{}, nil
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal definition: %w", name, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema %s: decode definition: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	resourceURL := "mem://" + name + ".json"
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("schema %s: add resource: %w", name, err)
	}

	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", name, err)
	}

	return &Validator{compiled: compiled}, nil
}

// Validate checks payload against the compiled schema. A nil/empty
// Validator (no schema supplied) always succeeds.
func (v *Validator) Validate(payload json.RawMessage) error {
	if v == nil || v.compiled == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if err := v.compiled.Validate(value); err != nil {
		return err
	}
	return nil
}
