// Package schema provides JSON schema generation for request bodies.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/rapidriter/wasm-renderer/domain/entities"
)

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v interface{}) ([]byte, error) {
	return marshalSchema(reflectSchema(v))
}

// RenderRequestSchema returns the schema of the POST /render body.
func RenderRequestSchema() ([]byte, error) {
	s := reflectSchema(&entities.RenderRequest{})

	// The reflector only derives contentEncoding from []byte fields.
	wasm, ok := s.Properties.Get("wasm")
	if !ok {
		return nil, fmt.Errorf("render request schema has no wasm property")
	}
	wasm.ContentEncoding = "base64"

	return marshalSchema(s)
}

func reflectSchema(v interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
		Anonymous:      true,
	}
	return reflector.Reflect(v)
}

func marshalSchema(s *jsonschema.Schema) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}
