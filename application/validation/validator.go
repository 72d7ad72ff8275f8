// Package validation checks render request bodies before any guest code is
// compiled.
package validation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rapidriter/wasm-renderer/application/schema"
	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = validator.New()

const renderRequestURL = "render-request.json"

// Struct runs go-playground/validator tags on v.
func Struct(v interface{}) error {
	return validate.Struct(v)
}

// RequestValidator validates render request bodies against the request
// JSON schema and the struct tags of entities.RenderRequest.
type RequestValidator struct {
	schema *jsonschema.Schema
}

// NewRequestValidator compiles the request schema.
func NewRequestValidator() (*RequestValidator, error) {
	raw, err := schema.RenderRequestSchema()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(renderRequestURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := compiler.Compile(renderRequestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request schema: %w", err)
	}
	return &RequestValidator{schema: sch}, nil
}

// Decode parses body and returns the binary guest module it carries.
// Every failure is a *errors.PayloadDecodeError.
func (v *RequestValidator) Decode(body []byte) ([]byte, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &domainerrors.PayloadDecodeError{Err: err}
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, &domainerrors.PayloadDecodeError{Field: schemaField(err), Err: err}
	}

	var req entities.RenderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &domainerrors.PayloadDecodeError{Err: err}
	}
	if err := validate.Struct(&req); err != nil {
		return nil, &domainerrors.PayloadDecodeError{Field: "wasm", Err: err}
	}

	wasm, err := base64.StdEncoding.DecodeString(req.Wasm)
	if err != nil {
		return nil, &domainerrors.PayloadDecodeError{Field: "wasm", Err: err}
	}
	return wasm, nil
}

// schemaField names the deepest failing instance location, if any.
func schemaField(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return strings.TrimPrefix(ve.InstanceLocation, "/")
}
