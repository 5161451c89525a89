package trustcall

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// Extractor provides schema generation and validated parsing for a typed
// output contract T. Callers that expect a structured artifact of a known Go
// shape (rather than a raw declaration schema) use it to turn raw model
// output into a validated T.
type Extractor[T any] struct {
	schemaMap map[string]any
	resolved  *jsonschema.Resolved
}

// NewExtractor creates an Extractor for type T. When strict is true, the
// generated schema has additionalProperties: false for all objects and all
// properties required (OpenAI Structured Outputs).
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	schemaMap, resolved, err := reflectSchema[T](strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{
		schemaMap: schemaMap,
		resolved:  resolved,
	}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (e *Extractor[T]) Schema() map[string]any {
	return maps.Clone(e.schemaMap)
}

// Declaration wraps the extractor's schema in a ToolDeclaration so the
// contract can be offered to tool-calling backends under the given name.
func (e *Extractor[T]) Declaration(name, description string) ToolDeclaration {
	return ToolDeclaration{
		Name:        name,
		Description: description,
		Parameters:  e.Schema(),
		Required:    true,
	}
}

// ParseAndValidate deserializes raw into T, validates against the schema, and
// runs Validatable.Validate() when T implements it. Failures return a
// *ValidationError whose messages are safe to feed back to the model.
func (e *Extractor[T]) ParseAndValidate(raw []byte) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, &ValidationError{Errors: []string{"json parse error: " + err.Error()}}
	}
	if err := e.resolved.Validate(v); err != nil {
		return zero, &ValidationError{Errors: []string{err.Error()}}
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, &ValidationError{Errors: []string{"json parse error: " + err.Error()}}
	}
	if err := runCustomValidation(out); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return zero, ve
		}
		return zero, &ValidationError{Errors: []string{err.Error()}}
	}
	return out, nil
}

// ExtractAndValidate locates a JSON object in free-form model output (see
// ExtractJSON) and parses it into a validated T. Extraction failures return
// *ExtractionError; validation failures return *ValidationError.
func (e *Extractor[T]) ExtractAndValidate(text string) (T, error) {
	var zero T
	raw, err := ExtractJSON(text)
	if err != nil {
		return zero, err
	}
	return e.ParseAndValidate(raw)
}

// runCustomValidation runs Validatable.Validate() on out; if out does not
// implement Validatable, it tries &out for value types (pointer receiver).
// Never calls Validate twice for the same receiver.
func runCustomValidation[T any](out T) error {
	if v, ok := any(out).(Validatable); ok {
		return v.Validate()
	}
	typ := reflect.TypeOf(out)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	if v, ok := any(&out).(Validatable); ok {
		return v.Validate()
	}
	return nil
}
