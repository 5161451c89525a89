package trustcall

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Validatable is implemented by output structs that need custom business
// validation. Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// ValidationError carries the collected messages of a failed validation pass.
// Messages are human-readable and safe to feed back to the model.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Outcome converts the error into a ValidationOutcome.
func (e *ValidationError) Outcome() ValidationOutcome {
	return ValidationOutcome{Valid: false, Errors: slices.Clone(e.Errors)}
}

// SchemaValidator validates JSON artifacts against a declared schema,
// collecting one error per failing field in a single pass so every field-level
// problem surfaces at once. Compile it once per declaration; Validate is safe
// for concurrent use.
type SchemaValidator struct {
	schema    map[string]any
	root      *jsonschema.Resolved
	required  []string
	propNames []string
	props     map[string]*jsonschema.Resolved
}

// NewSchemaValidator compiles a raw JSON Schema map into a validator.
// The map is deep-copied; the caller's copy is never mutated.
func NewSchemaValidator(schema map[string]any) (*SchemaValidator, error) {
	schemaCopy, err := deepCopySchema(schema)
	if err != nil {
		return nil, err
	}
	stripSchemaIDs(schemaCopy)
	root, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, err
	}
	v := &SchemaValidator{
		schema: schemaCopy,
		root:   root,
		props:  make(map[string]*jsonschema.Resolved),
	}
	if req, ok := schemaCopy["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				v.required = append(v.required, name)
			}
		}
	}
	if props, ok := schemaCopy["properties"].(map[string]any); ok {
		for name, raw := range props {
			v.propNames = append(v.propNames, name)
			prop, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			// Properties referencing $defs cannot compile standalone; the
			// root pass still covers them.
			if compiled, err := compileRawSchema(prop); err == nil {
				v.props[name] = compiled
			}
		}
	}
	slices.Sort(v.propNames)
	slices.Sort(v.required)
	return v, nil
}

// ValidatorForDeclaration compiles a validator for a tool declaration's
// parameter schema. Fails with *SchemaError when the declaration is
// unrepresentable.
func ValidatorForDeclaration(decl ToolDeclaration) (*SchemaValidator, error) {
	schemaMap, _, err := compileDeclaration(decl)
	if err != nil {
		return nil, err
	}
	v, err := NewSchemaValidator(schemaMap)
	if err != nil {
		return nil, &SchemaError{Tool: decl.Name, Err: err}
	}
	return v, nil
}

// Schema returns a shallow copy of the compiled schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (v *SchemaValidator) Schema() map[string]any {
	return maps.Clone(v.schema)
}

// Validate checks raw against the schema. Missing required fields, type
// mismatches, and out-of-range values each contribute one error; validation
// stops at the first structural failure per field but collects across all
// fields. A valid artifact is echoed in Recovered so callers always read the
// validated value from the outcome.
func (v *SchemaValidator) Validate(raw json.RawMessage) ValidationOutcome {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return Invalid("json parse error: " + err.Error())
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return Invalid(fmt.Sprintf("expected a JSON object, got %T", value))
	}

	var errs []string
	for _, name := range v.required {
		if _, present := obj[name]; !present {
			errs = append(errs, fmt.Sprintf("missing required field %q", name))
		}
	}
	for _, name := range v.propNames {
		fieldValue, present := obj[name]
		if !present {
			continue
		}
		compiled, ok := v.props[name]
		if !ok {
			continue
		}
		if err := compiled.Validate(fieldValue); err != nil {
			errs = append(errs, fmt.Sprintf("field %q: %v", name, err))
		}
	}
	// Field passes cannot see object-level constraints (additionalProperties,
	// $ref-only properties); one root pass covers those when fields look fine.
	if len(errs) == 0 {
		if err := v.root.Validate(value); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return Invalid(errs...)
	}
	return ValidationOutcome{Valid: true, Recovered: raw}
}

// SemanticValidator is a pluggable business-rule check applied after
// structural validation succeeds. Implementations must be side-effect-free
// functions of the artifact.
type SemanticValidator func(artifact json.RawMessage) ValidationOutcome

// ComposeValidators runs every validator in sequence and merges the outcomes.
// A single failure marks the result invalid, but all validators still run so
// every error surfaces together.
func ComposeValidators(validators ...SemanticValidator) SemanticValidator {
	return func(artifact json.RawMessage) ValidationOutcome {
		outcomes := make([]ValidationOutcome, 0, len(validators))
		current := artifact
		for _, validate := range validators {
			o := validate(current)
			if o.Recovered != nil {
				// Later validators see corrections applied by earlier ones.
				current = o.Recovered
			}
			outcomes = append(outcomes, o)
		}
		return Merge(outcomes...)
	}
}

type aggregateOptions struct {
	tolerance   float64
	autoCorrect bool
}

// AggregateOption configures SumConsistency.
type AggregateOption func(*aggregateOptions)

// WithTolerance sets the absolute tolerance for the aggregate comparison.
// Exact equality is never required: upstream floating-point summation order
// may vary. Default is 0.01.
func WithTolerance(tolerance float64) AggregateOption {
	return func(o *aggregateOptions) {
		o.tolerance = tolerance
	}
}

// WithAutoCorrect makes the validator replace a mismatched aggregate with the
// recomputed component sum (reported through ValidationOutcome.Recovered)
// instead of flagging the artifact invalid. Off by default: silently rewriting
// model output hides its failure modes from callers, so correction is an
// explicit opt-in.
func WithAutoCorrect(enable bool) AggregateOption {
	return func(o *aggregateOptions) {
		o.autoCorrect = enable
	}
}

// SumConsistency returns a validator checking that the aggregate at totalPath
// equals the sum of itemValue over the array at itemsPath, within an absolute
// tolerance. On mismatch the error names the magnitude of the discrepancy.
// Paths use gjson syntax (e.g. "total_value", "positions").
func SumConsistency(totalPath, itemsPath string, itemValue func(item gjson.Result) float64, opts ...AggregateOption) SemanticValidator {
	o := aggregateOptions{tolerance: 0.01}
	for _, opt := range opts {
		opt(&o)
	}
	return func(artifact json.RawMessage) ValidationOutcome {
		total := gjson.GetBytes(artifact, totalPath)
		if !total.Exists() {
			return Invalid(fmt.Sprintf("missing aggregate field %q", totalPath))
		}
		items := gjson.GetBytes(artifact, itemsPath)
		if !items.IsArray() {
			return Invalid(fmt.Sprintf("field %q is not an array", itemsPath))
		}
		var sum float64
		for _, item := range items.Array() {
			sum += itemValue(item)
		}
		diff := math.Abs(sum - total.Float())
		if diff <= o.tolerance {
			return OK()
		}
		if o.autoCorrect {
			corrected, err := sjson.SetBytes(artifact, totalPath, sum)
			if err != nil {
				return Invalid(fmt.Sprintf("aggregate %q auto-correction failed: %v", totalPath, err))
			}
			return ValidationOutcome{Valid: true, Recovered: corrected}
		}
		return Invalid(fmt.Sprintf(
			"aggregate %q is %g but components sum to %g (mismatch %g exceeds tolerance %g)",
			totalPath, total.Float(), sum, diff, o.tolerance,
		))
	}
}

// Product returns an itemValue function for SumConsistency that multiplies the
// numeric fields at the given paths within each item (e.g. quantity × price).
func Product(paths ...string) func(item gjson.Result) float64 {
	return func(item gjson.Result) float64 {
		product := 1.0
		for _, p := range paths {
			product *= item.Get(p).Float()
		}
		return product
	}
}

// RangeCheck returns a validator asserting that the numeric field at path
// lies within [min, max]. A missing field is invalid: a sanity check that
// cannot see its subject has failed.
func RangeCheck(path string, min, max float64) SemanticValidator {
	return func(artifact json.RawMessage) ValidationOutcome {
		field := gjson.GetBytes(artifact, path)
		if !field.Exists() {
			return Invalid(fmt.Sprintf("missing field %q", path))
		}
		value := field.Float()
		if value < min || value > max {
			return Invalid(fmt.Sprintf("field %q value %g outside [%g, %g]", path, value, min, max))
		}
		return OK()
	}
}
