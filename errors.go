package trustcall

import (
	"errors"
	"fmt"
)

// Sentinel errors for trustcall. Use errors.Is to check.
var (
	ErrSchema     = errors.New("tool declaration schema invalid")
	ErrExtraction = errors.New("no parsable JSON found")
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("backend transport failed")
	// ErrExhausted marks a call that failed validation on every configured
	// attempt. It is reported inside Result, never returned by Run.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// SchemaError reports a malformed or unrepresentable tool declaration.
// It is fatal for the call: the Orchestrator surfaces it immediately and
// never retries, since no prompt escalation can fix a broken contract.
type SchemaError struct {
	Tool string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tool %q: unrepresentable parameter schema: %v", e.Tool, e.Err)
}

// Unwrap supports errors.Is(err, ErrSchema) and unwrapping the compile error.
func (e *SchemaError) Unwrap() []error { return []error{ErrSchema, e.Err} }

// ExtractionError reports that no JSON candidate in the model output parsed.
// Recoverable: it drives a retry with a more explicit prompt.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "json extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// TransportError reports a network-level failure (connection refused, timeout,
// non-2xx status). The Orchestrator retries a transport failure exactly once;
// a second consecutive one escapes to the caller, since re-prompting the model
// cannot fix a network outage.
type TransportError struct {
	Endpoint string
	Status   int // HTTP status when the backend answered, 0 otherwise
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s returned status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s unreachable: %v", e.Endpoint, e.Err)
}

// Unwrap supports errors.Is(err, ErrTransport) and classification of the
// underlying error (e.g. context.DeadlineExceeded).
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// IsSchemaError returns true if err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsExtractionError returns true if err is or wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// IsTransportError returns true if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
