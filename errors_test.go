package trustcall

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaError(t *testing.T) {
	t.Parallel()
	inner := errors.New("unsupported union")
	err := &SchemaError{Tool: "future_value", Err: inner}
	assert.Contains(t, err.Error(), `tool "future_value"`)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.True(t, errors.Is(err, inner))
}

func TestExtractionError(t *testing.T) {
	t.Parallel()
	err := &ExtractionError{Reason: "no JSON object candidate parsed"}
	assert.Equal(t, "json extraction failed: no JSON object candidate parsed", err.Error())
	assert.True(t, errors.Is(err, ErrExtraction))
}

func TestTransportError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		err    *TransportError
		expect string
	}{
		{
			"network failure",
			&TransportError{Endpoint: "http://x/v1", Err: errors.New("connection refused")},
			"backend http://x/v1 unreachable: connection refused",
		},
		{
			"http status",
			&TransportError{Endpoint: "http://x/v1", Status: 503, Err: errors.New("overloaded")},
			"backend http://x/v1 returned status 503: overloaded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrTransport))
		})
	}
}

func TestTransportError_UnwrapsDeadline(t *testing.T) {
	t.Parallel()
	err := &TransportError{Endpoint: "http://x/v1", Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestErrorsIs_As(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		err         error
		asSchema    bool
		asExtract   bool
		asTransport bool
	}{
		{"SchemaError direct", &SchemaError{Tool: "t", Err: errors.New("x")}, true, false, false},
		{"ExtractionError wrapped", wrapErr{err: &ExtractionError{Reason: "y"}}, false, true, false},
		{"TransportError wrapped", wrapErr{err: &TransportError{Err: errors.New("z")}}, false, false, true},
		{"plain error", errors.New("plain"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.asSchema, IsSchemaError(tt.err), "IsSchemaError")
			assert.Equal(t, tt.asExtract, IsExtractionError(tt.err), "IsExtractionError")
			assert.Equal(t, tt.asTransport, IsTransportError(tt.err), "IsTransportError")
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	err := &ValidationError{Errors: []string{`missing required field "rate"`, `field "years": got string, want integer`}}
	require.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "rate")
	outcome := err.Outcome()
	assert.False(t, outcome.Valid)
	assert.Len(t, outcome.Errors, 2)
}

type wrapErr struct {
	err error
}

func (e wrapErr) Error() string {
	if e.err == nil {
		return ""
	}
	return "wrap: " + e.err.Error()
}
func (e wrapErr) Unwrap() error { return e.err }
