package trustcall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Caller performs one chat-completion call against a backend. The body is an
// already-translated wire payload; the return value is the raw response body.
// Implementations must honor ctx cancellation and deadlines.
type Caller interface {
	Complete(ctx context.Context, body []byte) ([]byte, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, body []byte) ([]byte, error)

// Complete calls f.
func (f CallerFunc) Complete(ctx context.Context, body []byte) ([]byte, error) {
	return f(ctx, body)
}

// Client is an OpenAI-compatible chat-completion backend. One HTTP POST per
// Complete call; capability is resolved once at construction and read-only
// afterwards, so a Client is safe for concurrent use.
type Client struct {
	endpoint   string
	capability BackendCapability
	apiKey     string
	httpc      *http.Client
}

// NewClient builds a Client for the given endpoint (base URL up to and
// including the API version, e.g. "http://localhost:8000/v1"). The endpoint's
// capability comes from the table; a nil table means tool-calling-only.
func NewClient(endpoint string, table *CapabilityTable, opts ...ClientOption) *Client {
	o := clientOptions{httpc: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		endpoint:   endpoint,
		capability: table.Resolve(endpoint),
		apiKey:     o.apiKey,
		httpc:      o.httpc,
	}
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Capability returns the endpoint's configured structured-output capability.
func (c *Client) Capability() BackendCapability { return c.capability }

// Complete posts one chat-completion request and returns the raw response
// body. All failures, including non-2xx statuses and context deadlines, are
// reported as *TransportError so the Orchestrator can tell transport failures
// apart from validation failures.
func (c *Client) Complete(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &TransportError{
			Endpoint: c.endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s", truncateBody(data)),
		}
	}
	return data, nil
}

// truncateBody keeps error payloads readable in logs and error chains.
func truncateBody(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
