package trustcall

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// clientOptions hold optional Client settings.
type clientOptions struct {
	httpc  *http.Client
	apiKey string
}

// ClientOption configures a Client (e.g. WithHTTPClient, WithAPIKey).
type ClientOption func(*clientOptions)

// WithHTTPClient sets the underlying *http.Client. Use it to configure
// transport-level concerns (proxies, connection pools, TLS).
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(o *clientOptions) {
		if httpc != nil {
			o.httpc = httpc
		}
	}
}

// WithAPIKey sets the bearer token sent with each request. Local inference
// backends typically accept any value; leave empty to send no header.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = key
	}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*orchestratorOptions)

type orchestratorOptions struct {
	maxAttempts    int
	attemptTimeout time.Duration
	logger         *slog.Logger
	onAttempt      func(context.Context, AttemptRecord)
}

// WithMaxAttempts bounds the number of backend calls per top-level invocation.
// Default is 3. Values below 1 are clamped to 1.
func WithMaxAttempts(n int) OrchestratorOption {
	return func(o *orchestratorOptions) {
		if n < 1 {
			n = 1
		}
		o.maxAttempts = n
	}
}

// WithAttemptTimeout bounds each backend call. Default is 120s. Keep
// maxAttempts × attemptTimeout within the caller's overall deadline; the
// orchestrator also honors any deadline already on the context.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// WithLogger sets the structured logger for attempt-level logs.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *orchestratorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnAttempt sets a hook called after every attempt with its record,
// for metrics or tracing. The record is already appended to the history
// the caller receives; the hook must not retain RawResponse past its return.
func WithOnAttempt(fn func(context.Context, AttemptRecord)) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.onAttempt = fn
	}
}
