package trustcall

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Middleware wraps a Caller with cross-cutting behavior (logging, recovery).
type Middleware func(Caller) Caller

// Chain applies middlewares to a Caller in onion order: the first middleware
// is outermost.
func Chain(caller Caller, middlewares ...Middleware) Caller {
	for i := len(middlewares) - 1; i >= 0; i-- {
		caller = middlewares[i](caller)
	}
	return caller
}

// WithLogging returns a middleware that logs each backend call with request
// size, duration, and error.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Caller) Caller {
		return CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
			logger.Debug("backend call start", "request_bytes", len(body))
			start := time.Now()
			raw, err := next.Complete(ctx, body)
			dur := time.Since(start)
			if err != nil {
				logger.Error("backend call failed", "duration", dur, "error", err)
				return nil, err
			}
			logger.Debug("backend call end", "duration", dur, "response_bytes", len(raw))
			return raw, nil
		})
	}
}

// WithRecovery returns a middleware that converts a panic in the wrapped
// Caller into a TransportError, so one misbehaving transport cannot crash a
// whole call.
func WithRecovery() Middleware {
	return func(next Caller) Caller {
		return CallerFunc(func(ctx context.Context, body []byte) (raw []byte, err error) {
			defer func() {
				if p := recover(); p != nil {
					raw = nil
					err = &TransportError{Err: &panicError{p: p}}
				}
			}()
			return next.Complete(ctx, body)
		})
	}
}

// panicError wraps a recovered panic value for TransportError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
