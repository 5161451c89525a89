// Package testutil provides test helpers for trustcall (e.g. MockBackend and
// canned chat-completion response builders).
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DealExMachina/trustcall"
)

// Step is one scripted backend reply: either a raw response body or an error,
// optionally after a delay (to exercise timeouts and cancellation).
type Step struct {
	Response []byte
	Err      error
	Delay    time.Duration
}

// MockBackend is a scripted Caller implementation for tests. Each Complete
// call consumes the next Step in order and records the request body it
// received. Safe for concurrent use.
type MockBackend struct {
	mu       sync.Mutex
	steps    []Step
	requests [][]byte
}

// NewMockBackend returns a backend that replays the given steps in order.
func NewMockBackend(steps ...Step) *MockBackend {
	return &MockBackend{steps: steps}
}

// Complete pops the next scripted step. It honors ctx during a step's delay
// and fails when the script is exhausted, so a test that issues more backend
// calls than it scripted fails loudly.
func (b *MockBackend) Complete(ctx context.Context, body []byte) ([]byte, error) {
	b.mu.Lock()
	b.requests = append(b.requests, append([]byte(nil), body...))
	if len(b.steps) == 0 {
		b.mu.Unlock()
		return nil, fmt.Errorf("mock backend: script exhausted after %d call(s)", len(b.requests))
	}
	step := b.steps[0]
	b.steps = b.steps[1:]
	b.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Calls returns the number of Complete calls received so far.
func (b *MockBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Request returns a copy of the i-th recorded request body.
func (b *MockBackend) Request(i int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.requests[i]...)
}

// Ensure MockBackend implements Caller.
var _ trustcall.Caller = (*MockBackend)(nil)
