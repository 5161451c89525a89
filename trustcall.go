package trustcall

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

// Chat message roles (OpenAI-compatible wire values).
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Mode controls how a request constrains the model's output.
type Mode string

const (
	// ModeFree places no constraint on the response.
	ModeFree Mode = "free"
	// ModeNone forbids tool invocation (tools may still be declared for context).
	ModeNone Mode = "none"
	// ModeToolRequired demands exactly one tool invocation. With a single
	// declared tool this is the structured-output contract the Request
	// Translator may rewrite into a constrained-generation directive.
	ModeToolRequired Mode = "tool-required"
)

// ToolCall is a single tool invocation produced by the model (or synthesized
// by the Response Translator from constrained-generation output).
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one role-tagged entry in a chat transcript.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string // set on RoleTool messages answering a ToolCall
	ToolCalls  []ToolCall
}

// ToolDeclaration describes a callable tool offered to the model.
// Parameters is a JSON Schema map (same shape LLM providers accept).
// A declaration is immutable once handed to a request.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
	// Required marks the tool as mandatory for the call. The Orchestrator
	// treats declared-and-required tools as the expected set for
	// ValidateRequired when Call.ExpectedTools is empty.
	Required bool
}

// ChatRequest is one outgoing chat-completion request. It is constructed per
// call and never retained.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDeclaration
	Mode        Mode
	Temperature *float64
	MaxTokens   *int
}

// NormalizedResponse is what a caller sees regardless of which backend
// convention produced the reply: either one populated tool invocation or
// free-text content. Callers cannot (and must not) tell the backends apart
// from this value.
type NormalizedResponse struct {
	ToolCall *ToolCall
	Content  string
}

// IsToolCall reports whether the response carries a tool invocation.
func (r NormalizedResponse) IsToolCall() bool { return r.ToolCall != nil }

// ValidationOutcome is the result of one validation stage. Outcomes are
// produced fresh by every stage and merged, never mutated in place.
type ValidationOutcome struct {
	Valid  bool
	Errors []string
	// Recovered optionally carries a corrected artifact (e.g. an aggregate
	// rewritten by an auto-correcting semantic validator).
	Recovered json.RawMessage
}

// OK returns a valid outcome.
func OK() ValidationOutcome { return ValidationOutcome{Valid: true} }

// Invalid returns an outcome carrying the given error messages.
func Invalid(errs ...string) ValidationOutcome {
	return ValidationOutcome{Valid: false, Errors: errs}
}

// Merge combines outcomes: the result is valid only if all inputs are, and
// collects every error in order so all failures surface together. The last
// non-nil Recovered value wins.
func Merge(outcomes ...ValidationOutcome) ValidationOutcome {
	merged := ValidationOutcome{Valid: true}
	for _, o := range outcomes {
		if !o.Valid {
			merged.Valid = false
		}
		merged.Errors = append(merged.Errors, o.Errors...)
		if o.Recovered != nil {
			merged.Recovered = o.Recovered
		}
	}
	return merged
}

// AttemptRecord is one retry iteration as seen by the Orchestrator: which
// prompt variant was sent, what came back, how validation judged it, and how
// long the backend call took. Records exist for observability and are
// discarded with the call.
type AttemptRecord struct {
	Attempt     int
	Prompt      string
	RawResponse []byte
	Outcome     ValidationOutcome
	Elapsed     time.Duration
}
