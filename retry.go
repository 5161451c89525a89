package trustcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// State names the orchestrator's position in its per-call state machine.
type State string

const (
	StateAttempting State = "attempting"
	StateValidating State = "validating"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted-failed"
)

// Call is one top-level invocation: a prompt with a contract the model's
// answer must satisfy. All fields are call-scoped; nothing is retained after
// Run returns.
type Call struct {
	Model  string
	System string
	// Prompts is the escalation ladder, least explicit first. Attempt n uses
	// the n-th variant (clamped to the last); each failed validation advances
	// one step. See EscalationLadder for the canonical three-step ladder.
	Prompts []string
	Tools   []ToolDeclaration
	Mode    Mode
	// Schema optionally declares the expected output shape directly. When nil
	// and the call demands a single mandatory tool, the tool's parameter
	// schema is the contract.
	Schema map[string]any
	// Semantic validators run after structural validation succeeds.
	Semantic []SemanticValidator
	// ExpectedTools restricts which invocations satisfy the tool contract.
	// Empty means any tool declared Required (or any tool at all when none is).
	ExpectedTools []string
	// MinCalls is the minimum number of tool invocations. Zero means 1 for
	// ModeToolRequired and no tool requirement otherwise.
	MinCalls    int
	Temperature *float64
	MaxTokens   *int
}

// Result is what every caller receives: a success flag plus enough
// attempt-level detail to diagnose why automatic recovery did or did not
// succeed. Validation exhaustion is reported here, never as an error.
type Result struct {
	Success bool
	State   State
	// Response is the normalized final response (tool invocation or text).
	Response NormalizedResponse
	// Artifact is the validated JSON artifact, with any auto-corrections
	// applied. Nil for free-text successes.
	Artifact json.RawMessage
	// Outcome is the final validation outcome.
	Outcome ValidationOutcome
	// History holds one record per attempt actually issued, in order.
	History []AttemptRecord
}

// Err returns nil for a successful result and ErrExhausted for a call that
// failed validation on every attempt, for callers that prefer an error value
// over inspecting the success flag.
func (r *Result) Err() error {
	if r.Success || r.State != StateExhausted {
		return nil
	}
	return ErrExhausted
}

// Orchestrator drives bounded retries of a Call against one backend. Each Run
// is an independent sequential unit owning its own records; a single
// Orchestrator may serve many concurrent Runs because it holds only read-only
// configuration.
type Orchestrator struct {
	caller     Caller
	capability BackendCapability
	opts       orchestratorOptions
}

// NewOrchestrator creates an Orchestrator calling the given backend with the
// given structured-output capability (usually client.Capability()).
func NewOrchestrator(caller Caller, capability BackendCapability, opts ...OrchestratorOption) *Orchestrator {
	o := orchestratorOptions{
		maxAttempts:    3,
		attemptTimeout: 120 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{caller: caller, capability: capability, opts: o}
}

// Run executes the call: translate → backend → normalize → validate, retrying
// with an escalated prompt on validation failure, up to the configured attempt
// budget. The number of backend calls never exceeds that budget.
//
// Error policy (the only failures that escape): a malformed tool declaration
// (SchemaError, surfaced before any attempt), a second consecutive transport
// failure, and context cancellation. A transport failure is retried exactly
// once, without consuming an escalation step, since a more explicit prompt
// cannot fix a network outage. Everything else is absorbed into the loop;
// exhausting attempts returns Success=false with a nil error.
//
// The returned Result is non-nil even alongside a non-nil error so callers
// keep the attempt history for diagnostics.
func (o *Orchestrator) Run(ctx context.Context, call Call) (*Result, error) {
	if len(call.Prompts) == 0 {
		return &Result{State: StateExhausted}, fmt.Errorf("call has no prompt variants")
	}
	if call.Mode == "" {
		call.Mode = ModeFree
	}

	contract, err := o.compileContract(call)
	if err != nil {
		return &Result{State: StateExhausted}, err
	}

	res := &Result{State: StateAttempting}
	variant := 0
	transportFailures := 0

	for attempt := 1; attempt <= o.opts.maxAttempts; attempt++ {
		// Cancellation is observed at the top of every attempt boundary, not
		// only at start.
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.State = StateAttempting
		prompt := call.Prompts[min(variant, len(call.Prompts)-1)]
		req := buildRequest(call, prompt)
		body, err := req.Body()
		if err != nil {
			return res, err
		}
		body, err = TranslateRequest(body, o.capability)
		if err != nil {
			return res, err
		}

		start := time.Now()
		raw, err := o.complete(ctx, body)
		elapsed := time.Since(start)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			transportFailures++
			o.record(ctx, res, AttemptRecord{
				Attempt: attempt,
				Prompt:  prompt,
				Outcome: Invalid("transport: " + err.Error()),
				Elapsed: elapsed,
			})
			if transportFailures >= 2 {
				return res, err
			}
			continue
		}
		transportFailures = 0

		res.State = StateValidating
		normalized := TranslateResponse(raw, req)
		transcript := append(req.Messages, AssistantMessage(raw, normalized))
		outcome, artifact := evaluate(call, contract, normalized, transcript)
		o.record(ctx, res, AttemptRecord{
			Attempt:     attempt,
			Prompt:      prompt,
			RawResponse: raw,
			Outcome:     outcome,
			Elapsed:     elapsed,
		})
		res.Outcome = outcome

		if outcome.Valid {
			res.Success = true
			res.State = StateSucceeded
			res.Response = normalized
			res.Artifact = artifact
			return res, nil
		}
		res.Response = normalized
		variant++
	}

	res.State = StateExhausted
	return res, nil
}

// complete issues one backend call bounded by the per-attempt timeout.
func (o *Orchestrator) complete(ctx context.Context, body []byte) ([]byte, error) {
	if o.opts.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.attemptTimeout)
		defer cancel()
	}
	return o.caller.Complete(ctx, body)
}

// record appends an attempt to the history and fires logging and the hook.
func (o *Orchestrator) record(ctx context.Context, res *Result, rec AttemptRecord) {
	res.History = append(res.History, rec)
	if rec.Outcome.Valid {
		o.opts.logger.Debug("attempt succeeded",
			"attempt", rec.Attempt, "elapsed", rec.Elapsed)
	} else {
		o.opts.logger.Debug("attempt failed",
			"attempt", rec.Attempt, "elapsed", rec.Elapsed, "errors", rec.Outcome.Errors)
	}
	if o.opts.onAttempt != nil {
		o.opts.onAttempt(ctx, rec)
	}
}

// callContract is the compiled, attempt-independent validation contract.
type callContract struct {
	schema        *SchemaValidator
	expectedTools []string
	minCalls      int
	requireTools  bool
}

// compileContract resolves schemas and tool expectations before the first
// attempt, so malformed declarations fail fast and are never retried.
func (o *Orchestrator) compileContract(call Call) (callContract, error) {
	var c callContract

	// Compile every declaration: a broken tool contract is fatal even when
	// it is not the structured-output target.
	for _, decl := range call.Tools {
		if _, _, err := compileDeclaration(decl); err != nil {
			return c, err
		}
	}

	switch {
	case call.Schema != nil:
		sv, err := NewSchemaValidator(call.Schema)
		if err != nil {
			return c, &SchemaError{Tool: "", Err: err}
		}
		c.schema = sv
	case call.Mode == ModeToolRequired && len(call.Tools) == 1:
		sv, err := ValidatorForDeclaration(call.Tools[0])
		if err != nil {
			return c, err
		}
		c.schema = sv
	}

	c.expectedTools = call.ExpectedTools
	if len(c.expectedTools) == 0 {
		for _, decl := range call.Tools {
			if decl.Required {
				c.expectedTools = append(c.expectedTools, decl.Name)
			}
		}
	}
	c.minCalls = call.MinCalls
	c.requireTools = call.Mode == ModeToolRequired || call.MinCalls > 0
	if c.requireTools && c.minCalls < 1 {
		c.minCalls = 1
	}
	return c, nil
}

// evaluate runs every validation stage against one normalized response and
// merges the outcomes so all errors surface together. The returned artifact is
// the validated value (with any corrections applied) when the merged outcome
// is valid.
func evaluate(call Call, contract callContract, normalized NormalizedResponse, transcript []Message) (ValidationOutcome, json.RawMessage) {
	var outcomes []ValidationOutcome

	if contract.requireTools {
		outcomes = append(outcomes, ValidateRequired(transcript, contract.expectedTools, contract.minCalls))
	}

	var artifact json.RawMessage
	if contract.schema != nil {
		raw, outcome := artifactSource(normalized)
		if raw == nil {
			outcomes = append(outcomes, outcome)
		} else {
			structural := contract.schema.Validate(raw)
			outcomes = append(outcomes, structural)
			if structural.Valid {
				artifact = structural.Recovered
				if len(call.Semantic) > 0 {
					semantic := ComposeValidators(call.Semantic...)(raw)
					outcomes = append(outcomes, semantic)
					if semantic.Valid && semantic.Recovered != nil {
						artifact = semantic.Recovered
					}
				}
			}
		}
	} else if len(call.Semantic) > 0 {
		if raw, outcome := artifactSource(normalized); raw == nil {
			outcomes = append(outcomes, outcome)
		} else {
			semantic := ComposeValidators(call.Semantic...)(raw)
			outcomes = append(outcomes, semantic)
			if semantic.Valid {
				artifact = raw
				if semantic.Recovered != nil {
					artifact = semantic.Recovered
				}
			}
		}
	}

	if len(outcomes) == 0 {
		// No contract at all: any non-empty reply succeeds.
		if normalized.Content == "" && !normalized.IsToolCall() {
			return Invalid("empty response"), nil
		}
		return OK(), nil
	}

	merged := Merge(outcomes...)
	if !merged.Valid {
		return merged, nil
	}
	return merged, artifact
}

// artifactSource picks the JSON artifact a schema contract applies to: tool
// invocation arguments when present, otherwise a JSON object extracted from
// the free-text content.
func artifactSource(normalized NormalizedResponse) (json.RawMessage, ValidationOutcome) {
	if normalized.IsToolCall() {
		return normalized.ToolCall.Arguments, OK()
	}
	if normalized.Content == "" {
		return nil, Invalid("empty response")
	}
	extracted, err := ExtractJSON(normalized.Content)
	if err != nil {
		return nil, Invalid(err.Error())
	}
	return extracted, OK()
}

// buildRequest assembles the per-attempt ChatRequest around one prompt variant.
func buildRequest(call Call, prompt string) ChatRequest {
	var msgs []Message
	if call.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: call.System})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	return ChatRequest{
		Model:       call.Model,
		Messages:    msgs,
		Tools:       call.Tools,
		Mode:        call.Mode,
		Temperature: call.Temperature,
		MaxTokens:   call.MaxTokens,
	}
}

// EscalationLadder builds the canonical three-step prompt ladder for a
// mandatory tool call: the question as asked, then an explicit parameter
// enumeration, then an imperative directive naming the exact tool. Each step
// is strictly more explicit than the last; all three are deterministic
// functions of the inputs so every escalation step can be tested in isolation.
func EscalationLadder(question string, tool ToolDeclaration) []string {
	var b strings.Builder
	b.WriteString("QUESTION: ")
	b.WriteString(question)
	b.WriteString("\nPARAMETERS:\n")
	for _, line := range parameterLines(tool) {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("REQUIRED ACTION: call the ")
	b.WriteString(tool.Name)
	b.WriteString(" tool with these parameters.")
	enumerated := b.String()

	imperative := fmt.Sprintf(
		"You MUST call the %s tool now. Do not compute manually and do not answer in prose. "+
			"Invoke %s with parameter values taken from: %s",
		tool.Name, tool.Name, question,
	)
	return []string{question, enumerated, imperative}
}

// parameterLines renders "name (type): description" lines for a declaration's
// parameters in deterministic order.
func parameterLines(tool ToolDeclaration) []string {
	props, ok := tool.Parameters["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return []string{"(no parameters)"}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		line := name
		if prop, ok := props[name].(map[string]any); ok {
			if typ, ok := prop["type"].(string); ok {
				line += " (" + typ + ")"
			}
			if desc, ok := prop["description"].(string); ok && desc != "" {
				line += ": " + desc
			}
		}
		lines = append(lines, line)
	}
	return lines
}
