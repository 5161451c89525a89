// Package trustcall makes structured output from small, unreliable language
// models dependable: it adapts between two incompatible structured-output
// conventions and drives validation with escalating retries until the model
// produces an artifact the caller can trust.
//
// # Overview
//
// OpenAI-compatible backends disagree on how a caller asks for structured
// output. Tool-calling backends return a tool invocation with JSON arguments;
// constrained-generation backends (e.g. vLLM) accept a JSON Schema in the
// request body and return schema-conforming JSON as plain message content.
// trustcall translates requests and responses between the two so callers see
// a single NormalizedResponse regardless of which backend answered.
//
// Pipeline: prompt + ToolDeclaration → TranslateRequest (per backend
// capability) → backend call → TranslateResponse → extraction + schema
// validation + semantic validators → validated artifact, or another attempt
// with a more explicit prompt.
//
// # Key concepts
//
//   - Backend capability: an explicit, statically configured property of an
//     endpoint (CapabilityTable), never inferred from URLs at runtime.
//   - Escalation: prompt variants ordered from natural phrasing to an
//     imperative directive naming the exact tool; the Orchestrator advances
//     one step per failed validation.
//   - Self-correction boundary: validation failures are absorbed into the
//     retry loop; only malformed declarations (SchemaError) and repeated
//     transport failures escape to the caller.
//
// See ChatRequest, NormalizedResponse, and Orchestrator for the core types,
// and NewClient / NewOrchestrator for setup.
//
// # Example
//
//	tool := trustcall.ToolDeclaration{
//	    Name: "future_value",
//	    Parameters: map[string]any{
//	        "type": "object",
//	        "properties": map[string]any{
//	            "principal": map[string]any{"type": "number"},
//	            "rate":      map[string]any{"type": "number"},
//	            "years":     map[string]any{"type": "integer"},
//	        },
//	        "required": []any{"principal", "rate", "years"},
//	    },
//	}
//	client := trustcall.NewClient("http://localhost:8000/v1", table)
//	orch := trustcall.NewOrchestrator(client, client.Capability())
//	res, err := orch.Run(ctx, trustcall.Call{
//	    Prompts: trustcall.EscalationLadder("I have 50000 at 4% for 10 years.", tool),
//	    Tools:   []trustcall.ToolDeclaration{tool},
//	    Mode:    trustcall.ModeToolRequired,
//	})
package trustcall
