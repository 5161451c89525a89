package trustcall

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// structuredOutputsField is the backend-native constrained-generation
// directive: {"structured_outputs": {"json": <schema>}} at the top level of
// the request body. Its presence also marks a request as already translated.
const structuredOutputsField = "structured_outputs"

// wireMessage / wire* types model the OpenAI-compatible request payload.
// They are deliberately distinct from the transcript types in trustcall.go.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type wireFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Body serializes the request into an OpenAI-compatible chat-completion
// payload: the tool-calling convention every backend understands. Requests in
// ModeToolRequired carry tool_choice "required"; ModeNone carries "none" when
// tools are declared; ModeFree omits tool_choice entirely.
func (req ChatRequest) Body() ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == RoleTool {
			wm.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		messages = append(messages, wm)
	}

	body := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, wireTool{
				Type: "function",
				Function: wireFunctionDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}
	switch req.Mode {
	case ModeToolRequired:
		if len(req.Tools) == 0 {
			return nil, fmt.Errorf("mode %q requires at least one declared tool", req.Mode)
		}
		body["tool_choice"] = "required"
	case ModeNone:
		if len(req.Tools) > 0 {
			body["tool_choice"] = "none"
		}
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	return json.Marshal(body)
}

// TranslateRequest rewrites a serialized chat-completion body for the target
// backend. For a native-structured-output backend and a mandatory single-tool
// request, the tool declaration becomes a constrained-generation directive
// carrying the tool's parameter schema, and the tool fields are stripped so
// the backend does not attempt native tool routing.
//
// Everything else passes through byte-identical: multi-tool requests
// (multi-tool constrained generation is an explicit design boundary, not an
// oversight), tool-calling-only backends, and free/none mode requests.
//
// Translation is idempotent: a body already carrying the directive is
// returned unchanged, so applying it twice is a no-op.
func TranslateRequest(body []byte, capability BackendCapability) ([]byte, error) {
	if gjson.GetBytes(body, structuredOutputsField).Exists() {
		return body, nil
	}
	if capability != CapabilityNativeStructured {
		return body, nil
	}
	if gjson.GetBytes(body, "tool_choice").String() != "required" {
		return body, nil
	}
	tools := gjson.GetBytes(body, "tools").Array()
	if len(tools) != 1 {
		return body, nil
	}
	params := gjson.GetBytes(body, "tools.0.function.parameters")
	if !params.Exists() {
		return body, nil
	}

	out, err := sjson.SetRawBytes(body, structuredOutputsField+".json", []byte(params.Raw))
	if err != nil {
		return nil, fmt.Errorf("set constrained-generation directive: %w", err)
	}
	if out, err = sjson.DeleteBytes(out, "tools"); err != nil {
		return nil, fmt.Errorf("strip tools: %w", err)
	}
	if out, err = sjson.DeleteBytes(out, "tool_choice"); err != nil {
		return nil, fmt.Errorf("strip tool_choice: %w", err)
	}
	return out, nil
}

// TranslateResponse normalizes a raw backend response. A native tool-call
// structure passes through as-is. A structured JSON payload embedded in the
// message content (possibly interleaved with free text) is extracted and
// re-wrapped as an invocation of the single declared tool. When neither
// applies, the raw text is returned as free-text content and downstream
// validation reports the failure; the translator itself never fails.
func TranslateResponse(raw []byte, req ChatRequest) NormalizedResponse {
	msg := gjson.GetBytes(raw, "choices.0.message")
	content := msg.Get("content").String()

	if calls := msg.Get("tool_calls").Array(); len(calls) > 0 {
		tc := parseWireToolCall(calls[0])
		return NormalizedResponse{ToolCall: &tc, Content: content}
	}

	if req.Mode == ModeToolRequired && len(req.Tools) == 1 && content != "" {
		if extracted, err := ExtractJSON(content); err == nil {
			return NormalizedResponse{ToolCall: &ToolCall{
				ID:        newCallID(),
				Name:      req.Tools[0].Name,
				Arguments: extracted,
			}}
		}
	}

	return NormalizedResponse{Content: content}
}

// AssistantMessage builds the transcript entry for a backend response, keeping
// every native tool invocation so the Tool Call Detector sees them all. When
// the response carried no native calls, the normalized view (a synthesized
// invocation or plain content) is used instead.
func AssistantMessage(raw []byte, normalized NormalizedResponse) Message {
	msg := gjson.GetBytes(raw, "choices.0.message")
	out := Message{Role: RoleAssistant, Content: msg.Get("content").String()}
	if calls := msg.Get("tool_calls").Array(); len(calls) > 0 {
		for _, c := range calls {
			out.ToolCalls = append(out.ToolCalls, parseWireToolCall(c))
		}
		return out
	}
	if normalized.IsToolCall() {
		out.Content = ""
		out.ToolCalls = []ToolCall{*normalized.ToolCall}
	}
	return out
}

// parseWireToolCall maps one wire tool_calls entry to a ToolCall. Arguments
// arrive as a string-encoded JSON object and are kept verbatim for validation.
func parseWireToolCall(c gjson.Result) ToolCall {
	return ToolCall{
		ID:        c.Get("id").String(),
		Name:      c.Get("function.name").String(),
		Arguments: json.RawMessage(c.Get("function.arguments").String()),
	}
}

// newCallID synthesizes a tool-call identifier in the call_<16 hex> shape
// tool-calling backends use.
func newCallID() string {
	u := uuid.New()
	return "call_" + hex.EncodeToString(u[:])[:16]
}
