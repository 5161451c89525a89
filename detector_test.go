package trustcall

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(name string) ToolCall {
	return ToolCall{ID: "call_" + name, Name: name, Arguments: json.RawMessage(`{}`)}
}

func TestExtractToolCalls(t *testing.T) {
	t.Parallel()
	transcript := []Message{
		{Role: RoleSystem, Content: "system prompt"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{call("future_value"), call("monthly_payment")}},
		{Role: RoleTool, ToolCallID: "call_future_value", Content: "74012.21"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{call("future_value")}},
	}

	calls := ExtractToolCalls(transcript)
	require.Len(t, calls, 3)
	// Transcript order is preserved.
	assert.Equal(t, "future_value", calls[0].Name)
	assert.Equal(t, "monthly_payment", calls[1].Name)
	assert.Equal(t, "future_value", calls[2].Name)
}

func TestExtractToolCalls_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ExtractToolCalls(nil))
	assert.Empty(t, ExtractToolCalls([]Message{
		{Role: RoleUser, Content: "no tools here"},
		{Role: RoleAssistant, Content: "plain answer"},
	}))
}

func TestValidateRequired(t *testing.T) {
	t.Parallel()
	withCall := []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{call("future_value")}},
	}
	withoutCall := []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "I computed it by hand: 74012.21"},
	}

	tests := []struct {
		name       string
		transcript []Message
		expected   []string
		minCalls   int
		valid      bool
		errCount   int
	}{
		{"expected tool called", withCall, []string{"future_value"}, 1, true, 0},
		{"any expected tool suffices", withCall, []string{"monthly_payment", "future_value"}, 1, true, 0},
		{"no calls at all", withoutCall, []string{"future_value"}, 1, false, 2},
		{"wrong tool called", withCall, []string{"monthly_payment"}, 1, false, 1},
		{"too few calls", withCall, nil, 2, false, 1},
		{"no expectations", withoutCall, nil, 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			outcome := ValidateRequired(tt.transcript, tt.expected, tt.minCalls)
			assert.Equal(t, tt.valid, outcome.Valid)
			assert.Len(t, outcome.Errors, tt.errCount)
		})
	}
}

func TestValidateRequired_ErrorMessages(t *testing.T) {
	t.Parallel()
	outcome := ValidateRequired(nil, []string{"future_value", "monthly_payment"}, 1)
	require.False(t, outcome.Valid)
	require.Len(t, outcome.Errors, 2)
	assert.Contains(t, outcome.Errors[0], "expected at least 1 tool call(s), found 0")
	assert.Contains(t, outcome.Errors[1], "future_value, monthly_payment")
}
