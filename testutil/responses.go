package testutil

import (
	"encoding/json"
	"fmt"
)

// ChatResponse builds a minimal OpenAI-compatible chat-completion body whose
// single choice carries plain assistant content.
func ChatResponse(content string) []byte {
	return completion(map[string]any{
		"role":    "assistant",
		"content": content,
	}, "stop")
}

// ToolCallResponse builds a chat-completion body whose single choice carries
// one native tool invocation with the given JSON arguments string.
func ToolCallResponse(name, arguments string) []byte {
	return completion(map[string]any{
		"role":    "assistant",
		"content": nil,
		"tool_calls": []map[string]any{{
			"id":   "call_0123456789abcdef",
			"type": "function",
			"function": map[string]any{
				"name":      name,
				"arguments": arguments,
			},
		}},
	}, "tool_calls")
}

func completion(message map[string]any, finishReason string) []byte {
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finishReason,
		}},
	})
	if err != nil {
		panic(fmt.Sprintf("testutil: build completion: %v", err))
	}
	return body
}
