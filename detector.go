package trustcall

import (
	"fmt"
	"strings"
)

// ExtractToolCalls walks a completed transcript in order and returns every
// tool invocation record found, regardless of which role carried it. Pure
// inspection; the transcript is not modified.
func ExtractToolCalls(transcript []Message) []ToolCall {
	var calls []ToolCall
	for _, m := range transcript {
		calls = append(calls, m.ToolCalls...)
	}
	return calls
}

// ValidateRequired checks that the transcript contains at least minCalls tool
// invocations and, when expectedTools is non-empty, that at least one
// invocation names an expected tool. Side-effect-free.
func ValidateRequired(transcript []Message, expectedTools []string, minCalls int) ValidationOutcome {
	calls := ExtractToolCalls(transcript)

	var errs []string
	if len(calls) < minCalls {
		errs = append(errs, fmt.Sprintf("expected at least %d tool call(s), found %d", minCalls, len(calls)))
	}
	if len(expectedTools) > 0 && !anyCallMatches(calls, expectedTools) {
		errs = append(errs, fmt.Sprintf(
			"no tool call matches expected tools [%s]", strings.Join(expectedTools, ", ")))
	}
	if len(errs) > 0 {
		return Invalid(errs...)
	}
	return OK()
}

func anyCallMatches(calls []ToolCall, expectedTools []string) bool {
	expected := make(map[string]struct{}, len(expectedTools))
	for _, name := range expectedTools {
		expected[name] = struct{}{}
	}
	for _, c := range calls {
		if _, ok := expected[c.Name]; ok {
			return true
		}
	}
	return false
}
