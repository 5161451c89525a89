package trustcall

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// fencedBlockRe matches the first fenced code block tagged (or untagged) as
// structured data. (?s) lets the body span lines.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON locates a JSON object inside free-form or partially structured
// model output. Candidates are tried in order of preference, first match wins:
//
//  1. the body of a fenced code block tagged as structured data,
//  2. the first top-level balanced {...} span, scanning left to right with
//     string literals respected so braces inside strings are ignored,
//  3. the whole content parsed directly.
//
// Candidates that almost parse get a second chance through a repair pass
// (small models drop trailing commas and quote marks more often than they
// produce clean JSON). Fails with *ExtractionError when no candidate parses.
//
// Extraction is independent of surrounding text: a valid object embedded in an
// arbitrary prefix/suffix extracts to the same value as the bare object.
func ExtractJSON(text string) (json.RawMessage, error) {
	candidates := jsonCandidates(text)
	for _, c := range candidates {
		if isJSONObject(c) {
			return json.RawMessage(c), nil
		}
	}
	for _, c := range candidates {
		repaired, err := jsonrepair.JSONRepair(c)
		if err != nil {
			continue
		}
		if isJSONObject(repaired) {
			return json.RawMessage(repaired), nil
		}
	}
	return nil, &ExtractionError{Reason: "no JSON object candidate parsed"}
}

// jsonCandidates returns the extraction candidates in order of preference.
func jsonCandidates(text string) []string {
	var out []string
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	if span := braceSpan(text); span != "" {
		out = append(out, span)
	}
	if whole := strings.TrimSpace(text); whole != "" {
		out = append(out, whole)
	}
	return out
}

// braceSpan returns the first top-level balanced {...} span in text, tracking
// nesting depth and string literals so braces inside strings do not count.
// Returns "" when no balanced span exists.
func braceSpan(text string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// isJSONObject reports whether s is a syntactically valid JSON object.
func isJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}
