package orchestrator

import "encoding/json"

// parsePlan extracts the first balanced {...} block from text and decodes
// it as a plan (§4.10, §7 PLAN_PARSE_FAIL). Returns ok=false if no balanced
// block is found, it fails to decode, or it decodes to zero steps — in any
// of those cases the caller falls back to a single-step plan.
func parsePlan(text string) ([]PlanStep, bool) {
	block, ok := firstJSONObject(text)
	if !ok {
		return nil, false
	}
	var p plan
	if err := json.Unmarshal([]byte(block), &p); err != nil {
		return nil, false
	}
	if len(p.Steps) == 0 {
		return nil, false
	}
	return p.Steps, true
}

// firstJSONObject returns the first brace-balanced {...} substring of text,
// tolerant of braces inside quoted strings.
func firstJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
