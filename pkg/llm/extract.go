package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first balanced top-level JSON object or array out of
// model output, tolerating surrounding prose and markdown fences, and
// unmarshals it into v.
func ExtractJSON(text string, v any) error {
	raw, err := firstJSONValue(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return nil
}

func firstJSONValue(text string) (string, error) {
	start := -1
	var open, closer byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			open = text[i]
			if open == '{' {
				closer = '}'
			} else {
				closer = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON value found in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON value in model output")
}
