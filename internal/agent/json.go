package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// ExtractJSON pulls the first JSON object or array out of agent text.
// Agents frequently wrap their output in prose or markdown fences; this
// strips fences and scans for a balanced top-level value.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)

	// Prefer a fenced block when present.
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			if candidate := strings.TrimSpace(rest[:j]); candidate != "" {
				s = candidate
			}
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON value in output", domain.ErrAgentParse)
	}

	open := s[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced JSON value in output", domain.ErrAgentParse)
}

// Extract decodes the first JSON value in agent text into T. Unknown
// fields are tolerated for forward compatibility.
func Extract[T any](text string) (T, error) {
	var out T
	raw, err := ExtractJSON(text)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrAgentParse, err)
	}
	return out, nil
}
