package client

import (
	"encoding/json"
	"strings"

	"github.com/menta2k/rect-transformer/pkg/types"
)

// FallbackResult is a centered low-confidence answer used when a model reply
// cannot be parsed. The "fallback" tag is always added.
func FallbackResult(label, description string, tags ...string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      label,
			Confidence: 0.1,
			Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        append(tags, "fallback"),
	}
}

// ParseAnalysisResult decodes a model reply. The outermost {...} is decoded
// as is first; only if that fails are comments and trailing commas removed.
func ParseAnalysisResult(raw string) *types.AnalysisResult {
	candidate := extractObject(raw)
	if !strings.HasPrefix(candidate, "{") {
		return FallbackResult("unclear image", "Model returned non-JSON response", "unclear", "non-json")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(candidate), &result); err == nil {
		return &result
	}

	result = types.AnalysisResult{}
	if err := json.Unmarshal([]byte(SanitizeModelJSON(raw)), &result); err != nil {
		return FallbackResult("parse error", "Failed to parse model response", "parse-error")
	}
	return &result
}

// SanitizeModelJSON strips code fences, comments and trailing commas, and
// keeps the outermost {...} of a model answer. String literals are left
// untouched.
func SanitizeModelJSON(raw string) string {
	raw = stripFences(raw)
	raw = stripTrailingCommas(stripComments(raw))
	return extractObject(raw)
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	return strings.Trim(strings.TrimSpace(raw), "`")
}

func extractObject(raw string) string {
	raw = stripFences(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// scanner walks JSON-ish text and tracks whether it is inside a string.
type scanner struct {
	src      string
	inString bool
	escaped  bool
}

// step reports whether src[i] is outside a string literal, updating state.
func (s *scanner) step(i int) bool {
	c := s.src[i]
	switch {
	case s.escaped:
		s.escaped = false
		return false
	case s.inString:
		if c == '\\' {
			s.escaped = true
		} else if c == '"' {
			s.inString = false
		}
		return false
	case c == '"':
		s.inString = true
		return false
	}
	return true
}

func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	s := scanner{src: src}
	for i := 0; i < len(src); i++ {
		if !s.step(i) || src[i] != '/' || i+1 >= len(src) {
			b.WriteByte(src[i])
			continue
		}
		switch src[i+1] {
		case '/':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end - 1
		case '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(src[i])
		}
	}
	return b.String()
}

func stripTrailingCommas(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	s := scanner{src: src}
	for i := 0; i < len(src); i++ {
		if s.step(i) && src[i] == ',' {
			rest := strings.TrimLeft(src[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				continue
			}
		}
		b.WriteByte(src[i])
	}
	return b.String()
}
