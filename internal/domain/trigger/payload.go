// Package trigger translates raw provider webhook payloads into canonical
// triggers and decides whether a payload should start a review.
package trigger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Payload is a decoded webhook body. Field access goes through JMESPath so
// the per-provider mappers stay declarative about where values live.
type Payload map[string]any

// DecodePayload parses a raw webhook body into a Payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return p, nil
}

// String evaluates a JMESPath expression and returns the result as a string.
// Missing paths and evaluation errors yield "".
func (p Payload) String(expr string) string {
	v, err := jmespath.Search(expr, map[string]any(p))
	if err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Int evaluates a JMESPath expression and returns the result as an int.
// JSON numbers arrive as float64; string digits are tolerated because some
// providers serialize ids as strings.
func (p Payload) Int(expr string) int {
	v, err := jmespath.Search(expr, map[string]any(p))
	if err != nil || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, convErr := strconv.Atoi(strings.TrimSpace(t))
		if convErr != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool evaluates a JMESPath expression and returns the result as a bool.
func (p Payload) Bool(expr string) bool {
	v, err := jmespath.Search(expr, map[string]any(p))
	if err != nil || v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// SanitizeBitbucket strips the brace wrapping Bitbucket puts around UUID
// values ("{a-b-c}" becomes "a-b-c") everywhere in the payload. Mapping and
// downstream stores expect bare identifiers.
func SanitizeBitbucket(p Payload) Payload {
	out, _ := sanitizeValue(map[string]any(p)).(map[string]any)
	return Payload(out)
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeValue(val)
		}
		return out
	case string:
		return stripBraces(t)
	default:
		return v
	}
}

func stripBraces(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}
