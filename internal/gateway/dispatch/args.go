package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// resolveArgument extracts the string argument for a tool call whose
// payload may arrive in several shapes. Resolution order: the primary
// expected key, then each fallback key, then the whole arguments value as a
// bare string. A miss is recoverable: the caller skips that call without
// aborting the others.
func resolveArgument(arguments, primary string, fallbacks []string) (string, bool) {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return "", false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
		for _, key := range append([]string{primary}, fallbacks...) {
			if v, ok := probeKey(m, key); ok {
				return v, true
			}
		}
		return "", false
	}

	// Arguments may be a bare JSON string rather than an object.
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
		return "", false
	}

	// Not JSON at all; treat the raw text as the argument.
	return trimmed, true
}

// probeKey reads one key, accepting a string, a scalar coerced to string,
// or one level of nesting under the same key (e.g. {"location":{"location":"Tokyo"}}
// or {"location":{"value":"Tokyo"}}).
func probeKey(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch vv := v.(type) {
	case string:
		if s := strings.TrimSpace(vv); s != "" {
			return s, true
		}
	case float64, bool:
		return fmt.Sprint(vv), true
	case map[string]any:
		for _, inner := range []string{key, "value"} {
			if s, ok := vv[inner].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}
