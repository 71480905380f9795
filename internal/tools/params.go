package tools

import (
	"fmt"
	"sort"
	"strings"
)

// WarnUnknownParams checks args for keys not in knownKeys.
// Returns a warning string (with trailing newline) to prepend to tool output,
// or "" if no unknown keys found.
func WarnUnknownParams(args map[string]any, knownKeys []string) string {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var unknown []string
	for k := range args {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return ""
	}
	sort.Strings(unknown)
	var sb strings.Builder
	for _, k := range unknown {
		sb.WriteString(fmt.Sprintf("Unknown parameter '%s' was ignored\n", k))
	}
	return sb.String()
}

// argString extracts a string argument, returning "" if absent or the wrong type.
func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// argInt extracts an integer argument, tolerating JSON's float64 decoding.
func argInt(args map[string]any, key string) int {
	v, ok := args[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// argBool extracts a boolean argument, returning false if absent or the wrong type.
func argBool(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// argStringSlice extracts a []string argument from JSON-decoded []any.
func argStringSlice(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
