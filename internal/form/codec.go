// Package form converts between raw HTML form submissions and typed,
// validated configuration sections.
package form

import (
	"strconv"
	"strings"
)

// DecodeValue converts a single raw form value to a typed scalar. Booleans
// are the case-insensitive tokens "true", "false" and "on" (HTML checkboxes
// submit "on"); strict integers and floats come next; anything else stays a
// string. It never fails.
func DecodeValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "on":
		return true
	case "false":
		return false
	}
	if isStrictInt(raw) {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

// DecodeFlat decodes every entry of a raw form submission. Empty values mean
// "leave unset" and are skipped entirely so a partially filled form cannot
// clobber unrelated fields with blanks.
func DecodeFlat(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == "" {
			continue
		}
		out[k] = DecodeValue(v)
	}
	return out
}

// isStrictInt reports whether s is all digits with an optional leading minus.
func isStrictInt(s string) bool {
	if s == "" {
		return false
	}
	digits := s
	if s[0] == '-' {
		digits = s[1:]
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// SetPath writes value at the dotted path inside tree, creating intermediate
// maps as needed. An intermediate that is not a map is replaced.
func SetPath(tree map[string]any, dotted string, value any) {
	parts := strings.Split(dotted, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[p] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

// Unflatten expands dotted keys into a nested tree. Disjoint keys are
// order-independent.
func Unflatten(flat map[string]any) map[string]any {
	tree := make(map[string]any)
	for k, v := range flat {
		SetPath(tree, k, v)
	}
	return tree
}
