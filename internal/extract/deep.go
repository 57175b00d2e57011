package extract

import (
	"encoding/json"
	"sort"
	"strings"
)

// FindFirstDeep walks root breadth-first and returns the value reached by
// following path from the first node that contains it. Map keys are visited
// in sorted order so results do not depend on map iteration.
func FindFirstDeep(root any, path ...string) (any, bool) {
	if root == nil || len(path) == 0 {
		return nil, false
	}

	queue := []any{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.(type) {
		case map[string]any:
			if v, ok := follow(node, path); ok {
				return v, true
			}
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				queue = append(queue, node[k])
			}
		case []any:
			queue = append(queue, node...)
		}
	}
	return nil, false
}

func follow(node map[string]any, path []string) (any, bool) {
	var cur any = node
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Lookup follows path from root without searching.
func Lookup(root any, path ...string) (any, bool) {
	m, ok := root.(map[string]any)
	if !ok {
		return nil, false
	}
	return follow(m, path)
}

// String returns v as a trimmed string, or "" for non-strings.
func String(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// StringSlice keeps the trimmed non-empty strings of an array. It returns nil
// when v is not an array or nothing survives.
func StringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s := String(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// truthy mirrors the loose presence test used for optional hydration fields.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
