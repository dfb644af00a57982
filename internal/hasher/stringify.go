package hasher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// StableStringify renders v as a canonical, whitespace-free string:
// objects as {"k1":v1,...} with keys sorted lexicographically, arrays
// in order, scalars via canonical JSON encoding. It is the single
// source of truth for every hash input in this package — deviating
// here breaks multi-agent identity convergence (spec §9).
func StableStringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		b, _ := json.Marshal(t)
		return string(b)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	case []string:
		items := make([]string, len(t))
		for i, s := range t {
			items[i] = StableStringify(s)
		}
		return "[" + joinComma(items) + "]"
	case []any:
		items := make([]string, len(t))
		for i, s := range t {
			items[i] = StableStringify(s)
		}
		return "[" + joinComma(items) + "]"
	case map[string]any:
		return stringifyMap(t)
	default:
		// Fall back to a JSON round-trip through map[string]any so that
		// structs (and pointers to structs) get sorted-key treatment.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return string(b)
		}
		if _, ok := generic.(map[string]any); ok {
			return StableStringify(generic)
		}
		if _, ok := generic.([]any); ok {
			return StableStringify(generic)
		}
		return string(b)
	}
}

func stringifyMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		kb, _ := json.Marshal(k)
		pairs = append(pairs, string(kb)+":"+StableStringify(m[k]))
	}
	return "{" + joinComma(pairs) + "}"
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
