package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// SanitizeRules describes how to repair common model slips in a tool payload.
// Paths address nested objects with dots ("confidence.overall").
type SanitizeRules struct {
	Renames  map[string]string   // synonym -> canonical key (top level)
	Allowed  map[string][]string // object path ("" for root) -> allowed keys
	Numbers  []string            // coerce numeric strings to numbers
	Integers []string            // coerce to whole numbers
	Bools    []string            // coerce "true"/"false"/"yes"/"no"
	Upper    []string            // upper-case strings
	Lower    []string            // lower-case strings
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms
// - Drops null and empty-string values
// - Coerces numeric strings and boolean strings
// - Normalizes casing of enum-like fields
// - Removes unknown keys
// It never clamps: out-of-range values are left for the validator to reject.
func NormalizeAndSanitizeJSON(raw []byte, rules SanitizeRules, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changes := make([]string, 0, 8)

	// 1) rename synonyms
	for _, from := range slices.Sorted(maps.Keys(rules.Renames)) {
		to := rules.Renames[from]
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changes = append(changes, from+"->"+to)
		}
	}

	// 2) drop nulls and blank strings everywhere
	dropEmpty(m, "", &changes)

	// 3) coerce scalars
	for _, p := range rules.Numbers {
		coerceAt(m, p, &changes, toNumber(false))
	}
	for _, p := range rules.Integers {
		coerceAt(m, p, &changes, toNumber(true))
	}
	for _, p := range rules.Bools {
		coerceAt(m, p, &changes, toBool)
	}
	for _, p := range rules.Upper {
		coerceAt(m, p, &changes, caseString(strings.ToUpper))
	}
	for _, p := range rules.Lower {
		coerceAt(m, p, &changes, caseString(strings.ToLower))
	}

	// 4) remove unknown keys
	for path, keys := range rules.Allowed {
		obj := objectAt(m, path)
		if obj == nil {
			continue
		}
		allowed := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			allowed[k] = struct{}{}
		}
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			if _, ok := allowed[k]; !ok {
				delete(obj, k)
				changes = append(changes, join(path, k)+"(unknown)")
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changes) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "changes", changes)
	}
	return out, changes, nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func dropEmpty(m map[string]any, path string, changes *[]string) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch t := m[k].(type) {
		case nil:
			delete(m, k)
			*changes = append(*changes, join(path, k)+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
				delete(m, k)
				*changes = append(*changes, join(path, k)+"(empty)")
			} else {
				m[k] = s
			}
		case map[string]any:
			dropEmpty(t, join(path, k), changes)
		case []any:
			kept := t[:0]
			for _, item := range t {
				if item == nil {
					continue
				}
				if obj, ok := item.(map[string]any); ok {
					dropEmpty(obj, join(path, k)+"[]", changes)
				}
				kept = append(kept, item)
			}
			m[k] = kept
		}
	}
}

func objectAt(m map[string]any, path string) map[string]any {
	if path == "" {
		return m
	}
	cur := m
	for _, part := range strings.Split(path, ".") {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

type coerceFunc func(v any) (any, bool)

// coerceAt applies fn to the value at path; "items[].price" applies it to every
// element of the items array.
func coerceAt(m map[string]any, path string, changes *[]string, fn coerceFunc) {
	if arr, rest, ok := strings.Cut(path, "[]."); ok {
		items, _ := objectValue(m, arr).([]any)
		for _, it := range items {
			if obj, ok := it.(map[string]any); ok {
				coerceAt(obj, rest, changes, fn)
			}
		}
		return
	}
	parent := m
	key := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		parent = objectAt(m, path[:i])
		key = path[i+1:]
	}
	if parent == nil {
		return
	}
	v, ok := parent[key]
	if !ok {
		return
	}
	nv, changed := fn(v)
	if changed {
		parent[key] = nv
		*changes = append(*changes, path+"(coerced)")
	}
}

func objectValue(m map[string]any, path string) any {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		parent := objectAt(m, path[:i])
		if parent == nil {
			return nil
		}
		return parent[path[i+1:]]
	}
	return m[path]
}

func toNumber(integer bool) coerceFunc {
	return func(v any) (any, bool) {
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			s = strings.TrimSuffix(s, "%")
			s = strings.ReplaceAll(s, " ", "")
			if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
				s = strings.Replace(s, ",", ".", 1)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return v, false
			}
			if integer {
				return float64(int64(f)), true
			}
			return f, true
		case float64:
			if integer && t != float64(int64(t)) {
				return float64(int64(t)), true
			}
		}
		return v, false
	}
}

func toBool(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return v, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return v, false
}

func caseString(fn func(string) string) coerceFunc {
	return func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return v, false
		}
		out := fn(s)
		return out, out != s
	}
}
