package expressions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resolver substitutes {{path}} references in strings and structured values.
// A reference that cannot be resolved is replaced with the empty string:
// templating never aborts a run.
type Resolver struct{}

// NewResolver creates a template Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve scans for {{...}} tokens and replaces each with the stringified
// value the dot-path resolves to in the scope. An unclosed {{ is left as
// literal text.
func (r *Resolver) Resolve(template string, scope *Scope) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var result strings.Builder
	result.Grow(len(template))

	i := 0
	for i < len(template) {
		idx := strings.Index(template[i:], "{{")
		if idx == -1 {
			result.WriteString(template[i:])
			break
		}

		result.WriteString(template[i : i+idx])
		start := i + idx + 2

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			// No closing marker; keep the rest verbatim.
			result.WriteString(template[i+idx:])
			break
		}
		end += start

		path := strings.TrimSpace(template[start:end])
		if val, ok := scope.Lookup(path); ok {
			result.WriteString(stringify(val))
		}
		// Missing paths contribute nothing.

		i = end + 2
	}

	return result.String()
}

// ResolveValue walks a structured value and applies Resolve to every string
// it contains. Maps and slices are rebuilt; other types pass through.
func (r *Resolver) ResolveValue(v any, scope *Scope) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val, scope)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item, scope)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item, scope)
		}
		return out
	default:
		return v
	}
}

// stringify converts a resolved value into its inline text form. Strings are
// embedded as-is; composites are JSON-encoded.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
