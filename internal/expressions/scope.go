package expressions

// Scope holds the data available for variable resolution during a run.
// Lookups consult variables first, then inputs; variables written by earlier
// nodes shadow same-named inputs.
type Scope struct {
	Inputs    map[string]any
	Variables map[string]any
}

// NewScope builds a resolution scope over the run's inputs and accumulated
// variables. Neither map is copied; the caller owns mutation.
func NewScope(inputs, variables map[string]any) *Scope {
	return &Scope{Inputs: inputs, Variables: variables}
}

// Lookup resolves a dot-delimited path against the scope. The first segment
// is looked up in variables, falling back to inputs; remaining segments
// traverse nested maps. The second return is false when the path dead-ends
// at any point.
func (s *Scope) Lookup(path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	current, ok := s.root(segments[0])
	if !ok {
		return nil, false
	}

	for _, seg := range segments[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// root resolves the first path segment: variables shadow inputs.
func (s *Scope) root(key string) (any, bool) {
	if s.Variables != nil {
		if v, ok := s.Variables[key]; ok {
			return v, true
		}
	}
	if s.Inputs != nil {
		if v, ok := s.Inputs[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Env returns the scope as an expression environment with namespaced access
// (inputs.*, variables.*) for the CEL/expr/jq engines.
func (s *Scope) Env() map[string]any {
	inputs := s.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	variables := s.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	return map[string]any{
		"inputs":    inputs,
		"variables": variables,
	}
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
