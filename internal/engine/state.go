package engine

import "github.com/rendis/graphflow/internal/expressions"

// ExecutionState is the ephemeral mutable state of a single run. It is owned
// by the executing goroutine and never shared; only the ExecutionRecord is
// visible outside the run.
type ExecutionState struct {
	Inputs    map[string]any
	Variables map[string]any
	Messages  []Message
}

// Message is one entry in the run's conversational trace, appended by agent
// nodes.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewExecutionState initializes run state from the invocation payload.
// Variables start empty; node outputs accumulate into them as the run
// progresses.
func NewExecutionState(inputs map[string]any) *ExecutionState {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &ExecutionState{
		Inputs:    inputs,
		Variables: map[string]any{},
	}
}

// Scope returns the resolution scope over the current state: variables
// shadow inputs.
func (s *ExecutionState) Scope() *expressions.Scope {
	return expressions.NewScope(s.Inputs, s.Variables)
}

// Merge folds a node output patch into the accumulated variables.
func (s *ExecutionState) Merge(patch map[string]any) {
	for k, v := range patch {
		s.Variables[k] = v
	}
}

// Append records a message on the run's trace.
func (s *ExecutionState) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// SnapshotVariables returns a shallow copy of the accumulated variables.
func (s *ExecutionState) SnapshotVariables() map[string]any {
	out := make(map[string]any, len(s.Variables))
	for k, v := range s.Variables {
		out[k] = v
	}
	return out
}
