// Package capabilities defines the external collaborators a workflow run may
// call out to: agents, tools, and a reasoner for delegated decisions.
// Implementations are injected at startup; the engine never constructs them.
package capabilities

import "context"

// AgentInvoker runs an agent of a given type against a resolved prompt and
// returns its textual response.
type AgentInvoker interface {
	Invoke(ctx context.Context, agentType, prompt string) (string, error)
}

// ToolInvoker executes a named command with resolved arguments and returns
// an arbitrary result value.
type ToolInvoker interface {
	Invoke(ctx context.Context, command string, args map[string]any) (any, error)
}

// Reasoner answers a natural-language condition against the run's variables.
// The engine treats a response containing "yes" (case-insensitive) as an
// affirmative branch.
type Reasoner interface {
	Invoke(ctx context.Context, condition string, vars map[string]any) (string, error)
}

// AgentFunc adapts a function to the AgentInvoker interface.
type AgentFunc func(ctx context.Context, agentType, prompt string) (string, error)

func (f AgentFunc) Invoke(ctx context.Context, agentType, prompt string) (string, error) {
	return f(ctx, agentType, prompt)
}

// ToolFunc adapts a function to the ToolInvoker interface.
type ToolFunc func(ctx context.Context, command string, args map[string]any) (any, error)

func (f ToolFunc) Invoke(ctx context.Context, command string, args map[string]any) (any, error) {
	return f(ctx, command, args)
}

// ReasonerFunc adapts a function to the Reasoner interface.
type ReasonerFunc func(ctx context.Context, condition string, vars map[string]any) (string, error)

func (f ReasonerFunc) Invoke(ctx context.Context, condition string, vars map[string]any) (string, error) {
	return f(ctx, condition, vars)
}
