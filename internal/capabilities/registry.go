package capabilities

import (
	"context"
	"sort"
	"sync"

	"github.com/rendis/graphflow/pkg/schema"
)

// GenericAgentType is the fallback key for agent dispatch: an agent type
// without a dedicated invoker routes to the invoker registered under it.
const GenericAgentType = "generic"

// AgentRegistry is a thread-safe dispatch table from agent type to invoker.
// It implements AgentInvoker itself, routing by agent type and falling back
// to the generic invoker for unknown types.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]AgentInvoker
}

// NewAgentRegistry creates an empty AgentRegistry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]AgentInvoker),
	}
}

// Register adds an invoker for an agent type. Returns error on duplicates.
func (r *AgentRegistry) Register(agentType string, inv AgentInvoker) error {
	if inv == nil {
		return schema.NewError(schema.ErrCodeValidation, "agent invoker is nil")
	}
	if agentType == "" {
		return schema.NewError(schema.ErrCodeValidation, "agent type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentType]; exists {
		return schema.NewErrorf(schema.ErrCodeValidation, "agent type %q already registered", agentType)
	}

	r.agents[agentType] = inv
	return nil
}

// Invoke dispatches to the invoker registered for agentType, falling back to
// the generic invoker.
func (r *AgentRegistry) Invoke(ctx context.Context, agentType, prompt string) (string, error) {
	r.mu.RLock()
	inv, ok := r.agents[agentType]
	if !ok {
		inv, ok = r.agents[GenericAgentType]
	}
	r.mu.RUnlock()

	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeAgent,
			"no invoker registered for agent type %q and no generic fallback", agentType)
	}
	return inv.Invoke(ctx, agentType, prompt)
}

// Has checks whether an agent type has a dedicated invoker.
func (r *AgentRegistry) Has(agentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentType]
	return ok
}

// Types returns the registered agent types, sorted.
func (r *AgentRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.agents))
	for t := range r.agents {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var _ AgentInvoker = (*AgentRegistry)(nil)

// ToolRegistry is a thread-safe dispatch table from command name to tool
// invoker. It implements ToolInvoker itself.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolInvoker
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]ToolInvoker),
	}
}

// Register adds an invoker for a command. Returns error on duplicates.
func (r *ToolRegistry) Register(command string, inv ToolInvoker) error {
	if inv == nil {
		return schema.NewError(schema.ErrCodeValidation, "tool invoker is nil")
	}
	if command == "" {
		return schema.NewError(schema.ErrCodeValidation, "tool command is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[command]; exists {
		return schema.NewErrorf(schema.ErrCodeValidation, "tool %q already registered", command)
	}

	r.tools[command] = inv
	return nil
}

// Invoke dispatches to the invoker registered for command.
func (r *ToolRegistry) Invoke(ctx context.Context, command string, args map[string]any) (any, error) {
	r.mu.RLock()
	inv, ok := r.tools[command]
	r.mu.RUnlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeTool, "tool %q not registered", command)
	}
	return inv.Invoke(ctx, command, args)
}

// Has checks whether a command is registered.
func (r *ToolRegistry) Has(command string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (r *ToolRegistry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]string, 0, len(r.tools))
	for c := range r.tools {
		commands = append(commands, c)
	}
	sort.Strings(commands)
	return commands
}

var _ ToolInvoker = (*ToolRegistry)(nil)
