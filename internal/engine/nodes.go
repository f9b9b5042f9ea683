package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/graphflow/internal/capabilities"
	"github.com/rendis/graphflow/internal/conditions"
	"github.com/rendis/graphflow/internal/expressions"
	"github.com/rendis/graphflow/pkg/schema"
)

// NodeExecutor dispatches a single node to its type-specific behavior.
// Capability faults never escape: they become an "error" key in the node
// patch and the run continues. Only context cancellation is returned as an
// error.
type NodeExecutor struct {
	resolver   *expressions.Resolver
	conditions *conditions.Evaluator
	agents     capabilities.AgentInvoker
	tools      capabilities.ToolInvoker
	exprEngine *expressions.ExprEngine
	jqEngine   *expressions.GoJQEngine
	logger     *slog.Logger
}

// NewNodeExecutor wires a NodeExecutor. agents and tools may be nil; the
// corresponding node types then record an error patch.
func NewNodeExecutor(
	agents capabilities.AgentInvoker,
	tools capabilities.ToolInvoker,
	cond *conditions.Evaluator,
	logger *slog.Logger,
) *NodeExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if cond == nil {
		cond = conditions.NewEvaluator(nil, nil, logger)
	}
	return &NodeExecutor{
		resolver:   expressions.NewResolver(),
		conditions: cond,
		agents:     agents,
		tools:      tools,
		exprEngine: expressions.NewExprEngine(),
		jqEngine:   expressions.NewGoJQEngine(),
		logger:     logger,
	}
}

// Execute runs one node against the current state. It returns the node's
// output patch and, for decision nodes, the branch label to follow. The
// error return is reserved for cancellation; everything else is recovered
// into the patch.
func (ne *NodeExecutor) Execute(ctx context.Context, node *schema.WorkflowNode, state *ExecutionState) (map[string]any, string, error) {
	switch node.Type {
	case schema.NodeTypeStart:
		// Pass the invocation payload through; it lands in variables.
		return state.Inputs, "", nil

	case schema.NodeTypeEnd:
		outputKey := node.DataString("output_key", "result")
		return map[string]any{outputKey: state.SnapshotVariables()}, "", nil

	case schema.NodeTypeAgent:
		return ne.executeAgent(ctx, node, state), "", nil

	case schema.NodeTypeTool:
		return ne.executeTool(ctx, node, state), "", nil

	case schema.NodeTypeDecision:
		patch, branch := ne.conditions.Evaluate(ctx, node, state.Scope())
		return patch, branch, nil

	case schema.NodeTypeTransform:
		return ne.executeTransform(ctx, node, state), "", nil

	case schema.NodeTypeDelay:
		return ne.executeDelay(ctx, node)

	default:
		ne.logger.Warn("unknown node type",
			slog.String("node_id", node.ID),
			slog.String("type", string(node.Type)),
		)
		return map[string]any{}, "", nil
	}
}

// executeAgent resolves the prompt and dispatches by agent type.
func (ne *NodeExecutor) executeAgent(ctx context.Context, node *schema.WorkflowNode, state *ExecutionState) map[string]any {
	agentType := node.DataString("agent_type", "planner")
	prompt := ne.resolver.Resolve(node.DataString("prompt", ""), state.Scope())

	if ne.agents == nil {
		return map[string]any{"error": "no agent invoker configured"}
	}

	response, err := ne.agents.Invoke(ctx, agentType, prompt)
	if err != nil {
		ne.logger.Error("agent invocation failed",
			slog.String("node_id", node.ID),
			slog.String("agent_type", agentType),
			slog.String("error", err.Error()),
		)
		return map[string]any{"error": err.Error()}
	}

	state.Append("user", prompt)
	state.Append("assistant", response)
	return map[string]any{"agent_response": response}
}

// executeTool resolves template references anywhere in the argument
// structure and invokes the command.
func (ne *NodeExecutor) executeTool(ctx context.Context, node *schema.WorkflowNode, state *ExecutionState) map[string]any {
	command := node.DataString("command", "")
	args := node.DataMap("args")

	resolved, _ := ne.resolver.ResolveValue(args, state.Scope()).(map[string]any)

	if ne.tools == nil {
		return map[string]any{"error": "no tool invoker configured"}
	}

	result, err := ne.tools.Invoke(ctx, command, resolved)
	if err != nil {
		ne.logger.Error("tool invocation failed",
			slog.String("node_id", node.ID),
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		return map[string]any{"error": err.Error()}
	}

	return map[string]any{"tool_result": result}
}

// executeTransform applies a data manipulation operation and stores the
// result under the target variable.
func (ne *NodeExecutor) executeTransform(ctx context.Context, node *schema.WorkflowNode, state *ExecutionState) map[string]any {
	operation := node.DataString("operation", "set")
	target := node.DataString("target", "result")
	value := node.Data["value"]
	scope := state.Scope()

	switch operation {
	case "set":
		return map[string]any{target: ne.resolver.Resolve(valueString(value), scope)}

	case "append":
		existing := toList(state.Variables[target])
		existing = append(existing, ne.resolver.Resolve(valueString(value), scope))
		return map[string]any{target: existing}

	case "extract":
		source := node.DataString("source", "")
		field := node.DataString("field", "")
		if m, ok := state.Variables[source].(map[string]any); ok {
			if v, found := m[field]; found {
				return map[string]any{target: v}
			}
			return map[string]any{target: ""}
		}
		return map[string]any{target: ""}

	case "template":
		template := node.DataString("template", "")
		if template == "" {
			template = node.DataString("value", "")
		}
		return map[string]any{target: ne.resolver.Resolve(template, scope)}

	case "concat":
		separator := node.DataString("separator", " ")
		values := node.DataSlice("values")
		parts := make([]string, 0, len(values))
		for _, v := range values {
			parts = append(parts, ne.resolver.Resolve(valueString(v), scope))
		}
		return map[string]any{target: strings.Join(parts, separator)}

	case "compute":
		expression := node.DataString("expression", "")
		out, err := ne.exprEngine.Evaluate(ctx, expression, scope.Env())
		if err != nil {
			ne.logger.Warn("compute transform failed",
				slog.String("node_id", node.ID),
				slog.String("error", err.Error()),
			)
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{target: out}

	case "query":
		expression := node.DataString("expression", "")
		out, err := ne.jqEngine.Evaluate(ctx, expression, scope.Env())
		if err != nil {
			ne.logger.Warn("query transform failed",
				slog.String("node_id", node.ID),
				slog.String("error", err.Error()),
			)
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{target: out}

	default:
		// Unknown operations store the raw value.
		return map[string]any{target: value}
	}
}

// executeDelay sleeps for data.seconds (default 1), aborting when the
// context ends.
func (ne *NodeExecutor) executeDelay(ctx context.Context, node *schema.WorkflowNode) (map[string]any, string, error) {
	seconds := node.DataFloat("seconds", 1)
	duration := time.Duration(seconds * float64(time.Second))

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, "", schema.NewError(schema.ErrCodeCancelled, "delay interrupted").WithNode(node.ID).WithCause(ctx.Err())
	case <-timer.C:
	}

	return map[string]any{"delayed": seconds}, "", nil
}

// valueString renders an arbitrary node data value as a template string.
func valueString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// toList coerces an existing variable into a list for append operations.
// Missing or falsy values (empty string, zero, false, empty containers)
// start a fresh list; truthy scalars are wrapped.
func toList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return []any{}
	case string:
		if x == "" {
			return []any{}
		}
		return []any{x}
	case bool:
		if !x {
			return []any{}
		}
		return []any{x}
	case float64:
		if x == 0 {
			return []any{}
		}
		return []any{x}
	case int:
		if x == 0 {
			return []any{}
		}
		return []any{x}
	case int64:
		if x == 0 {
			return []any{}
		}
		return []any{x}
	case map[string]any:
		if len(x) == 0 {
			return []any{}
		}
		return []any{x}
	default:
		return []any{x}
	}
}
