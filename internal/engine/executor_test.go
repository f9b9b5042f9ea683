package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/graphflow/internal/capabilities"
	"github.com/rendis/graphflow/pkg/schema"
)

func newEngine(t *testing.T, agents capabilities.AgentInvoker, tools capabilities.ToolInvoker) *TraversalEngine {
	t.Helper()
	nodes := NewNodeExecutor(agents, tools, nil, nil)
	return NewTraversalEngine(nodes, NewExecutionIndex(), EngineConfig{}, nil)
}

func linearWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:   "wf-linear",
		Name: "linear",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "t-1", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "set", "target": "greeting", "value": "hi {{name}}",
			}},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "t-1"},
			{ID: "e-2", Source: "t-1", Target: "end-1"},
		},
	}
}

func TestExecuteLinearRun(t *testing.T) {
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), linearWorkflow(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	assert.NotNil(t, rec.CompletedAt)
	assert.Empty(t, rec.Errors)
	assert.NotEmpty(t, rec.ExecutionID)
	assert.Equal(t, "wf-linear", rec.WorkflowID)

	// Every visited node leaves a patch behind.
	require.Contains(t, rec.NodeResults, "start-1")
	require.Contains(t, rec.NodeResults, "t-1")
	require.Contains(t, rec.NodeResults, "end-1")

	// Start merges the inputs into variables, so the transform can see them.
	final := rec.Outputs["final"].(map[string]any)
	result := final["result"].(map[string]any)
	assert.Equal(t, "hi ada", result["greeting"])
	assert.Equal(t, "ada", result["name"])

	state := rec.Outputs["state"].(map[string]any)
	assert.Equal(t, "hi ada", state["greeting"])

	// The finished run is visible through the index.
	got, ok := eng.Index().Get(rec.ExecutionID)
	require.True(t, ok)
	assert.Equal(t, schema.ExecutionStatusCompleted, got.Status)
}

func TestExecuteNilWorkflow(t *testing.T) {
	eng := newEngine(t, nil, nil)
	_, err := eng.Execute(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestExecuteDecisionBranching(t *testing.T) {
	wf := &schema.Workflow{
		ID:   "wf-branch",
		Name: "branch",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "d-1", Type: schema.NodeTypeDecision, Data: map[string]any{
				"condition": "count > 3",
			}},
			{ID: "t-yes", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "set", "target": "path", "value": "high",
			}},
			{ID: "t-no", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "set", "target": "path", "value": "low",
			}},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "d-1"},
			{ID: "e-2", Source: "d-1", Target: "t-yes", Label: "yes"},
			{ID: "e-3", Source: "d-1", Target: "t-no", Label: "no"},
			{ID: "e-4", Source: "t-yes", Target: "end-1"},
			{ID: "e-5", Source: "t-no", Target: "end-1"},
		},
	}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, map[string]any{"count": float64(5)})
	require.NoError(t, err)
	require.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	state := rec.Outputs["state"].(map[string]any)
	assert.Equal(t, "high", state["path"])
	assert.NotContains(t, rec.NodeResults, "t-no")

	rec, err = eng.Execute(context.Background(), wf, map[string]any{"count": float64(1)})
	require.NoError(t, err)
	state = rec.Outputs["state"].(map[string]any)
	assert.Equal(t, "low", state["path"])
}

func TestExecuteDecisionParseFailureTakesDefault(t *testing.T) {
	wf := &schema.Workflow{
		ID:   "wf-default",
		Name: "default-branch",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "d-1", Type: schema.NodeTypeDecision, Data: map[string]any{
				"condition": "count > banana",
			}},
			{ID: "t-yes", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "set", "target": "path", "value": "yes",
			}},
			{ID: "t-def", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "set", "target": "path", "value": "fallback",
			}},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "d-1"},
			{ID: "e-2", Source: "d-1", Target: "t-yes", Label: "yes"},
			{ID: "e-3", Source: "d-1", Target: "t-def", Label: "default"},
			{ID: "e-4", Source: "t-yes", Target: "end-1"},
			{ID: "e-5", Source: "t-def", Target: "end-1"},
		},
	}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, map[string]any{"count": float64(5)})
	require.NoError(t, err)
	require.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	state := rec.Outputs["state"].(map[string]any)
	assert.Equal(t, "fallback", state["path"])
}

func TestExecuteCapabilityFaultIsNotFatal(t *testing.T) {
	agents := capabilities.AgentFunc(func(context.Context, string, string) (string, error) {
		return "", assert.AnError
	})
	wf := &schema.Workflow{
		ID:   "wf-fault",
		Name: "fault",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "a-1", Type: schema.NodeTypeAgent, Data: map[string]any{"prompt": "go"}},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "a-1"},
			{ID: "e-2", Source: "a-1", Target: "end-1"},
		},
	}
	eng := newEngine(t, agents, nil)

	rec, err := eng.Execute(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	state := rec.Outputs["state"].(map[string]any)
	assert.Contains(t, state, "error")
}

func TestExecuteCycleGuardBreaks(t *testing.T) {
	// t-1 loops back to itself; the revisit breaks the loop and the run
	// completes without reaching an end node.
	wf := &schema.Workflow{
		ID:   "wf-cycle",
		Name: "cycle",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "t-1", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "append", "target": "log", "value": "tick",
			}},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "t-1"},
			{ID: "e-2", Source: "t-1", Target: "t-1"},
		},
	}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	// No end node was reached, so the outputs still carry the inputs shape.
	assert.Contains(t, rec.Outputs, "inputs")
	assert.NotContains(t, rec.Outputs, "final")
	// The transform ran exactly once before the revisit broke the loop.
	assert.Equal(t, []any{"tick"}, rec.NodeResults["t-1"].(map[string]any)["log"])
}

func TestExecuteDecisionLoopHitsIterationCap(t *testing.T) {
	// Decision nodes are exempt from the cycle guard, so a decision looping
	// onto itself runs until the iteration cap and then completes.
	wf := &schema.Workflow{
		ID:   "wf-spin",
		Name: "spin",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "d-1", Type: schema.NodeTypeDecision, Data: map[string]any{
				"condition": "always",
			}},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "d-1"},
			{ID: "e-2", Source: "d-1", Target: "d-1", Label: "yes"},
			{ID: "e-3", Source: "d-1", Target: "d-1", Label: "no"},
		},
	}
	eng := NewTraversalEngine(NewNodeExecutor(nil, nil, nil, nil), nil, EngineConfig{MaxIterations: 10}, nil)

	rec, err := eng.Execute(context.Background(), wf, map[string]any{"always": true})
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	assert.Equal(t, "d-1", rec.CurrentNode)
}

func TestExecuteMissingStartFails(t *testing.T) {
	wf := &schema.Workflow{
		ID:   "wf-nostart",
		Name: "nostart",
		Nodes: []schema.WorkflowNode{
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
	}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusFailed, rec.Status)
	require.NotEmpty(t, rec.Errors)
	assert.Contains(t, rec.Errors[0], "start")
	assert.Empty(t, rec.NodeResults)
}

func TestExecuteDeterministicRunsRepeat(t *testing.T) {
	eng := newEngine(t, nil, nil)
	inputs := map[string]any{"name": "ada"}

	first, err := eng.Execute(context.Background(), linearWorkflow(), inputs)
	require.NoError(t, err)
	second, err := eng.Execute(context.Background(), linearWorkflow(), inputs)
	require.NoError(t, err)

	assert.NotEqual(t, first.ExecutionID, second.ExecutionID)
	assert.Equal(t, first.NodeResults, second.NodeResults)
	assert.Equal(t, first.Outputs["final"], second.Outputs["final"])
}

func TestExecuteDanglingEdgeTargetFails(t *testing.T) {
	wf := &schema.Workflow{
		ID:   "wf-dangling",
		Name: "dangling",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "ghost"},
		},
	}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusFailed, rec.Status)
	require.NotEmpty(t, rec.Errors)
	assert.Contains(t, rec.Errors[0], "start-1")
}

func TestExecuteContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(ctx, linearWorkflow(), nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCancelled, rec.Status)
	assert.NotNil(t, rec.CompletedAt)
}

func TestExecuteCustomOutputKey(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[2].Data = map[string]any{"output_key": "summary"}
	eng := newEngine(t, nil, nil)

	rec, err := eng.Execute(context.Background(), wf, map[string]any{"name": "ada"})
	require.NoError(t, err)
	final := rec.Outputs["final"].(map[string]any)
	assert.Contains(t, final, "summary")
	assert.NotContains(t, final, "result")
}

func TestExecuteToolResultFlowsThroughExtract(t *testing.T) {
	tools := capabilities.ToolFunc(func(_ context.Context, command string, args map[string]any) (any, error) {
		return map[string]any{"status": "ok", "echo": args["q"]}, nil
	})
	wf := &schema.Workflow{
		ID:   "wf-tool",
		Name: "tool-chain",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "tool-1", Type: schema.NodeTypeTool, Data: map[string]any{
				"command": "search",
				"args":    map[string]any{"q": "{{topic}}"},
			}},
			{ID: "x-1", Type: schema.NodeTypeTransform, Data: map[string]any{
				"operation": "extract", "source": "tool_result", "field": "echo", "target": "echoed",
			}},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "tool-1"},
			{ID: "e-2", Source: "tool-1", Target: "x-1"},
			{ID: "e-3", Source: "x-1", Target: "end-1"},
		},
	}
	eng := newEngine(t, nil, tools)

	rec, err := eng.Execute(context.Background(), wf, map[string]any{"topic": "graphs"})
	require.NoError(t, err)
	require.Equal(t, schema.ExecutionStatusCompleted, rec.Status)
	state := rec.Outputs["state"].(map[string]any)
	assert.Equal(t, "graphs", state["echoed"])
}
