package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/graphflow/internal/graph"
	"github.com/rendis/graphflow/internal/logging"
	"github.com/rendis/graphflow/pkg/schema"
)

// DefaultMaxIterations caps the traversal loop to keep cyclic graphs from
// running forever.
const DefaultMaxIterations = 100

// EngineConfig holds configuration for the traversal engine.
type EngineConfig struct {
	MaxIterations int
}

// TraversalEngine walks a workflow graph node by node, threading the
// execution state through each dispatch. One engine instance serves
// concurrent runs; all per-run state lives in locals.
type TraversalEngine struct {
	nodes  *NodeExecutor
	index  *ExecutionIndex
	config EngineConfig
	logger *slog.Logger
}

// NewTraversalEngine creates a TraversalEngine publishing run records to the
// given index.
func NewTraversalEngine(nodes *NodeExecutor, index *ExecutionIndex, cfg EngineConfig, logger *slog.Logger) *TraversalEngine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = NewExecutionIndex()
	}
	return &TraversalEngine{
		nodes:  nodes,
		index:  index,
		config: cfg,
		logger: logger,
	}
}

// Index returns the execution index the engine publishes to.
func (e *TraversalEngine) Index() *ExecutionIndex {
	return e.index
}

// Execute runs a workflow against the given inputs and returns the completed
// record. The run outcome is carried in the record's status: structural
// faults (missing start node, dangling edge target) mark it failed,
// cancellation marks it cancelled, everything else completes. The error
// return is reserved for a nil workflow.
func (e *TraversalEngine) Execute(ctx context.Context, wf *schema.Workflow, inputs map[string]any) (*schema.ExecutionRecord, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	rec := &schema.ExecutionRecord{
		ExecutionID: uuid.NewString(),
		WorkflowID:  wf.ID,
		Status:      schema.ExecutionStatusPending,
		StartedAt:   time.Now().UTC(),
		Outputs:     map[string]any{"inputs": inputs},
		NodeResults: map[string]any{},
		Errors:      []string{},
	}

	ctx = logging.WithWorkflowID(ctx, wf.ID)
	ctx = logging.WithExecutionID(ctx, rec.ExecutionID)
	log := logging.LogWith(ctx, e.logger)

	_ = Transition(rec, schema.ExecutionStatusRunning)
	e.index.Put(rec)

	gidx := graph.NewIndex(wf)
	start, err := gidx.FindStart()
	if err != nil {
		return e.fail(rec, err, log), nil
	}

	state := NewExecutionState(inputs)
	visited := make(map[string]bool, gidx.Len())

	current := start
	for iteration := 0; current != nil && iteration < e.config.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return e.cancel(rec, ctx.Err(), log), nil
		default:
		}

		if visited[current.ID] && current.Type != schema.NodeTypeDecision {
			log.Warn("cycle detected, breaking", slog.String("node_id", current.ID))
			break
		}
		visited[current.ID] = true

		rec.CurrentNode = current.ID
		log.Info("executing node",
			slog.String("node_id", current.ID),
			slog.String("type", string(current.Type)),
		)

		patch, branch, err := e.nodes.Execute(ctx, current, state)
		if err != nil {
			return e.cancel(rec, err, log), nil
		}

		rec.NodeResults[current.ID] = patch
		state.Merge(patch)

		if current.Type == schema.NodeTypeEnd {
			rec.Outputs = map[string]any{
				"final": patch,
				"state": state.Variables,
			}
			break
		}

		next := gidx.NextNode(current.ID, branch)
		if next == nil && len(gidx.Outgoing(current.ID)) > 0 {
			return e.fail(rec, schema.NewErrorf(schema.ErrCodeNodeLookup,
				"edge target not found leaving node %q", current.ID).WithNode(current.ID), log), nil
		}
		current = next
		e.index.Put(rec)
	}

	_ = Transition(rec, schema.ExecutionStatusCompleted)
	e.index.Put(rec)
	log.Info("execution finished", slog.String("status", string(rec.Status)))
	return rec, nil
}

// fail marks the record failed with the given cause.
func (e *TraversalEngine) fail(rec *schema.ExecutionRecord, cause error, log *slog.Logger) *schema.ExecutionRecord {
	rec.Errors = append(rec.Errors, cause.Error())
	_ = Transition(rec, schema.ExecutionStatusFailed)
	e.index.Put(rec)
	log.Error("execution failed", slog.String("error", cause.Error()))
	return rec
}

// cancel marks the record cancelled.
func (e *TraversalEngine) cancel(rec *schema.ExecutionRecord, cause error, log *slog.Logger) *schema.ExecutionRecord {
	if cause != nil {
		rec.Errors = append(rec.Errors, cause.Error())
	}
	_ = Transition(rec, schema.ExecutionStatusCancelled)
	e.index.Put(rec)
	log.Info("execution cancelled")
	return rec
}
