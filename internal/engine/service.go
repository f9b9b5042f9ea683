package engine

import (
	"context"
	"log/slog"

	"github.com/rendis/graphflow/internal/store"
	"github.com/rendis/graphflow/internal/validation"
	"github.com/rendis/graphflow/pkg/schema"
)

// Service ties the workflow store, the traversal engine, and the execution
// index into the surface the scheduler and CLI use.
type Service struct {
	store  store.WorkflowStore
	engine *TraversalEngine
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(ws store.WorkflowStore, engine *TraversalEngine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: ws, engine: engine, logger: logger}
}

// SaveWorkflow validates and persists a workflow definition.
func (s *Service) SaveWorkflow(ctx context.Context, wf *schema.Workflow) (*schema.Workflow, error) {
	if err := validation.ValidateWorkflow(wf).Err(); err != nil {
		return nil, err
	}
	return s.store.Save(ctx, wf)
}

// GetWorkflow returns a stored workflow definition.
func (s *Service) GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error) {
	return s.store.Get(ctx, id)
}

// ListWorkflows returns all stored workflow definitions.
func (s *Service) ListWorkflows(ctx context.Context) ([]*schema.Workflow, error) {
	return s.store.List(ctx)
}

// DeleteWorkflow removes a stored workflow definition.
func (s *Service) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// RunWorkflow loads a stored workflow, validates it, and executes it against
// the inputs.
func (s *Service) RunWorkflow(ctx context.Context, workflowID string, inputs map[string]any) (*schema.ExecutionRecord, error) {
	wf, err := s.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateWorkflow(wf).Err(); err != nil {
		return nil, err
	}
	return s.engine.Execute(ctx, wf, inputs)
}

// Execution returns a snapshot of one execution record.
func (s *Service) Execution(executionID string) (*schema.ExecutionRecord, bool) {
	return s.engine.Index().Get(executionID)
}

// Executions returns snapshots of execution records, optionally filtered by
// workflow id.
func (s *Service) Executions(workflowID string) []*schema.ExecutionRecord {
	return s.engine.Index().ListByWorkflow(workflowID)
}
