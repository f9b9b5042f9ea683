package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/graphflow/internal/store"
	"github.com/rendis/graphflow/pkg/schema"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ws, err := store.NewDirStore(t.TempDir(), nil)
	require.NoError(t, err)
	eng := NewTraversalEngine(NewNodeExecutor(nil, nil, nil, nil), nil, EngineConfig{}, nil)
	return NewService(ws, eng, nil)
}

func TestServiceSaveAndRun(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	saved, err := svc.SaveWorkflow(ctx, linearWorkflow())
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	rec, err := svc.RunWorkflow(ctx, saved.ID, map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, rec.Status)

	// Execution records are queryable afterwards.
	got, ok := svc.Execution(rec.ExecutionID)
	require.True(t, ok)
	assert.Equal(t, saved.ID, got.WorkflowID)
	assert.Len(t, svc.Executions(saved.ID), 1)
	assert.Empty(t, svc.Executions("other-wf"))
}

func TestServiceSaveRejectsInvalidWorkflow(t *testing.T) {
	svc := newTestService(t)

	wf := linearWorkflow()
	wf.Nodes = wf.Nodes[1:] // drop the start node
	_, err := svc.SaveWorkflow(context.Background(), wf)
	require.Error(t, err)
	var ferr *schema.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
}

func TestServiceRunUnknownWorkflow(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RunWorkflow(context.Background(), "ghost", nil)
	require.Error(t, err)
	var ferr *schema.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, schema.ErrCodeNotFound, ferr.Code)
}

func TestServiceDeleteWorkflow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	saved, err := svc.SaveWorkflow(ctx, linearWorkflow())
	require.NoError(t, err)

	deleted, err := svc.DeleteWorkflow(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteWorkflow(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	workflows, err := svc.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)
}
