package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, WorkflowID(ctx))
	assert.Empty(t, ExecutionID(ctx))
	assert.Empty(t, NodeID(ctx))

	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithExecutionID(ctx, "ex-1")
	ctx = WithNodeID(ctx, "n-1")

	assert.Equal(t, "wf-1", WorkflowID(ctx))
	assert.Equal(t, "ex-1", ExecutionID(ctx))
	assert.Equal(t, "n-1", NodeID(ctx))
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithExecutionID(WithWorkflowID(context.Background(), "wf-1"), "ex-1")
	logger.InfoContext(ctx, "node dispatched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "node dispatched", entry["msg"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
	assert.Equal(t, "ex-1", entry["execution_id"])
	assert.NotContains(t, entry, "node_id")
}

func TestCorrelationHandlerPlainContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("no correlation")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "workflow_id")
	assert.NotContains(t, entry, "execution_id")
}

func TestLogWithOnlyAddsPresentIDs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithNodeID(context.Background(), "n-9")
	LogWith(ctx, base).Info("resolving")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "n-9", entry["node_id"])
	assert.NotContains(t, entry, "workflow_id")
}
