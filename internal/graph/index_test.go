package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/graphflow/pkg/schema"
)

func buildWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID: "wf",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "d-1", Type: schema.NodeTypeDecision},
			{ID: "a", Type: schema.NodeTypeAgent},
			{ID: "b", Type: schema.NodeTypeAgent},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e1", Source: "start-1", Target: "d-1"},
			{ID: "e2", Source: "d-1", Target: "a", Label: "yes"},
			{ID: "e3", Source: "d-1", Target: "b", Label: "default"},
			{ID: "e4", Source: "a", Target: "end-1"},
			{ID: "e5", Source: "b", Target: "end-1"},
		},
	}
}

func TestNodeLookup(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	require.NotNil(t, idx.Node("d-1"))
	assert.Equal(t, schema.NodeTypeDecision, idx.Node("d-1").Type)
	assert.Nil(t, idx.Node("missing"))
	assert.Equal(t, 5, idx.Len())
}

func TestOutgoingPreservesDeclarationOrder(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	edges := idx.Outgoing("d-1")
	require.Len(t, edges, 2)
	assert.Equal(t, "e2", edges[0].ID)
	assert.Equal(t, "e3", edges[1].ID)
	assert.Empty(t, idx.Outgoing("end-1"))
}

func TestFindStart(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	start, err := idx.FindStart()
	require.NoError(t, err)
	assert.Equal(t, "start-1", start.ID)
}

func TestFindStartMissing(t *testing.T) {
	idx := NewIndex(&schema.Workflow{
		Nodes: []schema.WorkflowNode{{ID: "end-1", Type: schema.NodeTypeEnd}},
	})

	_, err := idx.FindStart()
	require.Error(t, err)
	var ferr *schema.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
}

func TestFindStartDuplicateStartsFirstWins(t *testing.T) {
	idx := NewIndex(&schema.Workflow{
		Nodes: []schema.WorkflowNode{
			{ID: "s2", Type: schema.NodeTypeStart},
			{ID: "s1", Type: schema.NodeTypeStart},
		},
	})

	start, err := idx.FindStart()
	require.NoError(t, err)
	assert.Equal(t, "s2", start.ID)
}

func TestNextNodeLabelMatch(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	next := idx.NextNode("d-1", "yes")
	require.NotNil(t, next)
	assert.Equal(t, "a", next.ID)

	// Case-insensitive.
	next = idx.NextNode("d-1", "YES")
	require.NotNil(t, next)
	assert.Equal(t, "a", next.ID)
}

func TestNextNodeFallsBackToDefaultEdge(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	next := idx.NextNode("d-1", "no-such-label")
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)
}

func TestNextNodeFallsBackToFirstEdge(t *testing.T) {
	wf := buildWorkflow()
	// Drop the default edge; unmatched branches should take the first edge.
	wf.Edges = []schema.WorkflowEdge{
		{ID: "e2", Source: "d-1", Target: "a", Label: "yes"},
		{ID: "e3", Source: "d-1", Target: "b", Label: "no"},
	}
	idx := NewIndex(wf)

	next := idx.NextNode("d-1", "maybe")
	require.NotNil(t, next)
	assert.Equal(t, "a", next.ID)
}

func TestNextNodeNoEdges(t *testing.T) {
	idx := NewIndex(buildWorkflow())
	assert.Nil(t, idx.NextNode("end-1", ""))
}

func TestNextNodeEmptyBranchIgnoresLabels(t *testing.T) {
	idx := NewIndex(buildWorkflow())

	// Plain traversal from a non-decision node takes the only edge.
	next := idx.NextNode("start-1", "")
	require.NotNil(t, next)
	assert.Equal(t, "d-1", next.ID)
}

func TestNewIndexDuplicateNodeIDsKeepFirst(t *testing.T) {
	idx := NewIndex(&schema.Workflow{
		Nodes: []schema.WorkflowNode{
			{ID: "n", Type: schema.NodeTypeStart},
			{ID: "n", Type: schema.NodeTypeEnd},
		},
	})

	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, schema.NodeTypeStart, idx.Node("n").Type)
}
