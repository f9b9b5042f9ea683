package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/graphflow/pkg/schema"
)

func validWorkflow() *schema.Workflow {
	return &schema.Workflow{
		Name: "triage",
		Nodes: []schema.WorkflowNode{
			{ID: "start-1", Type: schema.NodeTypeStart},
			{ID: "end-1", Type: schema.NodeTypeEnd},
		},
		Edges: []schema.WorkflowEdge{
			{ID: "e-1", Source: "start-1", Target: "end-1"},
		},
	}
}

func TestValidateWorkflowOK(t *testing.T) {
	result := ValidateWorkflow(validWorkflow())
	assert.True(t, result.Valid())
	assert.NoError(t, result.Err())
}

func TestValidateWorkflowMissingName(t *testing.T) {
	wf := validWorkflow()
	wf.Name = ""
	result := ValidateWorkflow(wf)
	assert.False(t, result.Valid())
}

func TestValidateWorkflowMissingStart(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = wf.Nodes[1:]
	wf.Edges = nil
	result := ValidateWorkflow(wf)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0], "start node")
}

func TestValidateWorkflowDuplicateNodeIDs(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes, schema.WorkflowNode{ID: "start-1", Type: schema.NodeTypeAgent})
	result := ValidateWorkflow(wf)
	assert.False(t, result.Valid())
}

func TestValidateWorkflowDanglingEdge(t *testing.T) {
	wf := validWorkflow()
	wf.Edges = append(wf.Edges, schema.WorkflowEdge{ID: "e-2", Source: "start-1", Target: "ghost"})
	result := ValidateWorkflow(wf)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0], "ghost")
}

func TestValidateWorkflowUnknownNodeType(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes, schema.WorkflowNode{ID: "x", Type: "teleport"})
	result := ValidateWorkflow(wf)
	assert.False(t, result.Valid())
}

func TestValidateWorkflowWarnings(t *testing.T) {
	wf := &schema.Workflow{
		Name: "loop",
		Nodes: []schema.WorkflowNode{
			{ID: "s1", Type: schema.NodeTypeStart},
			{ID: "s2", Type: schema.NodeTypeStart},
		},
	}
	result := ValidateWorkflow(wf)
	assert.True(t, result.Valid())
	// Multiple starts and no end node both warn.
	assert.Len(t, result.Warnings, 2)
}

func TestJSONSchemaValidatorAcceptsValidDocument(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := []byte(`{
		"name": "triage",
		"nodes": [
			{"id": "start-1", "type": "start", "position": {"x": 0, "y": 0}},
			{"id": "end-1", "type": "end", "data": {"output_key": "result"}}
		],
		"edges": [
			{"id": "e-1", "source": "start-1", "target": "end-1", "label": "default"}
		]
	}`)
	assert.NoError(t, v.ValidateDocument(doc))
}

func TestJSONSchemaValidatorRejectsMissingNodeID(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := []byte(`{
		"name": "broken",
		"nodes": [{"type": "start"}],
		"edges": []
	}`)
	err = v.ValidateDocument(doc)
	require.Error(t, err)
	var ferr *schema.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
}

func TestJSONSchemaValidatorRejectsUnknownNodeType(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := []byte(`{
		"name": "broken",
		"nodes": [{"id": "n1", "type": "teleport"}],
		"edges": []
	}`)
	require.Error(t, v.ValidateDocument(doc))
}

func TestJSONSchemaValidatorRejectsNonJSON(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	require.Error(t, v.ValidateDocument([]byte("{nope")))
}
