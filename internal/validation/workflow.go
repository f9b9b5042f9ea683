// Package validation checks workflow documents before they are stored or
// executed: JSON Schema shape validation plus semantic checks the schema
// cannot express.
package validation

import (
	"fmt"

	"github.com/rendis/graphflow/pkg/schema"
)

// ValidationResult accumulates findings from a validation pass. Errors block
// saving and execution; warnings do not.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// AddError records a blocking finding at a document path.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", path, message))
}

// AddWarning records a non-blocking finding at a document path.
func (r *ValidationResult) AddWarning(path, message string) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", path, message))
}

// Valid reports whether the pass found no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err converts the result into a FlowError, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeValidation,
		"workflow validation failed with %d error(s)", len(r.Errors)).
		WithDetails(map[string]any{"errors": r.Errors, "warnings": r.Warnings})
}

var nodeTypes = map[schema.NodeType]bool{
	schema.NodeTypeStart:     true,
	schema.NodeTypeEnd:       true,
	schema.NodeTypeAgent:     true,
	schema.NodeTypeTool:      true,
	schema.NodeTypeDecision:  true,
	schema.NodeTypeTransform: true,
	schema.NodeTypeDelay:     true,
}

// ValidateWorkflow performs semantic analysis on a workflow definition.
// Checks: non-empty name, node ids present and unique, known node types,
// start node presence, edge endpoints resolvable. Missing end nodes and
// unlabeled decision edges are warnings; the engine tolerates both.
func ValidateWorkflow(wf *schema.Workflow) *ValidationResult {
	result := &ValidationResult{}
	if wf == nil {
		result.AddError("/", "workflow is nil")
		return result
	}

	if wf.Name == "" {
		result.AddError("name", "workflow name is required")
	}
	if len(wf.Nodes) == 0 {
		result.AddError("nodes", "workflow has no nodes")
		return result
	}

	nodeIDs := make(map[string]bool, len(wf.Nodes))
	starts, ends := 0, 0
	for i, n := range wf.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			result.AddError(path+".id", "node id is required")
			continue
		}
		if nodeIDs[n.ID] {
			result.AddError(path+".id", fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodeIDs[n.ID] = true

		if !nodeTypes[n.Type] {
			result.AddError(path+".type", fmt.Sprintf("unknown node type %q", n.Type))
		}
		switch n.Type {
		case schema.NodeTypeStart:
			starts++
		case schema.NodeTypeEnd:
			ends++
		}
	}

	if starts == 0 {
		result.AddError("nodes", "workflow must have a start node")
	}
	if starts > 1 {
		result.AddWarning("nodes", "multiple start nodes; the first in declaration order is used")
	}
	if ends == 0 {
		result.AddWarning("nodes", "workflow has no end node; runs complete without final outputs")
	}

	for i, e := range wf.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if e.Source == "" || e.Target == "" {
			result.AddError(path, "edge source and target are required")
			continue
		}
		if !nodeIDs[e.Source] {
			result.AddError(path+".source", fmt.Sprintf("references non-existent node %q", e.Source))
		}
		if !nodeIDs[e.Target] {
			result.AddError(path+".target", fmt.Sprintf("references non-existent node %q", e.Target))
		}
	}

	return result
}
