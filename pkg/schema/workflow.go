package schema

import "time"

// NodeType enumerates the kinds of nodes in a workflow graph.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeAgent     NodeType = "agent"
	NodeTypeTool      NodeType = "tool"
	NodeTypeDecision  NodeType = "decision"
	NodeTypeTransform NodeType = "transform"
	NodeTypeDelay     NodeType = "delay"
)

// Position is layout metadata for visual editors. It has no effect on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowNode is a unit of work in a workflow graph. The data mapping is
// interpreted per node type; unrecognized keys are ignored at dispatch time.
type WorkflowNode struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// WorkflowEdge is a directed connection between two nodes. The optional label
// selects among multiple outgoing edges of a decision node (e.g. "yes", "no",
// "default").
type WorkflowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Workflow is the persisted definition of an automation pipeline.
type Workflow struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []WorkflowNode `json:"nodes"`
	Edges       []WorkflowEdge `json:"edges"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// --- Typed readers over the open node data mapping ---
//
// Node data is authored as free-form JSON; these helpers centralize the
// permissive coercions the executor applies at dispatch time.

// DataString reads a string value from node data, or def when absent or
// not a string.
func (n *WorkflowNode) DataString(key, def string) string {
	if v, ok := n.Data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// DataMap reads a nested mapping from node data, or nil.
func (n *WorkflowNode) DataMap(key string) map[string]any {
	if v, ok := n.Data[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// DataSlice reads a sequence from node data, or nil.
func (n *WorkflowNode) DataSlice(key string) []any {
	if v, ok := n.Data[key]; ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// DataFloat reads a numeric value from node data, or def. JSON numbers
// arrive as float64; integer literals are accepted too.
func (n *WorkflowNode) DataFloat(key string, def float64) float64 {
	if v, ok := n.Data[key]; ok {
		switch x := v.(type) {
		case float64:
			return x
		case int:
			return float64(x)
		case int64:
			return float64(x)
		}
	}
	return def
}

// DataBool reads a boolean value from node data, or def.
func (n *WorkflowNode) DataBool(key string, def bool) bool {
	if v, ok := n.Data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
