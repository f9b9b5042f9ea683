// Package graph provides an indexed view over a workflow definition for
// constant-time node lookup and ordered edge traversal.
package graph

import (
	"strings"

	"github.com/rendis/graphflow/pkg/schema"
)

// Index is an immutable lookup structure built once per execution from a
// workflow definition. Outgoing edges preserve declaration order, which makes
// default branch selection deterministic.
type Index struct {
	nodes    map[string]*schema.WorkflowNode
	outgoing map[string][]schema.WorkflowEdge
	order    []string
}

// NewIndex builds an Index from a workflow. Duplicate node ids keep the first
// occurrence; Validate reports them.
func NewIndex(wf *schema.Workflow) *Index {
	idx := &Index{
		nodes:    make(map[string]*schema.WorkflowNode, len(wf.Nodes)),
		outgoing: make(map[string][]schema.WorkflowEdge, len(wf.Edges)),
		order:    make([]string, 0, len(wf.Nodes)),
	}

	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if _, exists := idx.nodes[n.ID]; exists {
			continue
		}
		idx.nodes[n.ID] = n
		idx.order = append(idx.order, n.ID)
	}

	for _, e := range wf.Edges {
		idx.outgoing[e.Source] = append(idx.outgoing[e.Source], e)
	}

	return idx
}

// Node returns the node with the given id, or nil.
func (idx *Index) Node(id string) *schema.WorkflowNode {
	return idx.nodes[id]
}

// Outgoing returns the outgoing edges of a node in declaration order.
func (idx *Index) Outgoing(id string) []schema.WorkflowEdge {
	return idx.outgoing[id]
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.nodes)
}

// FindStart returns the first node of type start in declaration order, or an
// error when the workflow has none. Extra start nodes are tolerated; the
// first one wins.
func (idx *Index) FindStart() (*schema.WorkflowNode, error) {
	for _, id := range idx.order {
		if idx.nodes[id].Type == schema.NodeTypeStart {
			return idx.nodes[id], nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no start node")
}

// NextNode selects the successor of a node given a branch label.
// Selection order: the first outgoing edge whose label matches the branch
// (case-insensitive), then the first edge labeled "default", then the first
// outgoing edge. Returns nil when the node has no outgoing edges.
func (idx *Index) NextNode(nodeID, branch string) *schema.WorkflowNode {
	edges := idx.outgoing[nodeID]
	if len(edges) == 0 {
		return nil
	}

	want := strings.ToLower(branch)
	for _, e := range edges {
		if strings.ToLower(e.Label) == want && e.Label != "" {
			return idx.nodes[e.Target]
		}
	}
	for _, e := range edges {
		if strings.ToLower(e.Label) == "default" {
			return idx.nodes[e.Target]
		}
	}
	return idx.nodes[edges[0].Target]
}
