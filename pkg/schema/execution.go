package schema

import "time"

// ExecutionStatus represents the lifecycle state of a single workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// ExecutionRecord is the audit trail of one workflow run. It is created when
// the run starts, mutated only by the owning run, and immutable once it
// reaches a terminal status.
type ExecutionRecord struct {
	ExecutionID string          `json:"execution_id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	CurrentNode string          `json:"current_node,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	// Outputs starts as {"inputs": <invocation payload>} and, when the run
	// passes through an end node, finishes as {"final": <end patch>,
	// "state": <accumulated variables>}.
	Outputs map[string]any `json:"outputs"`

	// NodeResults holds the output patch of every executed node, keyed by
	// node id. A node visited more than once keeps its latest patch.
	NodeResults map[string]any `json:"node_results"`

	// Errors is the ordered list of run-level failures. Per-node capability
	// faults are recorded inside the node patch instead.
	Errors []string `json:"errors"`
}

// Clone returns a deep-enough copy for safe concurrent reads: top-level maps
// and the error slice are copied, nested values are shared (the owning run
// never mutates values in place once stored).
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	cp := *r
	cp.Outputs = copyMap(r.Outputs)
	cp.NodeResults = copyMap(r.NodeResults)
	cp.Errors = append([]string(nil), r.Errors...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
