package engine

import (
	"sort"
	"sync"

	"github.com/rendis/graphflow/pkg/schema"
)

// ExecutionIndex is the in-memory registry of execution records, keyed by
// execution id. Writes store snapshots and reads return snapshots, so the
// running engine and concurrent readers never share mutable state.
//
// Records are never evicted; a long-lived process accumulates one entry per
// run.
type ExecutionIndex struct {
	mu   sync.RWMutex
	byID map[string]*schema.ExecutionRecord
}

// NewExecutionIndex creates an empty index.
func NewExecutionIndex() *ExecutionIndex {
	return &ExecutionIndex{
		byID: make(map[string]*schema.ExecutionRecord),
	}
}

// Put stores a snapshot of the record, replacing any previous snapshot for
// the same execution id.
func (ix *ExecutionIndex) Put(rec *schema.ExecutionRecord) {
	if rec == nil || rec.ExecutionID == "" {
		return
	}
	snapshot := rec.Clone()

	ix.mu.Lock()
	ix.byID[rec.ExecutionID] = snapshot
	ix.mu.Unlock()
}

// Get returns a snapshot of the record with the given execution id.
func (ix *ExecutionIndex) Get(executionID string) (*schema.ExecutionRecord, bool) {
	ix.mu.RLock()
	rec, ok := ix.byID[executionID]
	ix.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List returns snapshots of all records, ordered by start time then
// execution id for determinism.
func (ix *ExecutionIndex) List() []*schema.ExecutionRecord {
	return ix.ListByWorkflow("")
}

// ListByWorkflow returns snapshots of the records for one workflow, or all
// records when workflowID is empty.
func (ix *ExecutionIndex) ListByWorkflow(workflowID string) []*schema.ExecutionRecord {
	ix.mu.RLock()
	records := make([]*schema.ExecutionRecord, 0, len(ix.byID))
	for _, rec := range ix.byID {
		if workflowID != "" && rec.WorkflowID != workflowID {
			continue
		}
		records = append(records, rec.Clone())
	}
	ix.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].ExecutionID < records[j].ExecutionID
	})
	return records
}

// Len returns the number of indexed records.
func (ix *ExecutionIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}
