package engine

import (
	"time"

	"github.com/rendis/graphflow/pkg/schema"
)

// ValidTransitions defines the allowed execution status transitions.
// Terminal statuses admit none.
var ValidTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending:   {schema.ExecutionStatusRunning, schema.ExecutionStatusCancelled},
	schema.ExecutionStatusRunning:   {schema.ExecutionStatusCompleted, schema.ExecutionStatusFailed, schema.ExecutionStatusCancelled},
	schema.ExecutionStatusCompleted: {},
	schema.ExecutionStatusFailed:    {},
	schema.ExecutionStatusCancelled: {},
}

// Transition validates and applies a status change on the record, stamping
// CompletedAt when the new status is terminal.
func Transition(rec *schema.ExecutionRecord, to schema.ExecutionStatus) error {
	if !isValidTransition(rec.Status, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid execution transition: %s -> %s", rec.Status, to).
			WithDetails(map[string]any{
				"execution_id": rec.ExecutionID,
				"from":         string(rec.Status),
				"to":           string(to),
			})
	}

	rec.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}
	return nil
}

func isValidTransition(from, to schema.ExecutionStatus) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}
