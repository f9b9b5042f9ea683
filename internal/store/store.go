// Package store persists workflow definitions. Two implementations: an
// embedded libSQL database and a directory of JSON documents.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/graphflow/pkg/schema"
)

// WorkflowStore is the persistence boundary for workflow definitions.
type WorkflowStore interface {
	// Save persists the workflow. A missing id is assigned, a missing
	// created_at is stamped, and updated_at is always refreshed. The stored
	// workflow is returned.
	Save(ctx context.Context, wf *schema.Workflow) (*schema.Workflow, error)

	// Get returns the workflow with the given id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*schema.Workflow, error)

	// List returns all readable workflows. Unreadable entries are skipped,
	// never fatal.
	List(ctx context.Context) ([]*schema.Workflow, error)

	// Delete removes a workflow and reports whether anything was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// prepareForSave normalizes identity and timestamps before persisting.
func prepareForSave(wf *schema.Workflow) {
	now := time.Now().UTC()
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if wf.CreatedAt == nil {
		created := now
		wf.CreatedAt = &created
	}
	updated := now
	wf.UpdatedAt = &updated
}

func notFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}
