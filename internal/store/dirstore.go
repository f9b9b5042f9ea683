package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/graphflow/pkg/schema"
)

// DirStore implements WorkflowStore over a directory of JSON documents, one
// file per workflow named <id>.json. Writes go through a temp file and
// rename so readers never see partial documents.
type DirStore struct {
	dir    string
	logger *slog.Logger
}

// NewDirStore creates the storage directory if needed.
func NewDirStore(dir string, logger *slog.Logger) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirStore{dir: dir, logger: logger}, nil
}

// Save writes the workflow document.
func (s *DirStore) Save(_ context.Context, wf *schema.Workflow) (*schema.Workflow, error) {
	prepareForSave(wf)

	raw, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "marshal workflow %q: %s", wf.ID, err.Error()).WithCause(err)
	}

	path := s.path(wf.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "write workflow %q: %s", wf.ID, err.Error()).WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "write workflow %q: %s", wf.ID, err.Error()).WithCause(err)
	}
	return wf, nil
}

// Get reads one workflow document.
func (s *DirStore) Get(_ context.Context, id string) (*schema.Workflow, error) {
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound("workflow", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read workflow %q: %s", id, err.Error()).WithCause(err)
	}

	var wf schema.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode workflow %q: %s", id, err.Error()).WithCause(err)
	}
	return &wf, nil
}

// List reads every .json document in the directory, skipping entries that
// cannot be read or decoded.
func (s *DirStore) List(_ context.Context) ([]*schema.Workflow, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list workflows: %s", err.Error()).WithCause(err)
	}

	var workflows []*schema.Workflow
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable workflow file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		var wf schema.Workflow
		if err := json.Unmarshal(raw, &wf); err != nil {
			s.logger.Warn("skipping invalid workflow file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		workflows = append(workflows, &wf)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })
	return workflows, nil
}

// Delete removes the workflow document if present.
func (s *DirStore) Delete(_ context.Context, id string) (bool, error) {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeStore, "delete workflow %q: %s", id, err.Error()).WithCause(err)
	}
	return true, nil
}

func (s *DirStore) path(id string) string {
	// Flatten path separators out of ids before touching the filesystem.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
	return filepath.Join(s.dir, safe+".json")
}

var _ WorkflowStore = (*DirStore)(nil)
