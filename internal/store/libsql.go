package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/graphflow/pkg/schema"
)

// workflowDefinition is the JSON shape persisted in the definition column:
// the graph without the row-level columns.
type workflowDefinition struct {
	Nodes []schema.WorkflowNode `json:"nodes"`
	Edges []schema.WorkflowEdge `json:"edges"`
}

// LibSQLStore implements WorkflowStore using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string, logger *slog.Logger) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &LibSQLStore{db: db, logger: logger}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return s.applyMigrations(ctx)
}

// Save upserts a workflow definition.
func (s *LibSQLStore) Save(ctx context.Context, wf *schema.Workflow) (*schema.Workflow, error) {
	prepareForSave(wf)

	def, err := json.Marshal(workflowDefinition{Nodes: wf.Nodes, Edges: wf.Edges})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "marshal definition: %s", err.Error()).WithCause(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, description=excluded.description,
		   definition=excluded.definition, updated_at=excluded.updated_at`,
		wf.ID, wf.Name, nullStr(wf.Description), string(def), *wf.CreatedAt, *wf.UpdatedAt,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "save workflow %q: %s", wf.ID, err.Error()).WithCause(err)
	}
	return wf, nil
}

// Get returns the workflow with the given id.
func (s *LibSQLStore) Get(ctx context.Context, id string) (*schema.Workflow, error) {
	var (
		wf          schema.Workflow
		description sql.NullString
		defJSON     string
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, created_at, updated_at
		 FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.Name, &description, &defJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("workflow", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get workflow %q: %s", id, err.Error()).WithCause(err)
	}

	wf.Description = description.String
	var def workflowDefinition
	if err := json.Unmarshal([]byte(defJSON), &def); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "unmarshal definition of %q: %s", id, err.Error()).WithCause(err)
	}
	wf.Nodes = def.Nodes
	wf.Edges = def.Edges
	wf.CreatedAt = &createdAt
	wf.UpdatedAt = &updatedAt
	return &wf, nil
}

// List returns all workflows ordered by creation time. Rows whose definition
// fails to decode are skipped with a warning.
func (s *LibSQLStore) List(ctx context.Context) ([]*schema.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, definition, created_at, updated_at
		 FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list workflows: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var workflows []*schema.Workflow
	for rows.Next() {
		var (
			wf          schema.Workflow
			description sql.NullString
			defJSON     string
			createdAt   time.Time
			updatedAt   time.Time
		)
		if err := rows.Scan(&wf.ID, &wf.Name, &description, &defJSON, &createdAt, &updatedAt); err != nil {
			s.logger.Warn("skipping unreadable workflow row", slog.String("error", err.Error()))
			continue
		}
		var def workflowDefinition
		if err := json.Unmarshal([]byte(defJSON), &def); err != nil {
			s.logger.Warn("skipping workflow with invalid definition",
				slog.String("id", wf.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		wf.Description = description.String
		wf.Nodes = def.Nodes
		wf.Edges = def.Edges
		wf.CreatedAt = &createdAt
		wf.UpdatedAt = &updatedAt
		workflows = append(workflows, &wf)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list workflows: %s", err.Error()).WithCause(err)
	}
	return workflows, nil
}

// Delete removes a workflow and reports whether a row was deleted.
func (s *LibSQLStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeStore, "delete workflow %q: %s", id, err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ WorkflowStore = (*LibSQLStore)(nil)
