package store

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"

	"github.com/rendis/graphflow/pkg/schema"
)

//go:embed migrations/001_initial_schema.sql
var initialSchemaSQL string

// schemaMigrations lists the versioned DDL scripts in apply order.
var schemaMigrations = []struct {
	version int
	name    string
	script  string
}{
	{1, "initial_schema", initialSchemaSQL},
}

// applyMigrations brings the database up to the latest schema version. Each
// pending migration runs in its own transaction and is recorded in
// schema_migrations, so a partially failed script leaves the version
// untouched.
func (s *LibSQLStore) applyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"create schema_migrations: %s", err.Error()).WithCause(err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"read schema version: %s", err.Error()).WithCause(err)
	}

	for _, m := range schemaMigrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m.version, m.name, m.script); err != nil {
			return err
		}
		s.logger.Info("schema migration applied",
			slog.Int("version", m.version),
			slog.String("name", m.name),
		)
	}
	return nil
}

// applyMigration runs one migration script transactionally and records it.
func (s *LibSQLStore) applyMigration(ctx context.Context, version int, name, script string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"begin migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}

	for _, stmt := range sqlStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return schema.NewErrorf(schema.ErrCodeStore,
				"apply migration %d (%s): %s", version, name, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"statement": stmt})
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, version, name); err != nil {
		_ = tx.Rollback()
		return schema.NewErrorf(schema.ErrCodeStore,
			"record migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"commit migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}
	return nil
}

// sqlStatements splits a DDL script on semicolons, dropping chunks that hold
// nothing but whitespace and -- comments.
func sqlStatements(script string) []string {
	var stmts []string
	for _, chunk := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(chunk); stmt != "" && hasSQL(stmt) {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func hasSQL(chunk string) bool {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
