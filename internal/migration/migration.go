package migration

import (
	"context"

	"gocausal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createGraphsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create causal_graphs table")
	}

	if err := r.createNodesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create causal_graph_nodes table")
	}

	if err := r.createEdgesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create causal_graph_edges table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createGraphsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS causal_graphs (
			session_id UUID PRIMARY KEY,
			node_count INTEGER NOT NULL DEFAULT 0,
			edge_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			saved_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createNodesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS causal_graph_nodes (
			session_id UUID NOT NULL REFERENCES causal_graphs(session_id) ON DELETE CASCADE,
			node_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			kind VARCHAR(20) NOT NULL DEFAULT 'observed',
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			data JSONB,
			PRIMARY KEY (session_id, node_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createEdgesTable(ctx context.Context, db *sqlx.DB) error {
	// Parallel edges are allowed, so edges are keyed by list position.
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS causal_graph_edges (
			session_id UUID NOT NULL REFERENCES causal_graphs(session_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			source_port VARCHAR(10) NOT NULL DEFAULT '',
			target_port VARCHAR(10) NOT NULL DEFAULT '',
			weight DOUBLE PRECISION,
			PRIMARY KEY (session_id, position)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_causal_graphs_saved_at ON causal_graphs(saved_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_causal_graph_edges_target ON causal_graph_edges(session_id, target)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}
