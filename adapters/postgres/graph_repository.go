package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
	apperrors "gocausal/internal/errors"
	"gocausal/ports"
)

// GraphRepositoryImpl stores editor graphs in PostgreSQL. Each save replaces
// the session's nodes and edges inside one transaction.
type GraphRepositoryImpl struct {
	db *sqlx.DB
}

// NewGraphRepository creates a new PostgreSQL graph repository
func NewGraphRepository(db *sqlx.DB) ports.GraphRepository {
	return &GraphRepositoryImpl{db: db}
}

type nodeRow struct {
	NodeID   string  `db:"node_id"`
	Kind     string  `db:"kind"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	Data     []byte  `db:"data"`
	Position int     `db:"position"`
}

type edgeRow struct {
	Source     string          `db:"source"`
	Target     string          `db:"target"`
	SourcePort string          `db:"source_port"`
	TargetPort string          `db:"target_port"`
	Weight     sql.NullFloat64 `db:"weight"`
	Position   int             `db:"position"`
}

// Save replaces the stored graph of a session
func (r *GraphRepositoryImpl) Save(ctx context.Context, sessionID core.SessionID, nodes []causal.Node, edges []causal.Edge) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.DatabaseError("begin graph save", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO causal_graphs (session_id, node_count, edge_count, saved_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET node_count = EXCLUDED.node_count, edge_count = EXCLUDED.edge_count, saved_at = NOW()
	`, sessionID.String(), len(nodes), len(edges)); err != nil {
		return apperrors.DatabaseError("upsert graph", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM causal_graph_nodes WHERE session_id = $1`, sessionID.String()); err != nil {
		return apperrors.DatabaseError("clear nodes", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM causal_graph_edges WHERE session_id = $1`, sessionID.String()); err != nil {
		return apperrors.DatabaseError("clear edges", err)
	}

	for i, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal node %s: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO causal_graph_nodes (session_id, node_id, position, kind, x, y, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sessionID.String(), n.ID, i, string(n.Kind), n.Position.X, n.Position.Y, data); err != nil {
			return apperrors.DatabaseError(fmt.Sprintf("insert node %s", n.ID), err)
		}
	}

	for i, e := range edges {
		var weight sql.NullFloat64
		if e.Weight != nil {
			weight = sql.NullFloat64{Float64: *e.Weight, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO causal_graph_edges (session_id, position, source, target, source_port, target_port, weight)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sessionID.String(), i, e.Source, e.Target, string(e.SourcePort), string(e.TargetPort), weight); err != nil {
			return apperrors.DatabaseError(fmt.Sprintf("insert edge %s->%s", e.Source, e.Target), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.DatabaseError("commit graph save", err)
	}
	log.Printf("[GraphRepository] Saved graph %s (%d nodes, %d edges)", sessionID, len(nodes), len(edges))
	return nil
}

// Load returns the stored graph of a session
func (r *GraphRepositoryImpl) Load(ctx context.Context, sessionID core.SessionID) ([]causal.Node, []causal.Edge, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM causal_graphs WHERE session_id = $1)`, sessionID.String()); err != nil {
		return nil, nil, apperrors.DatabaseError("look up graph", err)
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrGraphNotFound, sessionID)
	}

	var nodeRows []nodeRow
	if err := r.db.SelectContext(ctx, &nodeRows, `
		SELECT node_id, kind, x, y, data, position
		FROM causal_graph_nodes
		WHERE session_id = $1
		ORDER BY position
	`, sessionID.String()); err != nil {
		return nil, nil, apperrors.DatabaseError("load nodes", err)
	}

	var edgeRows []edgeRow
	if err := r.db.SelectContext(ctx, &edgeRows, `
		SELECT source, target, source_port, target_port, weight, position
		FROM causal_graph_edges
		WHERE session_id = $1
		ORDER BY position
	`, sessionID.String()); err != nil {
		return nil, nil, apperrors.DatabaseError("load edges", err)
	}

	nodes := make([]causal.Node, 0, len(nodeRows))
	for _, row := range nodeRows {
		var n causal.Node
		if len(row.Data) > 0 {
			if err := json.Unmarshal(row.Data, &n); err != nil {
				return nil, nil, fmt.Errorf("decode node %s: %w", row.NodeID, err)
			}
		}
		n.ID = row.NodeID
		n.Kind = causal.NodeKind(row.Kind)
		n.Position = geometry.Point{X: row.X, Y: row.Y}
		nodes = append(nodes, n)
	}

	edges := make([]causal.Edge, 0, len(edgeRows))
	for _, row := range edgeRows {
		e := causal.Edge{
			Source:     row.Source,
			Target:     row.Target,
			SourcePort: geometry.Side(row.SourcePort),
			TargetPort: geometry.Side(row.TargetPort),
		}
		if row.Weight.Valid {
			w := row.Weight.Float64
			e.Weight = &w
		}
		edges = append(edges, e)
	}
	return nodes, edges, nil
}
