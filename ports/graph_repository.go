package ports

import (
	"context"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// GraphRepository persists the graph of an editor session.
type GraphRepository interface {
	// Save replaces the stored graph of a session.
	Save(ctx context.Context, sessionID core.SessionID, nodes []causal.Node, edges []causal.Edge) error

	// Load returns a stored graph, or core.ErrGraphNotFound.
	Load(ctx context.Context, sessionID core.SessionID) ([]causal.Node, []causal.Edge, error)
}
