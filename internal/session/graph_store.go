package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/ports"
)

const graphPrefix = "graphs/"

// savedGraph is the on-disk document of one session's graph
type savedGraph struct {
	SessionID string        `json:"session_id"`
	SavedAt   time.Time     `json:"saved_at"`
	Nodes     []causal.Node `json:"nodes"`
	Edges     []causal.Edge `json:"edges"`
}

// GraphStore keeps saved graphs as JSON documents in a BlobStore. It backs
// the editor when no database is configured.
type GraphStore struct {
	blobs BlobStore
}

var _ ports.GraphRepository = (*GraphStore)(nil)

// NewGraphStore creates a graph store over blobs
func NewGraphStore(blobs BlobStore) *GraphStore {
	return &GraphStore{blobs: blobs}
}

func graphKey(id core.SessionID) string {
	return graphPrefix + id.String() + ".json"
}

// Save writes the graph of a session, replacing any previous save
func (s *GraphStore) Save(ctx context.Context, sessionID core.SessionID, nodes []causal.Node, edges []causal.Edge) error {
	doc := savedGraph{
		SessionID: sessionID.String(),
		SavedAt:   time.Now().UTC(),
		Nodes:     nodes,
		Edges:     edges,
	}
	if doc.Nodes == nil {
		doc.Nodes = []causal.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []causal.Edge{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize graph: %w", err)
	}
	if err := s.blobs.StoreBlob(ctx, graphKey(sessionID), data); err != nil {
		return err
	}
	log.Printf("[GraphStore] Saved graph %s (%d nodes, %d edges, %s)",
		sessionID, len(nodes), len(edges), s.blobs.Provider())
	return nil
}

// Load reads the graph of a session
func (s *GraphStore) Load(ctx context.Context, sessionID core.SessionID) ([]causal.Node, []causal.Edge, error) {
	rc, err := s.blobs.GetBlob(ctx, graphKey(sessionID))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", core.ErrGraphNotFound, sessionID)
		}
		return nil, nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graph: %w", err)
	}
	var doc savedGraph
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode graph %s: %w", sessionID, err)
	}
	return doc.Nodes, doc.Edges, nil
}

// List returns the ids of all saved graphs
func (s *GraphStore) List(ctx context.Context) ([]core.SessionID, error) {
	keys, err := s.blobs.ListBlobs(ctx, graphPrefix)
	if err != nil {
		return nil, err
	}
	var ids []core.SessionID
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, graphPrefix), ".json")
		if id, err := core.ParseSessionID(name); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes a saved graph
func (s *GraphStore) Delete(ctx context.Context, sessionID core.SessionID) error {
	return s.blobs.DeleteBlob(ctx, graphKey(sessionID))
}
