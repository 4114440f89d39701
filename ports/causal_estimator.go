package ports

import (
	"context"

	"gocausal/domain/causal"
)

// ModelParameter describes one tunable parameter of an estimator model.
type ModelParameter struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

// ModelDescriptor is one model the causal service can fit per node.
type ModelDescriptor struct {
	Name       string           `json:"name"`
	Parameters []ModelParameter `json:"parameters,omitempty"`
}

// GraphNode is the wire shape of a node sent to the causal service.
type GraphNode struct {
	ID             string         `json:"id"`
	ModelSelection string         `json:"model,omitempty"`
	ModelParams    map[string]any `json:"modelParams,omitempty"`
}

// GraphEdge is the wire shape of an edge.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphRequest carries the observed subgraph and the node in focus.
type GraphRequest struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Focus string      `json:"focus,omitempty"`
}

// InterventionRequest asks for the effect of intervening on Focus.
type InterventionRequest struct {
	GraphRequest
	IsAtomic    bool   `json:"isAtomic"`
	Alternative string `json:"alternative,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Shift       string `json:"shift,omitempty"`
}

// LatentPair is a confounded pair reported by the latent search.
type LatentPair struct {
	N1          string              `json:"n1"`
	N2          string              `json:"n2"`
	Confounders []causal.Confounder `json:"confounders"`
}

// MessageError is implemented by estimator errors that carry a message
// meant for the user.
type MessageError interface {
	error
	UserMessage() string
}

// CausalEstimator is the remote causal-inference service.
type CausalEstimator interface {
	// ModelList returns the models available for node fitting.
	ModelList(ctx context.Context) ([]ModelDescriptor, error)

	// ModelOptions returns the parameters of one model.
	ModelOptions(ctx context.Context, model string) ([]ModelParameter, error)

	// EstimateIntervention returns the effect of the focus node on each
	// downstream node, keyed by node id.
	EstimateIntervention(ctx context.Context, req InterventionRequest) (map[string]causal.Effect, error)

	// EstimateInfluence returns each node's influence on the focus node.
	EstimateInfluence(ctx context.Context, req GraphRequest) (map[string]float64, error)

	// EstimateEdgeStrength returns weights keyed by target then source.
	EstimateEdgeStrength(ctx context.Context, req GraphRequest) (map[string]map[string]float64, error)

	// EstimateFit scores how well the focus node's model fits the data.
	EstimateFit(ctx context.Context, req GraphRequest) (float64, error)

	// FindLatent searches for hidden confounders.
	FindLatent(ctx context.Context, req GraphRequest) ([]LatentPair, error)
}

// NewGraphRequest builds the wire graph from nodes and edges.
func NewGraphRequest(nodes []causal.Node, edges []causal.Edge, focus string) GraphRequest {
	req := GraphRequest{
		Nodes: make([]GraphNode, len(nodes)),
		Edges: make([]GraphEdge, len(edges)),
		Focus: focus,
	}
	for i, n := range nodes {
		req.Nodes[i] = GraphNode{ID: n.ID, ModelSelection: n.ModelSelection, ModelParams: n.ModelParams}
	}
	for i, e := range edges {
		req.Edges[i] = GraphEdge{Source: e.Source, Target: e.Target}
	}
	return req
}
