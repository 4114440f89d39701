// Package causal defines the causal graph held by the editor: attribute nodes,
// directed edges between them and the per-node annotations returned by the
// causal-inference service.
package causal

import (
	"gocausal/domain/geometry"
)

// NodeKind distinguishes dataset attributes from discovered confounders.
type NodeKind string

const (
	KindObserved NodeKind = "observed"
	KindLatent   NodeKind = "latent"
)

// TreatmentKind selects how an intervention on a node is specified.
type TreatmentKind string

const (
	// TreatmentUnset is the placeholder shown until the user picks one.
	TreatmentUnset TreatmentKind = ""
	// TreatmentAtomic sets the node to Alternative and compares against Reference.
	TreatmentAtomic TreatmentKind = "atomic"
	// TreatmentShift shifts the node's observed values by the Shift expression.
	TreatmentShift TreatmentKind = "shift"
)

// Confounder is a candidate real attribute a latent node may stand for.
type Confounder struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Effect is an average treatment effect with its confidence interval.
type Effect struct {
	Value              float64    `json:"value"`
	ConfidenceInterval [2]float64 `json:"confidence_interval"`
}

// Node is one attribute placed on the canvas. ID is the attribute name, or a
// generated id for latent nodes. Position is the node centre.
type Node struct {
	ID       string         `json:"id"`
	Position geometry.Point `json:"position"`
	Kind     NodeKind       `json:"kind"`
	Payload  []Confounder   `json:"payload,omitempty"`
	InCycle  bool           `json:"in_cycle"`

	Treatment      TreatmentKind      `json:"treatment"`
	Alternative    string             `json:"alternative"`
	Reference      string             `json:"reference"`
	Shift          string             `json:"shift"`
	ATE            map[string]Effect  `json:"ate,omitempty"`
	Influence      map[string]float64 `json:"influence,omitempty"`
	FitScore       *float64           `json:"fit_score,omitempty"`
	ModelSelection string             `json:"model_selection,omitempty"`
	ModelParams    map[string]any     `json:"model_params,omitempty"`
}

// Observed reports whether the node is a real dataset attribute.
func (n Node) Observed() bool { return n.Kind != KindLatent }

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	if n.Payload != nil {
		out.Payload = append([]Confounder(nil), n.Payload...)
	}
	if n.ATE != nil {
		out.ATE = make(map[string]Effect, len(n.ATE))
		for k, v := range n.ATE {
			out.ATE[k] = v
		}
	}
	if n.Influence != nil {
		out.Influence = make(map[string]float64, len(n.Influence))
		for k, v := range n.Influence {
			out.Influence[k] = v
		}
	}
	if n.FitScore != nil {
		v := *n.FitScore
		out.FitScore = &v
	}
	if n.ModelParams != nil {
		out.ModelParams = make(map[string]any, len(n.ModelParams))
		for k, v := range n.ModelParams {
			out.ModelParams[k] = v
		}
	}
	return out
}

// Edge is a directed causal link. Weight, when set, is the server-estimated
// strength and only affects rendering.
type Edge struct {
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	SourcePort geometry.Side `json:"source_port,omitempty"`
	TargetPort geometry.Side `json:"target_port,omitempty"`
	Weight     *float64      `json:"weight,omitempty"`
}

// Touches reports whether the edge is incident to id.
func (e Edge) Touches(id string) bool { return e.Source == id || e.Target == id }

// Reversed swaps direction and ports.
func (e Edge) Reversed() Edge {
	out := e
	out.Source, out.Target = e.Target, e.Source
	out.SourcePort, out.TargetPort = e.TargetPort, e.SourcePort
	return out
}

// Clone returns a copy that does not share the weight pointer.
func (e Edge) Clone() Edge {
	out := e
	if e.Weight != nil {
		w := *e.Weight
		out.Weight = &w
	}
	return out
}

// FocusKind tags what is selected.
type FocusKind string

const (
	FocusNone FocusKind = "none"
	FocusNode FocusKind = "node"
	FocusEdge FocusKind = "edge"
)

// Focus is the single selection of the editor: nothing, one node or one edge.
type Focus struct {
	Kind      FocusKind `json:"kind"`
	NodeID    string    `json:"node_id,omitempty"`
	EdgeIndex int       `json:"edge_index,omitempty"`
}

// NoFocus is the empty selection.
func NoFocus() Focus { return Focus{Kind: FocusNone} }

// NodeFocus selects a node.
func NodeFocus(id string) Focus { return Focus{Kind: FocusNode, NodeID: id} }

// EdgeFocus selects an edge by index.
func EdgeFocus(index int) Focus { return Focus{Kind: FocusEdge, EdgeIndex: index} }

// IsNone reports whether nothing is selected.
func (f Focus) IsNone() bool { return f.Kind == "" || f.Kind == FocusNone }
