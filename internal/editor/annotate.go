package editor

import (
	"fmt"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
)

// latentOffset is how far above the midpoint of its two children a latent
// node is placed.
const latentOffset = 90.0

// LatentFinding is one confounded pair reported by the latent search.
type LatentFinding struct {
	N1          string
	N2          string
	Confounders []causal.Confounder
}

// AddLatents creates one latent node per finding, placed above the pair it
// confounds, with edges latent->n1 and latent->n2. Findings that name a node
// no longer on the canvas are skipped. Returns the ids created.
func (m *GraphModel) AddLatents(findings []LatentFinding) []string {
	var created []string
	for _, f := range findings {
		i1, ok1 := m.index[f.N1]
		i2, ok2 := m.index[f.N2]
		if !ok1 || !ok2 {
			m.logger.Warn("skipping latent finding for missing pair %s/%s", f.N1, f.N2)
			continue
		}
		a, b := m.nodes[i1].Position, m.nodes[i2].Position
		pos := geometry.ClampNonNegative(geometry.Point{
			X: (a.X + b.X) / 2,
			Y: (a.Y+b.Y)/2 - latentOffset,
		})

		id := core.NewLatentID()
		m.nodes = append(m.nodes, causal.Node{
			ID:       id,
			Position: geometry.SnapPoint(pos, m.cellSize),
			Kind:     causal.KindLatent,
			Payload:  append([]causal.Confounder(nil), f.Confounders...),
		})
		m.index[id] = len(m.nodes) - 1
		m.edges = append(m.edges,
			causal.Edge{Source: id, Target: f.N1},
			causal.Edge{Source: id, Target: f.N2},
		)
		created = append(created, id)
	}
	if len(created) > 0 {
		m.topologyChanged()
	}
	return created
}

// ResolveLatent replaces a latent node by a real attribute. If attr is
// already on the canvas the latent's edges are moved onto it; otherwise the
// latent node becomes an observed node named attr in place.
func (m *GraphModel) ResolveLatent(latentID, attr string) error {
	i, ok := m.index[latentID]
	if !ok {
		return core.NewNodeNotFoundError(latentID)
	}
	if m.nodes[i].Kind != causal.KindLatent {
		return fmt.Errorf("%w: %s", core.ErrNotLatent, latentID)
	}
	if attr == "" || attr == latentID {
		return fmt.Errorf("%w: %q", core.ErrUnknownAttribute, attr)
	}

	for ei := range m.edges {
		if m.edges[ei].Source == latentID {
			m.edges[ei].Source = attr
		}
		if m.edges[ei].Target == latentID {
			m.edges[ei].Target = attr
		}
	}

	if m.Has(attr) {
		m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
		m.reindex()
	} else {
		m.nodes[i] = causal.Node{
			ID:       attr,
			Position: m.nodes[i].Position,
			Kind:     causal.KindObserved,
		}
		delete(m.index, latentID)
		m.index[attr] = i
	}

	// A latent that confounded attr itself leaves a self-loop behind.
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.Source == attr && e.Target == attr {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept

	m.focus = causal.NoFocus()
	m.topologyChanged()
	return nil
}

// ApplyEffects merges intervention results for focus into each listed node.
// Unknown node ids are ignored: the graph may have changed since the request.
func (m *GraphModel) ApplyEffects(focus string, effects map[string]causal.Effect) int {
	applied := 0
	for id, eff := range effects {
		i, ok := m.index[id]
		if !ok {
			continue
		}
		if m.nodes[i].ATE == nil {
			m.nodes[i].ATE = make(map[string]causal.Effect)
		}
		m.nodes[i].ATE[focus] = eff
		applied++
	}
	return applied
}

// ApplyInfluence merges per-node influence on focus.
func (m *GraphModel) ApplyInfluence(focus string, influence map[string]float64) int {
	applied := 0
	for id, v := range influence {
		i, ok := m.index[id]
		if !ok {
			continue
		}
		if m.nodes[i].Influence == nil {
			m.nodes[i].Influence = make(map[string]float64)
		}
		m.nodes[i].Influence[focus] = v
		applied++
	}
	return applied
}

// ApplyEdgeWeights sets the weight of every edge source->target found in
// weights[target][source]. Parallel edges all receive the weight.
func (m *GraphModel) ApplyEdgeWeights(weights map[string]map[string]float64) int {
	applied := 0
	for i, e := range m.edges {
		bySource, ok := weights[e.Target]
		if !ok {
			continue
		}
		w, ok := bySource[e.Source]
		if !ok {
			continue
		}
		m.edges[i].Weight = &w
		applied++
	}
	return applied
}

// ApplyFit stores the fit score of the focus node.
func (m *GraphModel) ApplyFit(focus string, score float64) bool {
	i, ok := m.index[focus]
	if !ok {
		return false
	}
	m.nodes[i].FitScore = &score
	return true
}
