package editor

import (
	"math"

	"github.com/montanaflynn/stats"

	"gocausal/domain/geometry"
)

// NodeScales returns the visual enlargement of every node. Nodes grow with
// their influence on the focused node, relative to the strongest influence
// shown; with no focused node or no influence data every scale is 1.
func (m *GraphModel) NodeScales() map[string]float64 {
	scales := make(map[string]float64, len(m.nodes))
	for _, n := range m.nodes {
		scales[n.ID] = geometry.MinNodeScale
	}

	focus, ok := m.FocusedNode()
	if !ok {
		return scales
	}

	var magnitudes stats.Float64Data
	for _, n := range m.nodes {
		if v, ok := n.Influence[focus]; ok && !math.IsNaN(v) {
			magnitudes = append(magnitudes, math.Abs(v))
		}
	}
	if len(magnitudes) == 0 {
		return scales
	}
	maxAbs, err := stats.Max(magnitudes)
	if err != nil {
		return scales
	}

	for _, n := range m.nodes {
		if v, ok := n.Influence[focus]; ok {
			scales[n.ID] = geometry.InfluenceScale(v, maxAbs)
		}
	}
	return scales
}

// NodeScale returns the scale of a single node.
func (m *GraphModel) NodeScale(id string) float64 {
	if s, ok := m.NodeScales()[id]; ok {
		return s
	}
	return geometry.MinNodeScale
}
