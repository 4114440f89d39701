package causal

// ResetCausalFields returns a copy of nodes with every causal-session field
// cleared: treatment back to the placeholder, estimated effects,
// influence and fit dropped, model choice forgotten. Positions, kinds,
// latent payloads and cycle flags are kept.
func ResetCausalFields(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Node{
			ID:       n.ID,
			Position: n.Position,
			Kind:     n.Kind,
			InCycle:  n.InCycle,
		}
		if n.Payload != nil {
			out[i].Payload = append([]Confounder(nil), n.Payload...)
		}
	}
	return out
}

// HasCausalResults reports whether any estimate is attached to the node.
func (n Node) HasCausalResults() bool {
	return len(n.ATE) > 0 || len(n.Influence) > 0 || n.FitScore != nil
}
