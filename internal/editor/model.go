// Package editor implements the interactive causal-graph canvas: the graph
// model that enforces the editing invariants, the edge-drag and viewport
// controllers, and the canvas that routes input events to them.
package editor

import (
	"fmt"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
	"gocausal/internal"
	apperrors "gocausal/internal/errors"
)

// GraphModel owns the node and edge collections of one editor session.
// Every topology change goes through it so the cascade rules live in one
// place: incident edges die with their node, causal annotations are cleared,
// cycle flags are recomputed and stale focus is dropped.
//
// GraphModel is not safe for concurrent use; Canvas serialises access.
type GraphModel struct {
	nodes    []causal.Node
	index    map[string]int
	edges    []causal.Edge
	focus    causal.Focus
	cellSize float64
	logger   *internal.Logger
}

// NewGraphModel creates an empty model snapping dropped nodes to cellSize.
func NewGraphModel(cellSize float64) *GraphModel {
	if cellSize <= 0 {
		cellSize = geometry.DefaultCellSize
	}
	return &GraphModel{
		index:    make(map[string]int),
		focus:    causal.NoFocus(),
		cellSize: cellSize,
		logger:   internal.DefaultLogger.WithComponent("GraphModel"),
	}
}

// Nodes returns a copy of the nodes in insertion order.
func (m *GraphModel) Nodes() []causal.Node {
	out := make([]causal.Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a copy of the edge list.
func (m *GraphModel) Edges() []causal.Edge {
	out := make([]causal.Edge, len(m.edges))
	for i, e := range m.edges {
		out[i] = e.Clone()
	}
	return out
}

// Node looks up a node by id.
func (m *GraphModel) Node(id string) (causal.Node, bool) {
	i, ok := m.index[id]
	if !ok {
		return causal.Node{}, false
	}
	return m.nodes[i].Clone(), true
}

// Has reports whether a node with id exists.
func (m *GraphModel) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Len returns the number of nodes.
func (m *GraphModel) Len() int { return len(m.nodes) }

// Focus returns the current selection.
func (m *GraphModel) Focus() causal.Focus { return m.focus }

// FocusedNode returns the id of the focused node, if a node is focused.
func (m *GraphModel) FocusedNode() (string, bool) {
	if m.focus.Kind != causal.FocusNode {
		return "", false
	}
	return m.focus.NodeID, true
}

// CellSize is the alignment grid spacing used on drop.
func (m *GraphModel) CellSize() float64 { return m.cellSize }

// NodeIDs lists node ids in insertion order.
func (m *GraphModel) NodeIDs() []string {
	ids := make([]string, len(m.nodes))
	for i, n := range m.nodes {
		ids[i] = n.ID
	}
	return ids
}

// CycleFlags returns the current per-node cycle membership.
func (m *GraphModel) CycleFlags() map[string]bool {
	flags := make(map[string]bool, len(m.nodes))
	for _, n := range m.nodes {
		flags[n.ID] = n.InCycle
	}
	return flags
}

// HasCycle reports whether any node is self-reachable.
func (m *GraphModel) HasCycle() bool {
	for _, n := range m.nodes {
		if n.InCycle {
			return true
		}
	}
	return false
}

// CycleGroups names the node groups that form cycles.
func (m *GraphModel) CycleGroups() [][]string {
	return causal.CycleGroups(m.NodeIDs(), m.edges)
}

// TopologyHash fingerprints the current node set and edge list.
func (m *GraphModel) TopologyHash() core.TopologyHash {
	pairs := make([][2]string, len(m.edges))
	for i, e := range m.edges {
		pairs[i] = [2]string{e.Source, e.Target}
	}
	return core.ComputeTopologyHash(m.NodeIDs(), pairs)
}

// AddNode places a new node centred on position. Node ids are unique.
func (m *GraphModel) AddNode(attr string, position geometry.Point, kind causal.NodeKind) (string, error) {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return "", apperrors.InvalidInput("node id cannot be empty")
	}
	if m.Has(attr) {
		return "", fmt.Errorf("%w: %s", core.ErrNodeExists, attr)
	}
	if kind == "" {
		kind = causal.KindObserved
	}
	m.nodes = append(m.nodes, causal.Node{
		ID:       attr,
		Position: position,
		Kind:     kind,
	})
	m.index[attr] = len(m.nodes) - 1
	m.topologyChanged()
	m.logger.Debug("added %s node %s at (%.1f, %.1f)", kind, attr, position.X, position.Y)
	return attr, nil
}

// RemoveNode deletes a node together with every edge touching it.
func (m *GraphModel) RemoveNode(id string) error {
	i, ok := m.index[id]
	if !ok {
		return core.NewNodeNotFoundError(id)
	}

	focusLost := m.focus.Kind == causal.FocusNode && m.focus.NodeID == id
	kept := m.edges[:0:0]
	newIndex := make([]int, len(m.edges))
	for ei, e := range m.edges {
		if e.Touches(id) {
			newIndex[ei] = -1
			continue
		}
		newIndex[ei] = len(kept)
		kept = append(kept, e)
	}
	if m.focus.Kind == causal.FocusEdge {
		if ni := newIndex[m.focus.EdgeIndex]; ni < 0 {
			focusLost = true
		} else {
			m.focus.EdgeIndex = ni
		}
	}
	removed := len(m.edges) - len(kept)
	m.edges = kept

	m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
	m.reindex()
	if focusLost {
		m.focus = causal.NoFocus()
	}
	m.topologyChanged()
	m.logger.Debug("removed node %s and %d incident edges", id, removed)
	return nil
}

// AddEdge appends an edge and focuses it. Duplicates are allowed.
func (m *GraphModel) AddEdge(edge causal.Edge) error {
	if !m.Has(edge.Source) {
		return fmt.Errorf("%w: source %s", core.ErrDanglingEdge, edge.Source)
	}
	if !m.Has(edge.Target) {
		return fmt.Errorf("%w: target %s", core.ErrDanglingEdge, edge.Target)
	}
	m.edges = append(m.edges, edge.Clone())
	m.focus = causal.EdgeFocus(len(m.edges) - 1)
	m.topologyChanged()
	m.logger.Debug("added edge %s -> %s", edge.Source, edge.Target)
	return nil
}

// RemoveEdge deletes the edge at index.
func (m *GraphModel) RemoveEdge(index int) error {
	if index < 0 || index >= len(m.edges) {
		return core.NewEdgeNotFoundError(index)
	}
	m.edges = append(m.edges[:index], m.edges[index+1:]...)
	m.focus = causal.NoFocus()
	m.topologyChanged()
	return nil
}

// ReverseEdge flips the edge at index, ports included.
func (m *GraphModel) ReverseEdge(index int) error {
	if index < 0 || index >= len(m.edges) {
		return core.NewEdgeNotFoundError(index)
	}
	m.edges[index] = m.edges[index].Reversed()
	m.focus = causal.NoFocus()
	m.topologyChanged()
	return nil
}

// ResetCausalFields clears every node's causal annotations. Callers use it
// after external updates that make the current estimates stale.
func (m *GraphModel) ResetCausalFields() {
	m.nodes = causal.ResetCausalFields(m.nodes)
}

// MoveNode sets a node's position during a drag. Coordinates are floored at
// zero but not snapped.
func (m *GraphModel) MoveNode(id string, position geometry.Point) error {
	i, ok := m.index[id]
	if !ok {
		return core.NewNodeNotFoundError(id)
	}
	m.nodes[i].Position = geometry.ClampNonNegative(position)
	return nil
}

// DropNode snaps a node to the alignment grid at the end of a drag.
func (m *GraphModel) DropNode(id string) (geometry.Point, error) {
	i, ok := m.index[id]
	if !ok {
		return geometry.Point{}, core.NewNodeNotFoundError(id)
	}
	p := geometry.SnapPoint(geometry.ClampNonNegative(m.nodes[i].Position), m.cellSize)
	m.nodes[i].Position = p
	return p, nil
}

// TranslateAll shifts every node by delta. Panning is a bulk move of node
// positions rather than a camera offset.
func (m *GraphModel) TranslateAll(delta geometry.Point) {
	for i := range m.nodes {
		m.nodes[i].Position = m.nodes[i].Position.Add(delta)
	}
}

// FocusNode selects a node, replacing any other selection.
func (m *GraphModel) FocusNode(id string) error {
	if !m.Has(id) {
		return core.NewNodeNotFoundError(id)
	}
	m.focus = causal.NodeFocus(id)
	return nil
}

// FocusEdge selects an edge, replacing any other selection.
func (m *GraphModel) FocusEdge(index int) error {
	if index < 0 || index >= len(m.edges) {
		return core.NewEdgeNotFoundError(index)
	}
	m.focus = causal.EdgeFocus(index)
	return nil
}

// ClearFocus deselects everything.
func (m *GraphModel) ClearFocus() { m.focus = causal.NoFocus() }

// RemoveFocused deletes whatever is selected. With nothing selected it
// reports false and changes nothing.
func (m *GraphModel) RemoveFocused() (bool, error) {
	switch m.focus.Kind {
	case causal.FocusNode:
		return true, m.RemoveNode(m.focus.NodeID)
	case causal.FocusEdge:
		return true, m.RemoveEdge(m.focus.EdgeIndex)
	}
	return false, nil
}

// SetTreatment stores the intervention specification of a node.
func (m *GraphModel) SetTreatment(id string, kind causal.TreatmentKind, alternative, reference, shift string) error {
	i, ok := m.index[id]
	if !ok {
		return core.NewNodeNotFoundError(id)
	}
	switch kind {
	case causal.TreatmentUnset, causal.TreatmentAtomic, causal.TreatmentShift:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown treatment %q", kind))
	}
	n := &m.nodes[i]
	n.Treatment = kind
	n.Alternative = alternative
	n.Reference = reference
	n.Shift = shift
	return nil
}

// SetModel stores the estimator model chosen for a node.
func (m *GraphModel) SetModel(id, selection string, params map[string]any) error {
	i, ok := m.index[id]
	if !ok {
		return core.NewNodeNotFoundError(id)
	}
	m.nodes[i].ModelSelection = selection
	m.nodes[i].ModelParams = params
	return nil
}

// Load replaces the whole graph, e.g. from a saved session. Edges that point
// at unknown nodes are rejected.
func (m *GraphModel) Load(nodes []causal.Node, edges []causal.Edge) error {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return fmt.Errorf("%w: %s", core.ErrNodeExists, n.ID)
		}
		index[n.ID] = i
	}
	for _, e := range edges {
		if _, ok := index[e.Source]; !ok {
			return fmt.Errorf("%w: source %s", core.ErrDanglingEdge, e.Source)
		}
		if _, ok := index[e.Target]; !ok {
			return fmt.Errorf("%w: target %s", core.ErrDanglingEdge, e.Target)
		}
	}

	m.nodes = make([]causal.Node, len(nodes))
	for i, n := range nodes {
		m.nodes[i] = n.Clone()
	}
	m.edges = make([]causal.Edge, len(edges))
	for i, e := range edges {
		m.edges[i] = e.Clone()
	}
	m.index = index
	m.focus = causal.NoFocus()
	m.recomputeCycles()
	return nil
}

// ObservedSubgraph returns the observed nodes and the edges between them,
// which is all the causal-inference service ever sees.
func (m *GraphModel) ObservedSubgraph() ([]causal.Node, []causal.Edge) {
	var nodes []causal.Node
	observed := make(map[string]bool)
	for _, n := range m.nodes {
		if n.Observed() {
			nodes = append(nodes, n.Clone())
			observed[n.ID] = true
		}
	}
	var edges []causal.Edge
	for _, e := range m.edges {
		if observed[e.Source] && observed[e.Target] {
			edges = append(edges, e.Clone())
		}
	}
	return nodes, edges
}

func (m *GraphModel) reindex() {
	m.index = make(map[string]int, len(m.nodes))
	for i, n := range m.nodes {
		m.index[n.ID] = i
	}
}

func (m *GraphModel) topologyChanged() {
	m.nodes = causal.ResetCausalFields(m.nodes)
	m.recomputeCycles()
}

func (m *GraphModel) recomputeCycles() {
	flags := causal.ComputeCycleFlags(m.NodeIDs(), m.edges)
	for i := range m.nodes {
		m.nodes[i].InCycle = flags[m.nodes[i].ID]
	}
}
