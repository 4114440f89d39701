package editor

import (
	"fmt"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
)

// DefaultSnapThreshold is the largest cursor-to-anchor distance that still
// snaps the dragged edge onto a target anchor.
const DefaultSnapThreshold = 50.0

// DragState is the phase of an edge-drag gesture.
type DragState string

const (
	DragIdle       DragState = "idle"
	DragDragging   DragState = "dragging"
	DragCommitting DragState = "committing"
)

// SnapCandidate is the anchor the dragged edge would connect to on release.
type SnapCandidate struct {
	NodeID   string         `json:"node_id"`
	Port     geometry.Side  `json:"port"`
	Position geometry.Point `json:"position"`
	Distance float64        `json:"distance"`
}

// PreviewEdge is the provisional edge drawn while dragging.
type PreviewEdge struct {
	Source     string         `json:"source"`
	SourcePort geometry.Side  `json:"source_port"`
	From       geometry.Point `json:"from"`
	To         geometry.Point `json:"to"`
	Snapped    bool           `json:"snapped"`
}

// EdgeGraph is what the drag controller needs from the graph.
type EdgeGraph interface {
	Node(id string) (causal.Node, bool)
	Nodes() []causal.Node
	NodeScales() map[string]float64
	AddEdge(edge causal.Edge) error
}

// EdgeDragController runs the "drag from an anchor to draw an edge" gesture.
// Idle -> Dragging on BeginDrag; Dragging -> Committing -> Idle on EndDrag
// with a snap candidate, Dragging -> Idle without one.
type EdgeDragController struct {
	graph     EdgeGraph
	threshold float64

	state      DragState
	source     string
	sourcePort geometry.Side
	from       geometry.Point
	to         geometry.Point
	candidate  *SnapCandidate
}

// NewEdgeDragController creates an idle controller. A non-positive
// threshold selects DefaultSnapThreshold.
func NewEdgeDragController(graph EdgeGraph, threshold float64) *EdgeDragController {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	return &EdgeDragController{graph: graph, threshold: threshold, state: DragIdle}
}

// State returns the current phase.
func (c *EdgeDragController) State() DragState { return c.state }

// Active reports whether a drag is in progress.
func (c *EdgeDragController) Active() bool { return c.state != DragIdle }

// Candidate returns the current snap target, if any.
func (c *EdgeDragController) Candidate() (SnapCandidate, bool) {
	if c.candidate == nil {
		return SnapCandidate{}, false
	}
	return *c.candidate, true
}

// Preview returns the provisional edge while dragging.
func (c *EdgeDragController) Preview() (PreviewEdge, bool) {
	if c.state != DragDragging {
		return PreviewEdge{}, false
	}
	return PreviewEdge{
		Source:     c.source,
		SourcePort: c.sourcePort,
		From:       c.from,
		To:         c.to,
		Snapped:    c.candidate != nil,
	}, true
}

// BeginDrag starts a drag from the given anchor of sourceAttr. The source
// anchor is computed at the node's current influence scale.
func (c *EdgeDragController) BeginDrag(sourceAttr string, sourcePort geometry.Side, start geometry.Point) error {
	if c.state != DragIdle {
		return fmt.Errorf("edge drag already in progress from %s", c.source)
	}
	node, ok := c.graph.Node(sourceAttr)
	if !ok {
		return core.NewNodeNotFoundError(sourceAttr)
	}
	scale := scaleOf(c.graph.NodeScales(), sourceAttr)

	c.state = DragDragging
	c.source = sourceAttr
	c.sourcePort = sourcePort
	c.from = geometry.AnchorPosition(node.Position, geometry.NodeWidth, geometry.NodeHeight, sourcePort, scale)
	c.to = start
	c.candidate = nil
	return nil
}

// UpdateDrag moves the free end of the preview. The nearest anchor of any
// other node within the snap threshold becomes the candidate and the preview
// snaps to it; otherwise the preview dangles at current.
func (c *EdgeDragController) UpdateDrag(current geometry.Point) (PreviewEdge, bool) {
	if c.state != DragDragging {
		return PreviewEdge{}, false
	}

	best := c.nearestAnchor(current)
	if best != nil && best.Distance <= c.threshold {
		c.candidate = best
		c.to = best.Position
	} else {
		c.candidate = nil
		c.to = current
	}
	return c.Preview()
}

// EndDrag finishes the gesture. With a snap candidate the edge is added to
// the graph and returned; without one nothing happens. Preview state is
// always cleared.
func (c *EdgeDragController) EndDrag() (*causal.Edge, error) {
	if c.state != DragDragging {
		return nil, nil
	}
	defer c.reset()

	if c.candidate == nil {
		return nil, nil
	}

	c.state = DragCommitting
	edge := causal.Edge{
		Source:     c.source,
		Target:     c.candidate.NodeID,
		SourcePort: c.sourcePort,
		TargetPort: c.candidate.Port,
	}
	if err := c.graph.AddEdge(edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// Cancel abandons the gesture without side effects.
func (c *EdgeDragController) Cancel() { c.reset() }

func (c *EdgeDragController) reset() {
	c.state = DragIdle
	c.source = ""
	c.sourcePort = ""
	c.from = geometry.Point{}
	c.to = geometry.Point{}
	c.candidate = nil
}

// nearestAnchor scans the four anchors of every node except the source.
func (c *EdgeDragController) nearestAnchor(p geometry.Point) *SnapCandidate {
	scales := c.graph.NodeScales()
	var best *SnapCandidate
	for _, n := range c.graph.Nodes() {
		if n.ID == c.source {
			continue
		}
		scale := scaleOf(scales, n.ID)
		for _, side := range geometry.Sides {
			pos := geometry.AnchorPosition(n.Position, geometry.NodeWidth, geometry.NodeHeight, side, scale)
			d := geometry.Distance(p, pos)
			if best == nil || d < best.Distance {
				best = &SnapCandidate{NodeID: n.ID, Port: side, Position: pos, Distance: d}
			}
		}
	}
	return best
}

func scaleOf(scales map[string]float64, id string) float64 {
	if s, ok := scales[id]; ok && s > 0 {
		return s
	}
	return geometry.MinNodeScale
}
