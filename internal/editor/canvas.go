package editor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
	"gocausal/internal"
	apperrors "gocausal/internal/errors"
)

// EventType names a raw input event forwarded by the browser.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventClick       EventType = "click"
	EventWheel       EventType = "wheel"
	EventKeyDown     EventType = "keydown"
	EventDrop        EventType = "drop"
)

// TargetControl marks events that originated on a form control (side panel,
// selector, button). Such events never deselect and never delete.
const TargetControl = "control"

// PrimaryButton is the pointer button that drags, pans and deselects.
// Presses and clicks with any other button are ignored.
const PrimaryButton = 0

// Hit-test tolerances in canvas pixels.
const (
	anchorHitRadius  = 8.0
	edgeHitTolerance = 6.0
)

// Event is one input event. X and Y are pixel offsets relative to the
// canvas element; the canvas converts them with the current zoom.
type Event struct {
	Type   EventType `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Button int       `json:"button,omitempty"`
	DeltaY float64   `json:"delta_y,omitempty"`
	Key    string    `json:"key,omitempty"`
	Target string    `json:"target,omitempty"`
	Attr   string    `json:"attr,omitempty"`
}

func (e Event) pixel() geometry.Point { return geometry.Point{X: e.X, Y: e.Y} }

// SaveFunc receives the final graph when the editor exits.
type SaveFunc func(ctx context.Context, nodes []causal.Node, edges []causal.Edge) error

// CanvasOptions configures a Canvas. Zero values select defaults.
type CanvasOptions struct {
	CellSize      float64
	SnapThreshold float64
	// Attributes restricts which names may be dropped. Empty allows any.
	Attributes []string
	Save       SaveFunc
}

// Canvas routes input events to the graph model and the two gesture
// controllers and renders the result. It is safe for concurrent use.
type Canvas struct {
	mu       sync.Mutex
	graph    *GraphModel
	drag     *EdgeDragController
	viewport *ViewportController

	movingNode string
	moveOffset geometry.Point

	attributes map[string]bool
	save       SaveFunc
	logger     *internal.Logger
}

// NewCanvas creates an empty canvas.
func NewCanvas(opts CanvasOptions) *Canvas {
	graph := NewGraphModel(opts.CellSize)
	c := &Canvas{
		graph:    graph,
		drag:     NewEdgeDragController(graph, opts.SnapThreshold),
		viewport: NewViewportController(graph.CellSize()),
		save:     opts.Save,
		logger:   internal.DefaultLogger.WithComponent("Canvas"),
	}
	if len(opts.Attributes) > 0 {
		c.attributes = make(map[string]bool, len(opts.Attributes))
		for _, a := range opts.Attributes {
			c.attributes[strings.TrimSpace(a)] = true
		}
	}
	return c
}

// HandleEvent applies one input event.
func (c *Canvas) HandleEvent(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case EventPointerDown:
		return c.pointerDown(ev)
	case EventPointerMove:
		return c.pointerMove(ev)
	case EventPointerUp:
		return c.pointerUp()
	case EventClick:
		c.click(ev)
		return nil
	case EventWheel:
		c.viewport.Wheel(ev.DeltaY)
		return nil
	case EventKeyDown:
		return c.keyDown(ev)
	case EventDrop:
		return c.dropAttribute(ev)
	}
	return apperrors.InvalidInput(fmt.Sprintf("unsupported event type %q", ev.Type))
}

func (c *Canvas) pointerDown(ev Event) error {
	if c.drag.Active() || c.movingNode != "" || c.viewport.Panning() {
		return nil
	}
	if ev.Target == TargetControl || ev.Button != PrimaryButton {
		return nil
	}
	p := c.viewport.ToCanvas(ev.pixel())

	if id, side, ok := c.hitAnchor(p); ok {
		return c.drag.BeginDrag(id, side, p)
	}
	if id, ok := c.hitNode(p); ok {
		n, _ := c.graph.Node(id)
		c.movingNode = id
		c.moveOffset = n.Position.Sub(p)
		return c.graph.FocusNode(id)
	}
	if idx, ok := c.hitEdge(p); ok {
		return c.graph.FocusEdge(idx)
	}
	c.viewport.BeginPan(ev.pixel())
	return nil
}

func (c *Canvas) pointerMove(ev Event) error {
	switch {
	case c.drag.Active():
		c.drag.UpdateDrag(c.viewport.ToCanvas(ev.pixel()))
	case c.movingNode != "":
		p := c.viewport.ToCanvas(ev.pixel()).Add(c.moveOffset)
		return c.graph.MoveNode(c.movingNode, p)
	case c.viewport.Panning():
		if delta, ok := c.viewport.UpdatePan(ev.pixel()); ok {
			c.graph.TranslateAll(delta)
		}
	}
	return nil
}

func (c *Canvas) pointerUp() error {
	switch {
	case c.drag.Active():
		edge, err := c.drag.EndDrag()
		if err != nil {
			return err
		}
		if edge != nil {
			c.logger.Info("connected %s -> %s", edge.Source, edge.Target)
		}
	case c.movingNode != "":
		id := c.movingNode
		c.movingNode = ""
		if _, err := c.graph.DropNode(id); err != nil {
			return err
		}
	case c.viewport.Panning():
		c.viewport.EndPan()
	}
	return nil
}

// click deselects when the background itself was clicked.
func (c *Canvas) click(ev Event) {
	if ev.Target == TargetControl || ev.Button != PrimaryButton {
		return
	}
	p := c.viewport.ToCanvas(ev.pixel())
	if _, _, ok := c.hitAnchor(p); ok {
		return
	}
	if _, ok := c.hitNode(p); ok {
		return
	}
	if _, ok := c.hitEdge(p); ok {
		return
	}
	c.graph.ClearFocus()
}

func (c *Canvas) keyDown(ev Event) error {
	if ev.Target == TargetControl {
		return nil
	}
	switch ev.Key {
	case "Delete", "Backspace":
		_, err := c.graph.RemoveFocused()
		return err
	case "Escape":
		c.drag.Cancel()
	}
	return nil
}

func (c *Canvas) dropAttribute(ev Event) error {
	attr := strings.TrimSpace(ev.Attr)
	if c.attributes != nil && !c.attributes[attr] {
		return fmt.Errorf("%w: %s", core.ErrUnknownAttribute, attr)
	}
	pos := geometry.ClampNonNegative(c.viewport.ToCanvas(ev.pixel()))
	_, err := c.graph.AddNode(attr, pos, causal.KindObserved)
	return err
}

// hitAnchor finds an anchor within anchorHitRadius, topmost node first.
func (c *Canvas) hitAnchor(p geometry.Point) (string, geometry.Side, bool) {
	nodes := c.graph.Nodes()
	scales := c.graph.NodeScales()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		for _, side := range geometry.Sides {
			a := geometry.AnchorPosition(n.Position, geometry.NodeWidth, geometry.NodeHeight, side, scaleOf(scales, n.ID))
			if geometry.Distance(p, a) <= anchorHitRadius {
				return n.ID, side, true
			}
		}
	}
	return "", "", false
}

func (c *Canvas) hitNode(p geometry.Point) (string, bool) {
	nodes := c.graph.Nodes()
	scales := c.graph.NodeScales()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if geometry.Contains(n.Position, geometry.NodeWidth, geometry.NodeHeight, scaleOf(scales, n.ID), p) {
			return n.ID, true
		}
	}
	return "", false
}

// hitEdge tests against the straight chord of each rendered connector.
func (c *Canvas) hitEdge(p geometry.Point) (int, bool) {
	scene := RenderScene(c.graph.Nodes(), c.graph.Edges(), c.graph.Focus(), c.graph.NodeScales())
	best, bestDist := -1, edgeHitTolerance
	for _, e := range scene.Edges {
		if d := geometry.SegmentDistance(p, e.From, e.To); d <= bestDist {
			best, bestDist = e.Index, d
		}
	}
	return best, best >= 0
}

// Scene renders the current state, including any drag preview.
func (c *Canvas) Scene() Scene {
	c.mu.Lock()
	defer c.mu.Unlock()

	scene := RenderScene(c.graph.Nodes(), c.graph.Edges(), c.graph.Focus(), c.graph.NodeScales())
	scene.Zoom = c.viewport.Scale()
	scene.GridCellSize = c.viewport.GridCellSize()
	if p, ok := c.drag.Preview(); ok {
		scene.Preview = &p
	}
	return scene
}

// Update runs fn with exclusive access to the graph.
func (c *Canvas) Update(fn func(*GraphModel) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.graph)
}

// View runs fn with exclusive access to the graph for reading.
func (c *Canvas) View(fn func(*GraphModel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.graph)
}

// Zoom returns the current zoom factor.
func (c *Canvas) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.Scale()
}

// DragState returns the phase of the edge-drag gesture.
func (c *Canvas) DragState() DragState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drag.State()
}

// Attributes lists the names that may be dropped, if restricted.
func (c *Canvas) Attributes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.attributes))
	for a := range c.attributes {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Exit abandons any gesture and hands the final graph to the save callback.
func (c *Canvas) Exit(ctx context.Context) error {
	c.mu.Lock()
	c.drag.Cancel()
	c.viewport.EndPan()
	if c.movingNode != "" {
		_, _ = c.graph.DropNode(c.movingNode)
		c.movingNode = ""
	}
	nodes, edges := c.graph.Nodes(), c.graph.Edges()
	save := c.save
	c.mu.Unlock()

	if save == nil {
		return nil
	}
	if err := save(ctx, nodes, edges); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	c.logger.Info("saved %d nodes and %d edges", len(nodes), len(edges))
	return nil
}
