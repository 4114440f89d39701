package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// newTestCanvas places a at (100,100) and b at (300,100).
func newTestCanvas(t *testing.T, opts CanvasOptions) *Canvas {
	t.Helper()
	c := NewCanvas(opts)
	require.NoError(t, c.Update(func(g *GraphModel) error {
		if _, err := g.AddNode("a", pt(100, 100), causal.KindObserved); err != nil {
			return err
		}
		_, err := g.AddNode("b", pt(300, 100), causal.KindObserved)
		return err
	}))
	return c
}

func send(t *testing.T, c *Canvas, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, c.HandleEvent(ev), ev.Type)
	}
}

func graphOf(c *Canvas) (nodes []causal.Node, edges []causal.Edge, focus causal.Focus) {
	c.View(func(g *GraphModel) {
		nodes, edges, focus = g.Nodes(), g.Edges(), g.Focus()
	})
	return
}

func TestCanvasRendersThreeNodeChain(t *testing.T) {
	c := NewCanvas(CanvasOptions{})
	w1, w2 := 0.9, 0.5
	require.NoError(t, c.Update(func(g *GraphModel) error {
		for _, n := range []struct {
			id   string
			x, y float64
		}{{"a", 10, 10}, {"b", 30, 30}, {"c", 50, 50}} {
			if _, err := g.AddNode(n.id, pt(n.x, n.y), causal.KindObserved); err != nil {
				return err
			}
		}
		if err := g.AddEdge(causal.Edge{Source: "a", Target: "b"}); err != nil {
			return err
		}
		if err := g.AddEdge(causal.Edge{Source: "b", Target: "c"}); err != nil {
			return err
		}
		g.ApplyEdgeWeights(map[string]map[string]float64{"b": {"a": w1}, "c": {"b": w2}})
		return nil
	}))

	scene := c.Scene()
	assert.Len(t, scene.Nodes, 3)
	assert.Len(t, scene.Edges, 2)
	assert.False(t, scene.HasCycle)
	for _, n := range scene.Nodes {
		assert.False(t, n.InCycle)
	}
	for _, e := range scene.Edges {
		assert.False(t, e.Dashed)
	}
	assert.InDelta(t, 10.0, scene.Edges[0].StrokeWidth, 1e-9)
	assert.InDelta(t, 6.0, scene.Edges[1].StrokeWidth, 1e-9)

	svg := scene.SVG(640, 480)
	assert.Equal(t, 2, strings.Count(svg, `class="connector`))
	assert.Equal(t, 3, strings.Count(svg, `class="node`))
	assert.Contains(t, svg, `transform="scale(1.000)"`)
}

func TestCanvasDropAttribute(t *testing.T) {
	c := NewCanvas(CanvasOptions{Attributes: []string{"age", "income"}})

	send(t, c, Event{Type: EventDrop, X: 95, Y: 47, Attr: "age"})
	nodes, _, _ := graphOf(c)
	require.Len(t, nodes, 1)
	assert.Equal(t, pt(95, 47), nodes[0].Position, "drop is not snapped")

	err := c.HandleEvent(Event{Type: EventDrop, X: 10, Y: 10, Attr: "age"})
	assert.ErrorIs(t, err, core.ErrNodeExists)

	err = c.HandleEvent(Event{Type: EventDrop, X: 10, Y: 10, Attr: "weight"})
	assert.ErrorIs(t, err, core.ErrUnknownAttribute)

	send(t, c, Event{Type: EventWheel, DeltaY: -1000})
	send(t, c, Event{Type: EventDrop, X: 100, Y: 100, Attr: "income"})
	nodes, _, _ = graphOf(c)
	assert.Equal(t, pt(50, 50), nodes[1].Position)
	assert.Equal(t, []string{"age", "income"}, c.Attributes())
}

func TestCanvasNodeDragSnapsOnRelease(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})

	send(t, c,
		Event{Type: EventPointerDown, X: 100, Y: 100},
		Event{Type: EventPointerMove, X: 141, Y: 117},
	)
	nodes, _, focus := graphOf(c)
	assert.Equal(t, pt(141, 117), nodes[0].Position)
	assert.Equal(t, causal.NodeFocus("a"), focus)

	send(t, c, Event{Type: EventPointerMove, X: -40, Y: 50})
	nodes, _, _ = graphOf(c)
	assert.Equal(t, pt(0, 50), nodes[0].Position, "clamped during drag")

	send(t, c,
		Event{Type: EventPointerMove, X: 141, Y: 117},
		Event{Type: EventPointerUp, X: 141, Y: 117},
	)
	nodes, _, _ = graphOf(c)
	assert.Equal(t, pt(150, 120), nodes[0].Position)
}

func TestCanvasEdgeDragFromAnchor(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})

	send(t, c,
		Event{Type: EventPointerDown, X: 160, Y: 100},
		Event{Type: EventPointerMove, X: 235, Y: 100},
	)
	assert.Equal(t, DragDragging, c.DragState())
	scene := c.Scene()
	require.NotNil(t, scene.Preview)
	assert.True(t, scene.Preview.Snapped)
	assert.Contains(t, scene.SVG(400, 300), `class="drag-preview"`)

	send(t, c, Event{Type: EventPointerUp, X: 235, Y: 100})
	assert.Equal(t, DragIdle, c.DragState())
	_, edges, focus := graphOf(c)
	require.Len(t, edges, 1)
	assert.Equal(t, "a", edges[0].Source)
	assert.Equal(t, "b", edges[0].Target)
	assert.Equal(t, causal.EdgeFocus(0), focus)
	assert.Nil(t, c.Scene().Preview)
}

func TestCanvasEdgeDragReleasedInSpace(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})
	send(t, c,
		Event{Type: EventPointerDown, X: 100, Y: 120},
		Event{Type: EventPointerMove, X: 100, Y: 400},
		Event{Type: EventPointerUp, X: 100, Y: 400},
	)
	_, edges, _ := graphOf(c)
	assert.Empty(t, edges)
}

func TestCanvasPanMovesAllNodes(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})
	send(t, c,
		Event{Type: EventPointerDown, X: 500, Y: 500},
		Event{Type: EventPointerMove, X: 520, Y: 510},
		Event{Type: EventPointerUp, X: 520, Y: 510},
		Event{Type: EventPointerMove, X: 600, Y: 600},
	)
	nodes, _, _ := graphOf(c)
	assert.Equal(t, pt(120, 110), nodes[0].Position)
	assert.Equal(t, pt(320, 110), nodes[1].Position)
}

func TestCanvasIgnoresSecondaryButtons(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})
	require.NoError(t, c.Update(func(g *GraphModel) error { return g.FocusNode("a") }))

	for _, button := range []int{1, 2} {
		send(t, c,
			Event{Type: EventPointerDown, X: 10, Y: 10, Button: button},
			Event{Type: EventPointerMove, X: 60, Y: 10, Button: button},
			Event{Type: EventPointerUp, X: 60, Y: 10, Button: button},
			Event{Type: EventClick, X: 60, Y: 10, Button: button},
		)
		// node body and anchor presses start no gesture either
		send(t, c,
			Event{Type: EventPointerDown, X: 300, Y: 100, Button: button},
			Event{Type: EventPointerMove, X: 350, Y: 150, Button: button},
			Event{Type: EventPointerUp, X: 350, Y: 150, Button: button},
			Event{Type: EventPointerDown, X: 160, Y: 100, Button: button},
			Event{Type: EventPointerMove, X: 235, Y: 100, Button: button},
			Event{Type: EventPointerUp, X: 235, Y: 100, Button: button},
		)
	}

	nodes, edges, focus := graphOf(c)
	assert.Equal(t, pt(100, 100), nodes[0].Position)
	assert.Equal(t, pt(300, 100), nodes[1].Position)
	assert.Empty(t, edges)
	assert.Equal(t, causal.NodeFocus("a"), focus)
	assert.Equal(t, DragIdle, c.DragState())
}

func TestCanvasClickFocusesEdgeAndDeselects(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})
	require.NoError(t, c.Update(func(g *GraphModel) error {
		if err := g.AddEdge(causal.Edge{Source: "a", Target: "b"}); err != nil {
			return err
		}
		g.ClearFocus()
		return nil
	}))

	send(t, c,
		Event{Type: EventPointerDown, X: 200, Y: 103},
		Event{Type: EventPointerUp, X: 200, Y: 103},
	)
	_, _, focus := graphOf(c)
	assert.Equal(t, causal.EdgeFocus(0), focus)

	send(t, c, Event{Type: EventClick, X: 600, Y: 600, Target: TargetControl})
	_, _, focus = graphOf(c)
	assert.Equal(t, causal.EdgeFocus(0), focus, "control clicks keep the selection")

	send(t, c, Event{Type: EventClick, X: 600, Y: 600})
	_, _, focus = graphOf(c)
	assert.True(t, focus.IsNone())
}

func TestCanvasDeleteKey(t *testing.T) {
	c := newTestCanvas(t, CanvasOptions{})

	send(t, c, Event{Type: EventKeyDown, Key: "Delete"})
	nodes, _, _ := graphOf(c)
	assert.Len(t, nodes, 2, "nothing focused")

	require.NoError(t, c.Update(func(g *GraphModel) error { return g.FocusNode("a") }))
	send(t, c, Event{Type: EventKeyDown, Key: "Backspace", Target: TargetControl})
	nodes, _, _ = graphOf(c)
	assert.Len(t, nodes, 2, "typing in a control")

	send(t, c, Event{Type: EventKeyDown, Key: "Backspace"})
	nodes, _, _ = graphOf(c)
	require.Len(t, nodes, 1)
	assert.Equal(t, "b", nodes[0].ID)
}

func TestCanvasRejectsUnknownEvent(t *testing.T) {
	c := NewCanvas(CanvasOptions{})
	assert.Error(t, c.HandleEvent(Event{Type: "hover"}))
}

func TestCanvasExitSaves(t *testing.T) {
	var saved []causal.Node
	c := newTestCanvas(t, CanvasOptions{Save: func(_ context.Context, nodes []causal.Node, _ []causal.Edge) error {
		saved = nodes
		return nil
	}})
	require.NoError(t, c.Exit(context.Background()))
	assert.Len(t, saved, 2)

	failing := newTestCanvas(t, CanvasOptions{Save: func(context.Context, []causal.Node, []causal.Edge) error {
		return errors.New("disk full")
	}})
	assert.ErrorContains(t, failing.Exit(context.Background()), "disk full")

	assert.NoError(t, NewCanvas(CanvasOptions{}).Exit(context.Background()))
}
