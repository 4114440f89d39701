package editor

import (
	"fmt"
	"html"
	"math"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/geometry"
)

// ArrowClearance keeps arrowheads off the target node body.
const ArrowClearance = 14.0

// Orientation is the control-point layout of a connector curve.
type Orientation string

const (
	OrientationVertical   Orientation = "vertical"
	OrientationHorizontal Orientation = "horizontal"
)

// NodeGlyph is a node as drawn.
type NodeGlyph struct {
	ID       string                           `json:"id"`
	Label    string                           `json:"label"`
	Kind     causal.NodeKind                  `json:"kind"`
	Center   geometry.Point                   `json:"center"`
	Width    float64                          `json:"width"`
	Height   float64                          `json:"height"`
	Scale    float64                          `json:"scale"`
	InCycle  bool                             `json:"in_cycle"`
	Focused  bool                             `json:"focused"`
	Anchors  map[geometry.Side]geometry.Point `json:"anchors"`
	Payload  []causal.Confounder              `json:"payload,omitempty"`
	FitScore *float64                         `json:"fit_score,omitempty"`
}

// ConnectorPath is an edge as drawn: a cubic curve from the source anchor to
// a point short of the target.
type ConnectorPath struct {
	Index       int            `json:"index"`
	Source      string         `json:"source"`
	Target      string         `json:"target"`
	Orientation Orientation    `json:"orientation"`
	From        geometry.Point `json:"from"`
	To          geometry.Point `json:"to"`
	C1          geometry.Point `json:"c1"`
	C2          geometry.Point `json:"c2"`
	D           string         `json:"d"`
	StrokeWidth float64        `json:"stroke_width"`
	Dashed      bool           `json:"dashed"`
	Focused     bool           `json:"focused"`
	Weight      *float64       `json:"weight,omitempty"`
}

// Scene is everything needed to draw the canvas.
type Scene struct {
	Nodes        []NodeGlyph     `json:"nodes"`
	Edges        []ConnectorPath `json:"edges"`
	Preview      *PreviewEdge    `json:"preview,omitempty"`
	Zoom         float64         `json:"zoom"`
	GridCellSize float64         `json:"grid_cell_size"`
	Focus        causal.Focus    `json:"focus"`
	HasCycle     bool            `json:"has_cycle"`
	Loading      bool            `json:"loading"`
}

// RenderScene lays out glyphs and connectors. Edges whose endpoints are
// missing are skipped.
func RenderScene(nodes []causal.Node, edges []causal.Edge, focus causal.Focus, scales map[string]float64) Scene {
	scene := Scene{
		Nodes: make([]NodeGlyph, 0, len(nodes)),
		Edges: make([]ConnectorPath, 0, len(edges)),
		Focus: focus,
		Zoom:  1,
	}

	byID := make(map[string]causal.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		scale := scaleOf(scales, n.ID)
		scene.Nodes = append(scene.Nodes, NodeGlyph{
			ID:       n.ID,
			Label:    nodeLabel(n),
			Kind:     n.Kind,
			Center:   n.Position,
			Width:    geometry.NodeWidth * scale,
			Height:   geometry.NodeHeight * scale,
			Scale:    scale,
			InCycle:  n.InCycle,
			Focused:  focus.Kind == causal.FocusNode && focus.NodeID == n.ID,
			Anchors:  geometry.Anchors(n.Position, geometry.NodeWidth, geometry.NodeHeight, scale),
			Payload:  n.Payload,
			FitScore: n.FitScore,
		})
		if n.InCycle {
			scene.HasCycle = true
		}
	}

	for i, e := range edges {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		c := Connector(src.Position, dst.Position, scaleOf(scales, src.ID), scaleOf(scales, dst.ID))
		c.Index = i
		c.Source = e.Source
		c.Target = e.Target
		c.Weight = e.Weight
		c.StrokeWidth, c.Dashed = strokeFor(e.Weight)
		c.Focused = focus.Kind == causal.FocusEdge && focus.EdgeIndex == i
		scene.Edges = append(scene.Edges, c)
	}
	return scene
}

// Connector computes the curve between two node centres. Within 45 degrees
// of vertical the curve leaves from the top or bottom anchor and bends
// vertically; otherwise it uses the side anchors. The end point is pulled
// back by the target's scaled half-size plus ArrowClearance.
func Connector(source, target geometry.Point, sourceScale, targetScale float64) ConnectorPath {
	dx := target.X - source.X
	dy := target.Y - source.Y

	var c ConnectorPath
	if math.Abs(dy) >= math.Abs(dx) {
		c.Orientation = OrientationVertical
		sign, side := 1.0, geometry.SideBottom
		if dy < 0 {
			sign, side = -1.0, geometry.SideTop
		}
		c.From = geometry.AnchorPosition(source, geometry.NodeWidth, geometry.NodeHeight, side, sourceScale)
		back := geometry.NodeHeight*targetScale/2 + ArrowClearance
		c.To = geometry.Point{X: target.X, Y: target.Y - sign*back}
		midY := (c.From.Y + c.To.Y) / 2
		c.C1 = geometry.Point{X: c.From.X, Y: midY}
		c.C2 = geometry.Point{X: c.To.X, Y: midY}
	} else {
		c.Orientation = OrientationHorizontal
		sign, side := 1.0, geometry.SideRight
		if dx < 0 {
			sign, side = -1.0, geometry.SideLeft
		}
		c.From = geometry.AnchorPosition(source, geometry.NodeWidth, geometry.NodeHeight, side, sourceScale)
		back := geometry.NodeWidth*targetScale/2 + ArrowClearance
		c.To = geometry.Point{X: target.X - sign*back, Y: target.Y}
		midX := (c.From.X + c.To.X) / 2
		c.C1 = geometry.Point{X: midX, Y: c.From.Y}
		c.C2 = geometry.Point{X: midX, Y: c.To.Y}
	}
	c.D = fmt.Sprintf("M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f",
		c.From.X, c.From.Y, c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.To.X, c.To.Y)
	return c
}

// strokeFor maps an estimated weight to a line width; unweighted edges are
// thin and dashed.
func strokeFor(weight *float64) (float64, bool) {
	if weight == nil {
		return 1.5, true
	}
	w := math.Min(math.Max(*weight, 0), 1)
	return 1 + w*10, false
}

func nodeLabel(n causal.Node) string {
	if n.Kind != causal.KindLatent {
		return n.ID
	}
	if len(n.Payload) == 0 {
		return "latent"
	}
	best := n.Payload[0]
	for _, c := range n.Payload[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return "latent: " + best.Name + "?"
}

// SVG renders the scene. The grid pattern is drawn at GridCellSize and the
// content layer carries the zoom transform.
func (s Scene) SVG(width, height int) string {
	cell := s.GridCellSize
	if cell <= 0 {
		cell = geometry.DefaultCellSize * s.Zoom
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	b.WriteString(`<defs>`)
	fmt.Fprintf(&b, `<pattern id="grid" width="%.2f" height="%.2f" patternUnits="userSpaceOnUse">`, cell, cell)
	fmt.Fprintf(&b, `<path d="M %.2f 0 L 0 0 0 %.2f" fill="none" stroke="#e5e7eb" stroke-width="1"/></pattern>`, cell, cell)
	b.WriteString(`<marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse">`)
	b.WriteString(`<path d="M 0 0 L 10 5 L 0 10 z" fill="#374151"/></marker>`)
	b.WriteString(`</defs>`)
	b.WriteString(`<rect class="background" width="100%" height="100%" fill="url(#grid)"/>`)

	zoom := s.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	fmt.Fprintf(&b, `<g class="content" transform="scale(%.3f)">`, zoom)

	for _, e := range s.Edges {
		class := "connector"
		if e.Focused {
			class += " focused"
		}
		dash := ""
		if e.Dashed {
			dash = ` stroke-dasharray="6 4"`
		}
		fmt.Fprintf(&b, `<path class="%s" data-index="%d" d="%s" fill="none" stroke="#374151" stroke-width="%.2f"%s marker-end="url(#arrow)"/>`,
			class, e.Index, e.D, e.StrokeWidth, dash)
	}

	if p := s.Preview; p != nil {
		fmt.Fprintf(&b, `<line class="drag-preview" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#2563eb" stroke-width="2" stroke-dasharray="4 4"/>`,
			p.From.X, p.From.Y, p.To.X, p.To.Y)
	}

	for _, n := range s.Nodes {
		class := "node " + string(n.Kind)
		if n.InCycle {
			class += " in-cycle"
		}
		if n.Focused {
			class += " focused"
		}
		stroke := "#374151"
		if n.InCycle {
			stroke = "#dc2626"
		}
		fmt.Fprintf(&b, `<g class="%s" data-id="%s" transform="translate(%.1f %.1f)">`,
			class, html.EscapeString(n.ID), n.Center.X, n.Center.Y)
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="6" fill="#ffffff" stroke="%s"/>`,
			-n.Width/2, -n.Height/2, n.Width, n.Height, stroke)
		fmt.Fprintf(&b, `<text text-anchor="middle" dominant-baseline="central">%s</text>`, html.EscapeString(n.Label))
		b.WriteString(`</g>`)
	}

	b.WriteString(`</g></svg>`)
	return b.String()
}
