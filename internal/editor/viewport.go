package editor

import (
	"math"

	"gocausal/domain/geometry"
)

// Zoom limits and wheel sensitivity.
const (
	MinZoom        = 0.2
	MaxZoom        = 2.0
	WheelZoomSpeed = 0.001
)

// ViewportController tracks the zoom scale and an in-progress pan. It only
// computes deltas; the canvas applies them to node positions.
type ViewportController struct {
	scale    float64
	baseCell float64

	panning bool
	anchor  geometry.Point
}

// NewViewportController starts at scale 1 over a grid of baseCell pixels.
func NewViewportController(baseCell float64) *ViewportController {
	if baseCell <= 0 {
		baseCell = geometry.DefaultCellSize
	}
	return &ViewportController{scale: 1, baseCell: baseCell}
}

// Scale returns the current zoom factor.
func (v *ViewportController) Scale() float64 { return v.scale }

// Panning reports whether a pan gesture is active.
func (v *ViewportController) Panning() bool { return v.panning }

// BeginPan records the press position over empty background.
func (v *ViewportController) BeginPan(pixel geometry.Point) {
	v.panning = true
	v.anchor = pixel
}

// UpdatePan returns the canvas-space translation for a pointer move and
// moves the anchor to pixel. ok is false when no pan is active.
func (v *ViewportController) UpdatePan(pixel geometry.Point) (delta geometry.Point, ok bool) {
	if !v.panning {
		return geometry.Point{}, false
	}
	delta = pixel.Sub(v.anchor).Scale(1 / v.scale)
	v.anchor = pixel
	return delta, true
}

// EndPan finishes the pan gesture.
func (v *ViewportController) EndPan() { v.panning = false }

// Wheel applies a wheel delta and returns the new scale.
func (v *ViewportController) Wheel(deltaY float64) float64 {
	v.scale = clampZoom(v.scale - deltaY*WheelZoomSpeed)
	return v.scale
}

// SetScale restores a zoom factor, clamped to the allowed range.
func (v *ViewportController) SetScale(scale float64) { v.scale = clampZoom(scale) }

// GridCellSize is the on-screen spacing of the background grid: the grid is
// redrawn at the zoomed cell size instead of being scaled as a bitmap.
func (v *ViewportController) GridCellSize() float64 { return v.baseCell * v.scale }

// ToCanvas converts a pointer position relative to the canvas element into
// canvas coordinates.
func (v *ViewportController) ToCanvas(pixel geometry.Point) geometry.Point {
	return pixel.Scale(1 / v.scale)
}

// ToScreen is the inverse of ToCanvas.
func (v *ViewportController) ToScreen(p geometry.Point) geometry.Point {
	return p.Scale(v.scale)
}

func clampZoom(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Min(math.Max(s, MinZoom), MaxZoom)
}
