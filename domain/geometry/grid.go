package geometry

import "math"

// DefaultCellSize is the alignment grid spacing in canvas pixels.
const DefaultCellSize = 30.0

// Snap quantizes value to the nearest multiple of cellSize. A value exactly
// half way between two boundaries goes to the lower one.
func Snap(value, cellSize float64) float64 {
	if cellSize <= 0 {
		return value
	}
	base := math.Floor(value/cellSize) * cellSize
	if value-base <= cellSize/2 {
		return base
	}
	return base + cellSize
}

// SnapPoint snaps both axes independently.
func SnapPoint(p Point, cellSize float64) Point {
	return Point{X: Snap(p.X, cellSize), Y: Snap(p.Y, cellSize)}
}

// ClampNonNegative floors both coordinates at zero. Used while a node is being
// dragged; snapping happens only when it is dropped.
func ClampNonNegative(p Point) Point {
	return Point{X: math.Max(p.X, 0), Y: math.Max(p.Y, 0)}
}
