package geometry

import (
	"fmt"
	"math"
)

// Side names one of the four anchor points of a node.
type Side string

const (
	SideTop    Side = "top"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
	SideRight  Side = "right"
)

// Sides lists every anchor side in a fixed order. Nearest-anchor searches
// iterate in this order so ties resolve deterministically.
var Sides = []Side{SideTop, SideRight, SideBottom, SideLeft}

// ParseSide validates a side name coming from the wire.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideTop, SideBottom, SideLeft, SideRight:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown anchor side %q", s)
}

// Node glyph dimensions before influence scaling.
const (
	NodeWidth  = 120.0
	NodeHeight = 40.0
)

// Influence scale bounds.
const (
	MinNodeScale = 1.0
	MaxNodeScale = 2.0
)

// AnchorPosition returns the midpoint of the given side of the box of size
// (baseWidth*scale, baseHeight*scale) centred on center.
func AnchorPosition(center Point, baseWidth, baseHeight float64, side Side, scale float64) Point {
	if scale <= 0 {
		scale = MinNodeScale
	}
	halfW := baseWidth * scale / 2
	halfH := baseHeight * scale / 2
	switch side {
	case SideTop:
		return Point{X: center.X, Y: center.Y - halfH}
	case SideBottom:
		return Point{X: center.X, Y: center.Y + halfH}
	case SideLeft:
		return Point{X: center.X - halfW, Y: center.Y}
	case SideRight:
		return Point{X: center.X + halfW, Y: center.Y}
	}
	return center
}

// Anchors returns all four anchor points of a node.
func Anchors(center Point, baseWidth, baseHeight, scale float64) map[Side]Point {
	out := make(map[Side]Point, len(Sides))
	for _, s := range Sides {
		out[s] = AnchorPosition(center, baseWidth, baseHeight, s, scale)
	}
	return out
}

// Contains reports whether p lies inside the scaled node box.
func Contains(center Point, baseWidth, baseHeight, scale float64, p Point) bool {
	if scale <= 0 {
		scale = MinNodeScale
	}
	return math.Abs(p.X-center.X) <= baseWidth*scale/2 &&
		math.Abs(p.Y-center.Y) <= baseHeight*scale/2
}

// InfluenceScale maps an influence value onto [MinNodeScale, MaxNodeScale]
// relative to the largest absolute influence currently shown.
func InfluenceScale(influence, maxAbsInfluence float64) float64 {
	if maxAbsInfluence <= 0 || math.IsNaN(influence) {
		return MinNodeScale
	}
	ratio := math.Min(math.Abs(influence)/maxAbsInfluence, 1)
	return MinNodeScale + ratio*(MaxNodeScale-MinNodeScale)
}
