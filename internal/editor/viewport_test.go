package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWheelZoomClamps(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{"zoom in a notch", []float64{-100}, 1.1},
		{"zoom out a notch", []float64{100}, 0.9},
		{"clamped at max", []float64{-5000}, MaxZoom},
		{"clamped at min", []float64{5000}, MinZoom},
		{"back from max", []float64{-5000, 500}, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViewportController(0)
			for _, d := range tt.deltas {
				v.Wheel(d)
			}
			assert.InDelta(t, tt.want, v.Scale(), 1e-9)
		})
	}
}

func TestGridCellSizeFollowsZoom(t *testing.T) {
	v := NewViewportController(30)
	v.SetScale(2)
	assert.InDelta(t, 60.0, v.GridCellSize(), 1e-9)
	v.SetScale(0.01)
	assert.InDelta(t, 6.0, v.GridCellSize(), 1e-9)
}

func TestPanDeltaIsScaled(t *testing.T) {
	v := NewViewportController(30)
	v.SetScale(2)

	_, ok := v.UpdatePan(pt(10, 10))
	assert.False(t, ok)

	v.BeginPan(pt(100, 100))
	delta, ok := v.UpdatePan(pt(110, 120))
	assert.True(t, ok)
	assert.Equal(t, pt(5, 10), delta)

	delta, _ = v.UpdatePan(pt(110, 120))
	assert.Equal(t, pt(0, 0), delta, "anchor follows the pointer")

	v.EndPan()
	assert.False(t, v.Panning())
}

func TestToCanvasRoundTrip(t *testing.T) {
	v := NewViewportController(30)
	v.SetScale(0.5)
	assert.Equal(t, pt(200, 80), v.ToCanvas(pt(100, 40)))
	assert.Equal(t, pt(100, 40), v.ToScreen(pt(200, 80)))
}
