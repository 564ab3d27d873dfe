package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedRectToPixels(t *testing.T) {
	r := NormalizedRect{XCenter: 0.5, YCenter: 0.25, Width: 0.2, Height: 0.1, Rotation: 0.3, ID: 7}

	px := r.ToPixels(ImageSize{Width: 100, Height: 50})

	assert.InDelta(t, 50.0, px.XCenter, 1e-9)
	assert.InDelta(t, 12.5, px.YCenter, 1e-9)
	assert.InDelta(t, 20.0, px.Width, 1e-9)
	assert.InDelta(t, 5.0, px.Height, 1e-9)
	assert.Equal(t, 0.3, px.Rotation)
	assert.Equal(t, int64(7), px.ID)

	back := px.Normalize(ImageSize{Width: 100, Height: 50})
	assert.InDelta(t, r.XCenter, back.XCenter, 1e-9)
	assert.InDelta(t, r.Height, back.Height, 1e-9)
}

func TestImageSizeValid(t *testing.T) {
	assert.True(t, ImageSize{Width: 1, Height: 1}.Valid())
	assert.False(t, ImageSize{Width: 0, Height: 10}.Valid())
	assert.False(t, ImageSize{Width: 10, Height: -1}.Valid())
}

func TestRectCornersUnrotated(t *testing.T) {
	r := Rect{XCenter: 10, YCenter: 20, Width: 4, Height: 2}

	c := r.Corners()

	assert.Equal(t, [2]float64{8, 19}, c[0])
	assert.Equal(t, [2]float64{12, 19}, c[1])
	assert.Equal(t, [2]float64{12, 21}, c[2])
	assert.Equal(t, [2]float64{8, 21}, c[3])
}

func TestRectBoundsQuarterTurn(t *testing.T) {
	r := Rect{XCenter: 0, YCenter: 0, Width: 4, Height: 2, Rotation: math.Pi / 2}

	x0, y0, x1, y1 := r.Bounds()

	// A quarter turn swaps the extents.
	assert.InDelta(t, -1.0, x0, 1e-9)
	assert.InDelta(t, -2.0, y0, 1e-9)
	assert.InDelta(t, 1.0, x1, 1e-9)
	assert.InDelta(t, 2.0, y1, 1e-9)
}

func TestBoxRect(t *testing.T) {
	b := Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.2}

	r := b.Rect()

	assert.InDelta(t, 0.5, r.XCenter, 1e-9)
	assert.InDelta(t, 0.6, r.YCenter, 1e-9)
	assert.Equal(t, 0.5, r.Width)
	assert.Equal(t, 0.2, r.Height)
	assert.Zero(t, r.Rotation)
}
