// Package transform shifts, rotates, squares and scales rotated rectangles.
//
// A Transformer is built once from a validated Config and applied to any
// number of rects. It holds no mutable state and is safe for concurrent use.
//
// Absolute rects are transformed directly in pixels. Normalized rects are
// transformed as if they were in pixels: shifts along rotated axes and the
// square policy are computed in the image's pixel space and converted back.
package transform

import (
	"math"

	"github.com/menta2k/rect-transformer/pkg/types"
)

// Transformer applies one Config to rects.
type Transformer struct {
	cfg Config
}

// New creates a Transformer for cfg.
func New(cfg Config) *Transformer {
	return &Transformer{cfg: cfg}
}

// NewFromOptions validates opts and creates a Transformer.
func NewFromOptions(opts Options) (*Transformer, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Config returns the configuration the Transformer applies.
func (t *Transformer) Config() Config {
	return t.cfg
}

// Absolute transforms a rect given in pixels.
func (t *Transformer) Absolute(rect types.Rect) types.Rect {
	return types.Rect(t.apply(geometry(rect), unitPixels))
}

// Normalized transforms a rect given in fractions of an image of the given size.
//
// With a square policy the result is square in pixels, not in normalized
// units: on a non-square image the returned Width and Height differ. For
// example a 0.2x0.1 rect on a 100x50 image squared to its long side becomes
// 20x20 pixels, which is 0.2x0.4 normalized.
func (t *Transformer) Normalized(rect types.NormalizedRect, size types.ImageSize) types.NormalizedRect {
	px := pixelExtent{x: float64(size.Width), y: float64(size.Height)}
	return types.NormalizedRect(t.apply(geometry(rect), px))
}

// geometry mirrors the field layout of types.Rect and types.NormalizedRect
// so both convert to it directly.
type geometry struct {
	XCenter  float64
	YCenter  float64
	Width    float64
	Height   float64
	Rotation float64
	ID       int64
}

// pixelExtent is the number of pixels in one coordinate unit along each axis.
type pixelExtent struct {
	x, y float64
}

var unitPixels = pixelExtent{x: 1, y: 1}

func (t *Transformer) apply(g geometry, px pixelExtent) geometry {
	rotation := g.Rotation
	if delta, ok := t.cfg.Rotation.Delta(); ok {
		rotation = NormalizeRadians(rotation + delta)
	}

	if rotation == 0 {
		g.XCenter += g.Width * t.cfg.ShiftX
		g.YCenter += g.Height * t.cfg.ShiftY
	} else {
		dx := g.Width * px.x * t.cfg.ShiftX
		dy := g.Height * px.y * t.cfg.ShiftY
		sin, cos := math.Sincos(rotation)
		g.XCenter += (dx*cos - dy*sin) / px.x
		g.YCenter += (dx*sin + dy*cos) / px.y
	}

	width, height := g.Width, g.Height
	switch t.cfg.Square {
	case SquareLong:
		side := math.Max(width*px.x, height*px.y)
		width, height = side/px.x, side/px.y
	case SquareShort:
		side := math.Min(width*px.x, height*px.y)
		width, height = side/px.x, side/px.y
	}

	g.Width = width * t.cfg.ScaleX
	g.Height = height * t.cfg.ScaleY
	g.Rotation = rotation
	return g
}

// NormalizeRadians wraps angle into [-Pi, Pi).
func NormalizeRadians(angle float64) float64 {
	return angle - 2*math.Pi*math.Floor((angle+math.Pi)/(2*math.Pi))
}
