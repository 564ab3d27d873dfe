package types

import "math"

// Rect is a rotated rectangle in absolute pixel coordinates.
// Rotation is in radians around the center.
type Rect struct {
	XCenter  float64 `json:"x_center"`
	YCenter  float64 `json:"y_center"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ID       int64   `json:"rect_id,omitempty"`
}

// NormalizedRect is a rotated rectangle whose center and size are fractions
// of the image width and height.
type NormalizedRect struct {
	XCenter  float64 `json:"x_center"`
	YCenter  float64 `json:"y_center"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ID       int64   `json:"rect_id,omitempty"`
}

// ImageSize is the pixel size of the image a NormalizedRect refers to.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive
func (s ImageSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// ToPixels converts the rect to absolute coordinates for an image of the given size.
func (r NormalizedRect) ToPixels(size ImageSize) Rect {
	w, h := float64(size.Width), float64(size.Height)
	return Rect{
		XCenter:  r.XCenter * w,
		YCenter:  r.YCenter * h,
		Width:    r.Width * w,
		Height:   r.Height * h,
		Rotation: r.Rotation,
		ID:       r.ID,
	}
}

// Normalize converts an absolute rect to fractions of the given image size.
func (r Rect) Normalize(size ImageSize) NormalizedRect {
	w, h := float64(size.Width), float64(size.Height)
	return NormalizedRect{
		XCenter:  r.XCenter / w,
		YCenter:  r.YCenter / h,
		Width:    r.Width / w,
		Height:   r.Height / h,
		Rotation: r.Rotation,
		ID:       r.ID,
	}
}

// Corners returns the four corners of the rotated rect, starting at the
// local top-left and going clockwise in image coordinates (y down).
func (r Rect) Corners() [4][2]float64 {
	hw, hh := r.Width/2, r.Height/2
	sin, cos := math.Sincos(r.Rotation)
	local := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}

	var out [4][2]float64
	for i, p := range local {
		out[i][0] = r.XCenter + p[0]*cos - p[1]*sin
		out[i][1] = r.YCenter + p[0]*sin + p[1]*cos
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the rotated rect as
// min x, min y, max x, max y.
func (r Rect) Bounds() (float64, float64, float64, float64) {
	c := r.Corners()
	x0, y0, x1, y1 := c[0][0], c[0][1], c[0][0], c[0][1]
	for _, p := range c[1:] {
		x0 = math.Min(x0, p[0])
		y0 = math.Min(y0, p[1])
		x1 = math.Max(x1, p[0])
		y1 = math.Max(y1, p[1])
	}
	return x0, y0, x1, y1
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect returns the box as an unrotated NormalizedRect around the same center.
func (b Box) Rect() NormalizedRect {
	return NormalizedRect{
		XCenter: b.X + b.W/2,
		YCenter: b.Y + b.H/2,
		Width:   b.W,
		Height:  b.H,
	}
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
