// Package saliency locates the most salient region of an image without a
// vision model. Saliency is a weighted sum of local edge strength and
// brightness; the subject box is the bounding box of every pixel whose
// saliency reaches a fraction of the image maximum.
package saliency

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/rect-transformer/pkg/types"
)

// Config holds the saliency weights and thresholds
type Config struct {
	EdgeWeight       float64
	BrightnessWeight float64
	// Threshold is the fraction of the maximum saliency a pixel needs to
	// count as subject.
	Threshold float64
	// MaxSide bounds the analysis resolution; larger images are downscaled.
	MaxSide int
}

// Detector finds salient regions
type Detector struct {
	config Config
}

// New creates a Detector with default configuration
func New() *Detector {
	return &Detector{config: Config{
		EdgeWeight:       0.6,
		BrightnessWeight: 0.4,
		Threshold:        0.5,
		MaxSide:          256,
	}}
}

// NewWithConfig creates a Detector with custom configuration
func NewWithConfig(config Config) *Detector {
	return &Detector{config: config}
}

// Locate returns the normalized box around the salient pixels and a score in
// [0,1]. It reports false for images without any saliency, such as flat black.
func (d *Detector) Locate(img image.Image) (types.Box, float64, bool) {
	if d.config.MaxSide > 0 {
		img = imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Box)
	}
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 3 || h < 3 {
		return types.Box{}, 0, false
	}

	sal := d.saliencyMap(src)
	var peak float64
	for _, v := range sal {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return types.Box{}, 0, false
	}

	cut := peak * d.config.Threshold
	x0, y0, x1, y1 := w, h, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sal[y*w+x] < cut {
				continue
			}
			x0, y0 = min(x0, x), min(y0, y)
			x1, y1 = max(x1, x), max(y1, y)
		}
	}

	var sum float64
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			sum += sal[y*w+x]
		}
	}
	score := sum / float64((x1-x0+1)*(y1-y0+1)) / peak

	return types.Box{
		X: float64(x0) / float64(w),
		Y: float64(y0) / float64(h),
		W: float64(x1-x0+1) / float64(w),
		H: float64(y1-y0+1) / float64(h),
	}, score, true
}

// saliencyMap returns one value per pixel, row-major. Border pixels get no
// edge term.
func (d *Detector) saliencyMap(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sal := make([]float64, w*h)
	neighbors := [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(x, y)
			brightness := (float64(c.R) + float64(c.G) + float64(c.B)) / (3 * 255)

			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for _, o := range neighbors {
					n := img.NRGBAAt(x+o[0], y+o[1])
					edge += (absDiff(c.R, n.R) + absDiff(c.G, n.G) + absDiff(c.B, n.B)) / (3 * 255)
				}
				edge /= 8
			}

			sal[y*w+x] = d.config.EdgeWeight*edge + d.config.BrightnessWeight*brightness
		}
	}
	return sal
}

func absDiff(a, b uint8) float64 {
	return math.Abs(float64(a) - float64(b))
}

// AnalyzeImage implements client.VisionClient. Model and prompt are ignored.
func (d *Detector) AnalyzeImage(_ context.Context, _, _, imgB64 string) (*types.AnalysisResult, error) {
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	box, score, ok := d.Locate(img)
	if !ok {
		return &types.AnalysisResult{
			Primary:     types.Primary{Label: "none"},
			Description: "no salient region",
		}, nil
	}

	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      "salient region",
			Confidence: score,
			Box:        box,
			Cx:         box.X + box.W/2,
			Cy:         box.Y + box.H/2,
		},
		Description: "most salient region by edge and brightness",
		Tags:        []string{"saliency"},
	}, nil
}
