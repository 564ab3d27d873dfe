package saliency

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareImage returns a black 200x100 image with a white 40x40 square whose
// top-left corner is at (80, 30).
func squareImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if x >= 80 && x < 120 && y >= 30 && y < 70 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLocate(t *testing.T) {
	box, score, ok := New().Locate(squareImage())

	require.True(t, ok)
	assert.InDelta(t, 0.4, box.X, 1e-9)
	assert.InDelta(t, 0.3, box.Y, 1e-9)
	assert.InDelta(t, 0.2, box.W, 1e-9)
	assert.InDelta(t, 0.4, box.H, 1e-9)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestLocateDownscaled(t *testing.T) {
	d := NewWithConfig(Config{EdgeWeight: 0.6, BrightnessWeight: 0.4, Threshold: 0.5, MaxSide: 100})

	box, _, ok := d.Locate(squareImage())

	require.True(t, ok)
	assert.InDelta(t, 0.4, box.X, 0.03)
	assert.InDelta(t, 0.3, box.Y, 0.03)
	assert.InDelta(t, 0.2, box.W, 0.05)
	assert.InDelta(t, 0.4, box.H, 0.05)
}

func TestLocateNothing(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"black", image.NewRGBA(image.Rect(0, 0, 50, 50))},
		{"too small", image.NewRGBA(image.Rect(0, 0, 2, 2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := New().Locate(tt.img)
			assert.False(t, ok)
		})
	}
}

func TestLocateFlat(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 30, 20))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	box, _, ok := New().Locate(img)

	require.True(t, ok)
	assert.InDelta(t, 0.0, box.X, 1e-9)
	assert.InDelta(t, 1.0, box.W, 1e-9)
	assert.InDelta(t, 1.0, box.H, 1e-9)
}

func TestAnalyzeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, squareImage()))
	imgB64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	result, err := New().AnalyzeImage(context.Background(), "", "", imgB64)

	require.NoError(t, err)
	assert.Equal(t, "salient region", result.Primary.Label)
	assert.InDelta(t, 0.5, result.Primary.Cx, 1e-9)
	assert.InDelta(t, 0.5, result.Primary.Cy, 1e-9)
}

func TestAnalyzeImageNoSubject(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 10, 10))))

	result, err := New().AnalyzeImage(context.Background(), "", "", base64.StdEncoding.EncodeToString(buf.Bytes()))

	require.NoError(t, err)
	assert.Equal(t, "none", result.Primary.Label)
}

func TestAnalyzeImageErrors(t *testing.T) {
	_, err := New().AnalyzeImage(context.Background(), "", "", "not base64!")
	assert.ErrorContains(t, err, "base64")

	_, err = New().AnalyzeImage(context.Background(), "", "", base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.ErrorContains(t, err, "decode image")
}
