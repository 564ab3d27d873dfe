package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/rect-transformer/pkg/types"
)

// Processor handles image loading, saving and ROI rendering
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// LoadImageSmart loads an image from either a file path or an http(s) URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rect-transformer/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.decodeImageFromBytes(data)
}

func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		return writeWebP(f, img, quality, lossless)
	case "png":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// writeWebP encodes img to w and closes it. A close error is returned when
// encoding succeeded.
func writeWebP(w io.WriteCloser, img image.Image, quality int, lossless bool) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close webp output: %w", cerr)
		}
	}()

	if err := webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)}); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	return nil
}

// PrepareImageForModel encodes an image as base64, shrinking its long side to maxDim when positive
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			if b.Dx() >= b.Dy() {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ImageSizeOf returns the pixel size of img.
func ImageSizeOf(img image.Image) types.ImageSize {
	b := img.Bounds()
	return types.ImageSize{Width: b.Dx(), Height: b.Dy()}
}

// CropRect crops the region covered by a rotated pixel rect.
//
// Without upright the result is the rect's axis-aligned bounding box, clipped
// to the image. With upright the crop is rotated so the rect's own axes line
// up with the output, then trimmed to the rect's width and height; areas
// outside the source image come out transparent.
func (p *Processor) CropRect(img image.Image, rect types.Rect, upright bool) (image.Image, error) {
	bounds := img.Bounds()
	x0, y0, x1, y1 := rect.Bounds()
	region := image.Rect(
		bounds.Min.X+int(math.Floor(x0)),
		bounds.Min.Y+int(math.Floor(y0)),
		bounds.Min.X+int(math.Ceil(x1)),
		bounds.Min.Y+int(math.Ceil(y1)),
	)

	if !upright {
		clipped := region.Intersect(bounds)
		if clipped.Empty() {
			return nil, fmt.Errorf("empty crop rectangle")
		}
		return imaging.Crop(img, clipped), nil
	}

	if region.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	// Paste onto a canvas of the full bounding box so the rect center stays
	// at the canvas center even when the rect leaves the image.
	canvas := imaging.New(region.Dx(), region.Dy(), color.NRGBA{})
	canvas = imaging.Paste(canvas, img, bounds.Min.Sub(region.Min))

	// imaging.Rotate turns counter-clockwise, which undoes a clockwise
	// rotation in image coordinates.
	rotated := imaging.Rotate(canvas, rect.Rotation*180/math.Pi, color.NRGBA{})

	w := max(1, int(math.Round(rect.Width)))
	h := max(1, int(math.Round(rect.Height)))
	return imaging.CropCenter(rotated, w, h), nil
}

// Overlay is a rect to draw in DrawOverlay.
type Overlay struct {
	Rect   types.Rect
	Color  color.NRGBA
	Center bool
}

// DrawOverlay returns a copy of img with the outlines of the given rects drawn on it
func (p *Processor) DrawOverlay(img image.Image, overlays ...Overlay) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	stroke := int(math.Max(2, 0.004*float64(min(b.Dx(), b.Dy()))))
	cross := int(math.Max(4, 0.01*float64(min(b.Dx(), b.Dy()))))

	for _, o := range overlays {
		corners := o.Rect.Corners()
		for i := range corners {
			a, c := corners[i], corners[(i+1)%len(corners)]
			drawLine(out, a[0], a[1], c[0], c[1], o.Color, stroke)
		}
		if o.Center {
			cx, cy := o.Rect.XCenter, o.Rect.YCenter
			drawLine(out, cx-float64(cross), cy, cx+float64(cross), cy, o.Color, 1)
			drawLine(out, cx, cy-float64(cross), cx, cy+float64(cross), o.Color, 1)
		}
	}

	return out
}

// drawLine draws a segment by stepping along its longer axis, stamping a
// stroke x stroke square at every step.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 float64, c color.NRGBA, stroke int) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	if steps == 0 {
		steps = 1
	}
	half := stroke / 2
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		px := int(math.Round(x0 + (x1-x0)*t))
		py := int(math.Round(y0 + (y1-y0)*t))
		for dy := -half; dy < stroke-half; dy++ {
			for dx := -half; dx < stroke-half; dx++ {
				setPixel(img, px+dx, py+dy, c)
			}
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}
