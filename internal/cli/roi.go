package cli

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/menta2k/rect-transformer/internal/config"
	"github.com/menta2k/rect-transformer/pkg/client"
	"github.com/menta2k/rect-transformer/pkg/detection"
	"github.com/menta2k/rect-transformer/pkg/llamacpp"
	"github.com/menta2k/rect-transformer/pkg/node"
	"github.com/menta2k/rect-transformer/pkg/ollama"
	"github.com/menta2k/rect-transformer/pkg/processing"
	"github.com/menta2k/rect-transformer/pkg/saliency"
	"github.com/menta2k/rect-transformer/pkg/types"
)

var (
	seedColor = color.NRGBA{0, 255, 0, 255}   // detected box
	roiColor  = color.NRGBA{255, 204, 0, 255} // transformed rect
)

// roiReport is written next to the crops as roi.json.
type roiReport struct {
	RunID     string                `json:"run_id"`
	Image     string                `json:"image"`
	ImageSize types.ImageSize       `json:"image_size"`
	Detection *types.AnalysisResult `json:"detection"`
	Seed      types.NormalizedRect  `json:"seed"`
	ROI       types.NormalizedRect  `json:"roi"`
	ROIPixels types.Rect            `json:"roi_pixels"`
	Crop      string                `json:"crop"`
	Overlay   string                `json:"overlay,omitempty"`
}

func newROICommand(loadConfig configLoader) *cobra.Command {
	var imagePath, outDir, model, url, backend string

	cmd := &cobra.Command{
		Use:   "roi",
		Short: "Detect the main subject of an image and crop its transformed rect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outDir != "" {
				cfg.Output.Dir = outDir
			}
			if model != "" {
				cfg.Vision.Model = model
			}
			if url != "" {
				cfg.Vision.URL = url
			}
			if backend != "" {
				cfg.Vision.Backend = backend
			}

			visionClient, err := newVisionClient(cfg.Vision)
			if err != nil {
				return err
			}
			return runROI(cmd, cfg, imagePath, visionClient)
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "input image path or URL (jpg/png/webp)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (overrides output.dir)")
	cmd.Flags().StringVar(&model, "model", "", "vision model (overrides vision.model)")
	cmd.Flags().StringVar(&url, "url", "", "model server URL (overrides vision.url)")
	cmd.Flags().StringVar(&backend, "backend", "", "detection backend: ollama, llamacpp or saliency (overrides vision.backend)")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newVisionClient(cfg config.VisionConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case config.BackendSaliency:
		return saliency.New(), nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	case config.BackendOllama, "":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown detection backend %q", cfg.Backend)
	}
}

func runROI(cmd *cobra.Command, cfg *config.Config, imagePath string, visionClient client.VisionClient) error {
	ctx := cmd.Context()
	runID := uuid.New().String()
	logger := loggerFromContext(ctx).With("run", runID)

	contract, err := cfg.Contract()
	if err != nil {
		return err
	}
	n, err := node.New(contract, cfg.Transform, node.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	processor := processing.NewProcessor()
	img, err := processor.LoadImageSmart(imagePath)
	if err != nil {
		return err
	}
	size := processing.ImageSizeOf(img)

	imgB64, err := processor.PrepareImageForModel(img, cfg.Vision.SendFormat, cfg.Vision.SendSize, cfg.Vision.SendQuality)
	if err != nil {
		return err
	}

	result, err := detection.NewDetector(visionClient).DetectSubject(ctx, cfg.Vision.Model, imgB64)
	if err != nil {
		return err
	}
	seed, ok := detection.SeedRect(result)
	if !ok {
		return fmt.Errorf("no subject found in %s (%s)", imagePath, result.Description)
	}
	logger.Info("subject detected",
		"label", result.Primary.Label,
		"confidence", result.Primary.Confidence,
		"x_center", seed.XCenter,
		"y_center", seed.YCenter,
		"width", seed.Width,
		"height", seed.Height)

	roi, err := transformSeed(n, seed, size)
	if err != nil {
		return err
	}
	roiPixels := roi.ToPixels(size)
	logger.Info("roi",
		"x_center", roiPixels.XCenter,
		"y_center", roiPixels.YCenter,
		"width", roiPixels.Width,
		"height", roiPixels.Height,
		"rotation", roiPixels.Rotation)

	base := baseName(imagePath)
	ext := strings.ToLower(cfg.Output.Format)
	report := roiReport{
		RunID:     runID,
		Image:     imagePath,
		ImageSize: size,
		Detection: result,
		Seed:      seed,
		ROI:       roi,
		ROIPixels: roiPixels,
		Crop:      filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_roi.%s", base, ext)),
	}

	crop, err := processor.CropRect(img, roiPixels, cfg.Output.Upright)
	if err != nil {
		return fmt.Errorf("failed to crop roi: %w", err)
	}
	if err := processor.SaveImage(crop, report.Crop, ext, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
		return fmt.Errorf("failed to save %s: %w", report.Crop, err)
	}
	logger.Info("wrote", "path", report.Crop)

	if cfg.Output.DebugOverlay {
		report.Overlay = filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_overlay.png", base))
		overlay := processor.DrawOverlay(img,
			processing.Overlay{Rect: seed.ToPixels(size), Color: seedColor},
			processing.Overlay{Rect: roiPixels, Color: roiColor, Center: true},
		)
		if err := processor.SaveImage(overlay, report.Overlay, "png", 0, false); err != nil {
			return fmt.Errorf("failed to save %s: %w", report.Overlay, err)
		}
		logger.Info("wrote", "path", report.Overlay)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	reportPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_roi.json", base))
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", reportPath, err)
	}
	logger.Info("wrote", "path", reportPath)

	return nil
}

// transformSeed runs the seed through the node in whichever coordinate
// space the node is wired for and returns the result normalized.
func transformSeed(n *node.Node, seed types.NormalizedRect, size types.ImageSize) (types.NormalizedRect, error) {
	in := node.Packet{}
	if n.Contract().Rect {
		px := seed.ToPixels(size)
		in.Rect = &px
	} else {
		in.NormRect = &seed
		in.ImageSize = &size
	}

	out, ok := n.Process(in)
	switch {
	case !ok:
		return types.NormalizedRect{}, fmt.Errorf("transform node produced no output")
	case out.Rect != nil:
		return out.Rect.Normalize(size), nil
	default:
		return *out.NormRect, nil
	}
}

// baseName returns the file name of a path or URL without its extension.
func baseName(source string) string {
	base := filepath.Base(strings.SplitN(source, "?", 2)[0])
	if base = strings.TrimSuffix(base, filepath.Ext(base)); base == "" || base == "." || base == "/" {
		return "image"
	}
	return base
}
