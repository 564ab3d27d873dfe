package client

import (
	"context"

	"github.com/menta2k/rect-transformer/pkg/types"
)

// VisionClient locates the primary subject of a base64-encoded image.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
