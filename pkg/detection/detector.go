package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/menta2k/rect-transformer/pkg/client"
	"github.com/menta2k/rect-transformer/pkg/types"
)

// DefaultPrompt is the default prompt for subject detection
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner of the box.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most salient object).
- cx,cy is the center of the box.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return label "none" with confidence 0.0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// maxTags caps the number of tags kept from a model answer.
const maxTags = 5

// fallbackIndicators mark answers the vision client produced without a real detection.
var fallbackIndicators = []string{"unclear", "parse", "error", "fallback", "non-json"}

// Detector handles image subject detection using vision models
type Detector struct {
	client client.VisionClient
	prompt string
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient) *Detector {
	return &Detector{client: client, prompt: DefaultPrompt}
}

// WithPrompt returns a copy of the detector that sends prompt instead of DefaultPrompt.
func (d *Detector) WithPrompt(prompt string) *Detector {
	return &Detector{client: d.client, prompt: prompt}
}

// DetectSubject analyzes an image and detects the primary subject
func (d *Detector) DetectSubject(ctx context.Context, model, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, model, d.prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("subject detection failed: %w", err)
	}

	result.Primary.Box = clampBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)
	markFallback(result)

	return result, nil
}

// SeedRect returns the detected box as an unrotated normalized rect. It
// reports false when the model found no subject.
func SeedRect(result *types.AnalysisResult) (types.NormalizedRect, bool) {
	if result == nil || strings.EqualFold(result.Primary.Label, "none") {
		return types.NormalizedRect{}, false
	}
	box := result.Primary.Box
	if box.W <= 0 || box.H <= 0 {
		return types.NormalizedRect{}, false
	}
	return box.Rect(), true
}

// markFallback relabels answers that carry a fallback indicator as "none".
func markFallback(result *types.AnalysisResult) {
	label := strings.ToLower(result.Primary.Label)
	if label == "none" {
		return
	}
	description := strings.ToLower(result.Description)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) || strings.Contains(description, indicator) {
			result.Primary.Label = "none"
			result.Primary.Confidence = 0
			return
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampBox keeps the box inside the image.
func clampBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, trims and deduplicates tags, keeping at most maxTags
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxTags)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
