package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/rect-transformer/pkg/client"
	"github.com/menta2k/rect-transformer/pkg/types"
)

// defaultTimeout bounds a request whose context has no deadline. Vision
// models on CPU are slow.
const defaultTimeout = 300 * time.Second

// DefaultURL is used when no server URL is configured.
const DefaultURL = "http://localhost:11434"

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a client for the Ollama server at ollamaURL, or
// DefaultURL when it is empty. Any path, such as /api/chat, is ignored.
func NewClient(ollamaURL string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// AnalyzeImage sends the image and prompt to model and parses the JSON answer.
// Answers that are not usable JSON yield a centered low-confidence fallback.
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	options := map[string]any{}
	modelLower := strings.ToLower(model)
	if strings.Contains(modelLower, "minicpm-v4") || strings.Contains(modelLower, "minicpm-v-4") {
		options["temperature"] = 0.7
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []api.ImageData{api.ImageData(imgBytes)},
		}},
		Stream:  &stream,
		Options: options,
	}

	var content string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}
	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return client.ParseAnalysisResult(content), nil
}
