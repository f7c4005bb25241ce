package creative

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Default generation models.
const (
	DefaultImageModel = "gemini-3-pro-image-preview"
	DefaultVideoModel = "veo-3.1-fast-generate-preview"

	videoPollInterval = 10 * time.Second
)

// GenAIGenerator implements [Generator] over the Gemini API.
type GenAIGenerator struct {
	client     *genai.Client
	imageModel string
	videoModel string
}

var _ Generator = (*GenAIGenerator)(nil)

// GenAIOption is a functional option for configuring a GenAIGenerator.
type GenAIOption func(*GenAIGenerator)

// WithImageModel overrides the image generation model.
func WithImageModel(model string) GenAIOption {
	return func(g *GenAIGenerator) {
		if model != "" {
			g.imageModel = model
		}
	}
}

// WithVideoModel overrides the video generation model.
func WithVideoModel(model string) GenAIOption {
	return func(g *GenAIGenerator) {
		if model != "" {
			g.videoModel = model
		}
	}
}

// NewGenAIGenerator creates a generator authenticated with the given API key.
func NewGenAIGenerator(ctx context.Context, apiKey string, opts ...GenAIOption) (*GenAIGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creative: genai client: %w", err)
	}
	g := &GenAIGenerator{
		client:     client,
		imageModel: DefaultImageModel,
		videoModel: DefaultVideoModel,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// GenerateImage requests a single image and returns the first inline image
// part of the response.
func (g *GenAIGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, part.InlineData.MIMEType, nil
			}
		}
	}
	return nil, "", fmt.Errorf("response carried no image data")
}

// GenerateVideo starts a Veo operation and polls it to completion.
func (g *GenAIGenerator) GenerateVideo(ctx context.Context, prompt string) ([]byte, string, error) {
	op, err := g.client.Models.GenerateVideos(ctx, g.videoModel, prompt, nil, nil)
	if err != nil {
		return nil, "", fmt.Errorf("start video operation: %w", err)
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(videoPollInterval):
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, "", fmt.Errorf("poll video operation: %w", err)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, "", fmt.Errorf("operation finished with no videos")
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil || len(video.VideoBytes) == 0 {
		return nil, "", fmt.Errorf("operation finished with empty video payload")
	}
	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return video.VideoBytes, mimeType, nil
}
