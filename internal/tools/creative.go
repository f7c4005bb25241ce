package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nami-os/nami/internal/creative"
	"github.com/nami-os/nami/pkg/live"
)

// Generation deadlines. Video generation polls a long-running operation and
// needs far more headroom than a single image request.
const (
	imageTimeout = 2 * time.Minute
	videoTimeout = 10 * time.Minute
)

// GenerateImage builds the generate_image tool. The model supplies a text
// prompt; the resulting asset is stored in the studio gallery and its
// identifier is returned so the model can reference it.
func GenerateImage(studio *creative.Studio, logger *slog.Logger) Tool {
	return Tool{
		Definition: live.ToolDefinition{
			Name:        "generate_image",
			Description: "Generates an image from a text prompt and stores it in the creative gallery.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Description of the image to generate.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		Handler: func(args map[string]any) (map[string]any, error) {
			prompt, err := promptArg(args)
			if err != nil {
				return nil, err
			}

			ctx, cancel := context.WithTimeout(context.Background(), imageTimeout)
			defer cancel()

			asset, err := studio.GenerateImage(ctx, prompt)
			if err != nil {
				logger.Warn("image generation failed", "err", err)
				return nil, err
			}
			return assetResponse(asset), nil
		},
	}
}

// GenerateVideo builds the generate_video tool.
func GenerateVideo(studio *creative.Studio, logger *slog.Logger) Tool {
	return Tool{
		Definition: live.ToolDefinition{
			Name:        "generate_video",
			Description: "Generates a short video from a text prompt and stores it in the creative gallery.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Description of the video to generate.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		Handler: func(args map[string]any) (map[string]any, error) {
			prompt, err := promptArg(args)
			if err != nil {
				return nil, err
			}

			ctx, cancel := context.WithTimeout(context.Background(), videoTimeout)
			defer cancel()

			asset, err := studio.GenerateVideo(ctx, prompt)
			if err != nil {
				logger.Warn("video generation failed", "err", err)
				return nil, err
			}
			return assetResponse(asset), nil
		},
	}
}

func promptArg(args map[string]any) (string, error) {
	raw, ok := args["prompt"]
	if !ok {
		return "", fmt.Errorf("%w: missing \"prompt\"", ErrUnknownArgument)
	}
	prompt, ok := raw.(string)
	if !ok || prompt == "" {
		return "", fmt.Errorf("%w: \"prompt\" must be a non-empty string", ErrUnknownArgument)
	}
	return prompt, nil
}

func assetResponse(a creative.Asset) map[string]any {
	return map[string]any{
		"asset_id":  a.ID,
		"kind":      string(a.Kind),
		"mime_type": a.MIMEType,
	}
}
