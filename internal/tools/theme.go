package tools

import (
	"fmt"
	"log/slog"

	"github.com/nami-os/nami/internal/persona"
	"github.com/nami-os/nami/pkg/live"
)

// ThemeListener is told about successful theme switches.
type ThemeListener func(p persona.Persona)

// SwitchTheme builds the switch_theme tool over the given registry. The
// argument value must name a registered persona exactly; near misses are
// rejected with a suggestion in the log so hallucinated theme names are easy
// to spot. listener may be nil.
func SwitchTheme(reg *persona.Registry, logger *slog.Logger, listener ThemeListener) Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return Tool{
		Definition: live.ToolDefinition{
			Name:        "switch_theme",
			Description: "Switches the interface theme and companion persona.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"theme": map[string]any{
						"type": "string",
						"enum": reg.IDs(),
					},
				},
				"required": []string{"theme"},
			},
		},
		Handler: func(args map[string]any) (map[string]any, error) {
			theme, ok := args["theme"].(string)
			if !ok || theme == "" {
				return nil, fmt.Errorf("%w: theme must be a non-empty string", ErrUnknownArgument)
			}

			p, err := reg.Activate(theme)
			if err != nil {
				if hint, found := reg.Closest(theme); found {
					logger.Warn("theme not recognised", "theme", theme, "closest", hint)
				} else {
					logger.Warn("theme not recognised", "theme", theme)
				}
				return nil, fmt.Errorf("%w: theme %q", ErrUnknownArgument, theme)
			}

			if listener != nil {
				listener(p)
			}
			return map[string]any{"theme": p.ID, "label": p.Label}, nil
		},
	}
}
