package health

import (
	"context"
	"fmt"
)

// ChannelChecker reports the voice channel as unready while it sits in a
// failed state. state returns the channel's current lifecycle state name.
func ChannelChecker(state func() string) Checker {
	return Checker{
		Name: "channel",
		Check: func(context.Context) error {
			if s := state(); s == "failed" {
				return fmt.Errorf("voice channel in state %q", s)
			}
			return nil
		},
	}
}

// APIKeyChecker fails readiness until a live API key is configured. key is
// read on every probe so hot-reloaded configuration is picked up.
func APIKeyChecker(key func() string) Checker {
	return Checker{
		Name: "api_key",
		Check: func(context.Context) error {
			if key() == "" {
				return fmt.Errorf("live API key not configured")
			}
			return nil
		},
	}
}
