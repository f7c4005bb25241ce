// Package config defines the YAML configuration schema for namid and the
// loader, validator, and file watcher that go with it.
package config

import "time"

// LogLevel represents the logging verbosity.
type LogLevel string

// Valid log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether the log level is one of the known values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Config is the root configuration for the namid daemon.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Live     LiveConfig      `yaml:"live"`
	Audio    AudioConfig     `yaml:"audio"`
	Personas []PersonaConfig `yaml:"personas"`
	History  HistoryConfig   `yaml:"history"`
	Creative CreativeConfig  `yaml:"creative"`
}

// ServerConfig holds the HTTP control-plane settings.
type ServerConfig struct {
	// ListenAddr is the address the status/metrics server binds to
	// (e.g., ":8080" or "127.0.0.1:8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel sets logging verbosity. Defaults to "info" when empty.
	LogLevel LogLevel `yaml:"log_level"`
}

// LiveConfig configures the realtime voice provider.
type LiveConfig struct {
	// APIKey authenticates against the provider. May also be supplied via
	// the GEMINI_API_KEY environment variable; the config value wins.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default live model.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's websocket endpoint. Mostly useful
	// for tests and proxies.
	BaseURL string `yaml:"base_url"`

	// ConnectTimeout bounds session establishment. Defaults to 15s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// AudioConfig tunes the capture pipeline.
type AudioConfig struct {
	// TalkThreshold is the mean absolute sample level above which a frame
	// counts as speech. Defaults to 0.01.
	TalkThreshold float64 `yaml:"talk_threshold"`

	// SendQueueSize bounds the number of audio chunks buffered while a
	// session is still connecting. Defaults to 32.
	SendQueueSize int `yaml:"send_queue_size"`
}

// PersonaConfig describes one selectable companion persona. When the list is
// empty the built-in persona set is used; the first entry becomes the active
// persona at startup.
type PersonaConfig struct {
	// ID is the stable identifier, also used as the theme name on the
	// switch_theme tool surface.
	ID string `yaml:"id"`

	// Label is the human-readable display name.
	Label string `yaml:"label"`

	// Voice is the live provider's voice preset (e.g., "Kore").
	Voice string `yaml:"voice"`

	// Instructions is the system prompt establishing the personality.
	Instructions string `yaml:"instructions"`
}

// HistoryConfig bounds the utterance history kept in memory.
type HistoryConfig struct {
	// Capacity is the maximum number of distinct utterances retained.
	// Defaults to 10.
	Capacity int `yaml:"capacity"`
}

// CreativeConfig configures the image and video generation studio.
type CreativeConfig struct {
	// ImageModel overrides the default image generation model.
	ImageModel string `yaml:"image_model"`

	// VideoModel overrides the default video generation model.
	VideoModel string `yaml:"video_model"`

	// GalleryCapacity bounds the number of generated assets retained.
	// Defaults to 32.
	GalleryCapacity int `yaml:"gallery_capacity"`
}
