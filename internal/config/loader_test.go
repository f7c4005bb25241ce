package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nami-os/nami/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
live:
  api_key: test-key
  model: gemini-2.5-flash-native-audio-preview-09-2025
  connect_timeout: 10s
audio:
  talk_threshold: 0.02
  send_queue_size: 16
personas:
  - id: amara
    label: Nami Pink
    voice: Kore
    instructions: Be kind.
history:
  capacity: 5
creative:
  image_model: gemini-3-pro-image-preview
  gallery_capacity: 8
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogLevelDebug {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogLevelDebug)
	}
	if cfg.Live.ConnectTimeout != 10*time.Second {
		t.Errorf("connect_timeout: got %s, want 10s", cfg.Live.ConnectTimeout)
	}
	if cfg.Audio.TalkThreshold != 0.02 {
		t.Errorf("talk_threshold: got %v, want 0.02", cfg.Audio.TalkThreshold)
	}
	if len(cfg.Personas) != 1 || cfg.Personas[0].ID != "amara" {
		t.Errorf("personas: got %+v", cfg.Personas)
	}
	if cfg.History.Capacity != 5 {
		t.Errorf("history.capacity: got %d, want 5", cfg.History.Capacity)
	}
	if cfg.Creative.GalleryCapacity != 8 {
		t.Errorf("creative.gallery_capacity: got %d, want 8", cfg.Creative.GalleryCapacity)
	}
}

func TestLoadFromReader_EmptyConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Personas) != 0 {
		t.Errorf("expected no personas, got %d", len(cfg.Personas))
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_DuplicatePersonaIDs(t *testing.T) {
	t.Parallel()
	yaml := `
personas:
  - id: amara
    voice: Kore
    instructions: Hi.
  - id: amara
    voice: Puck
    instructions: Hello.
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate persona ids, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_PersonaRequiredFields(t *testing.T) {
	t.Parallel()
	yaml := `
personas:
  - label: Nameless
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for incomplete persona, got nil")
	}
	for _, want := range []string{".id is required", ".voice is required", ".instructions is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q, got: %v", want, err)
		}
	}
}

func TestValidate_TalkThresholdRange(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  talk_threshold: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range talk threshold, got nil")
	}
	if !strings.Contains(err.Error(), "talk_threshold") {
		t.Errorf("error should mention talk_threshold, got: %v", err)
	}
}

func TestValidate_NegativeValuesRejected(t *testing.T) {
	t.Parallel()
	yaml := `
live:
  connect_timeout: -1s
audio:
  send_queue_size: -4
history:
  capacity: -1
creative:
  gallery_capacity: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative values, got nil")
	}
	for _, want := range []string{"connect_timeout", "send_queue_size", "history.capacity", "gallery_capacity"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
