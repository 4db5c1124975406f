package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	config := Default()
	config.Providers.OpenAIAPIKey = "openai-key"
	config.Providers.CartesiaAPIKey = "cartesia-key"
	return config
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			modify:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "empty address",
			modify:      func(c *Config) { c.Server.Address = "" },
			expectError: true,
			errorMsg:    "server config: address cannot be empty",
		},
		{
			name: "max flush shorter than min flush",
			modify: func(c *Config) {
				c.Audio.MinFlushDuration = 5 * time.Second
				c.Audio.MaxFlushDuration = time.Second
			},
			expectError: true,
			errorMsg:    "max_flush_duration",
		},
		{
			name:        "loudness threshold out of range",
			modify:      func(c *Config) { c.Audio.LoudnessThreshold = 1.5 },
			expectError: true,
			errorMsg:    "loudness_threshold",
		},
		{
			name:        "zero bootstrap threshold",
			modify:      func(c *Config) { c.Orchestrator.SpeechBootstrapThreshold = 0 },
			expectError: true,
			errorMsg:    "speech_bootstrap_threshold",
		},
		{
			name:        "missing openai key",
			modify:      func(c *Config) { c.Providers.OpenAIAPIKey = "" },
			expectError: true,
			errorMsg:    "OPENAI_API_KEY",
		},
		{
			name:        "groq without key",
			modify:      func(c *Config) { c.Providers.LLM = ProviderGroq },
			expectError: true,
			errorMsg:    "GROQ_API_KEY",
		},
		{
			name: "deepgram speech with key",
			modify: func(c *Config) {
				c.Providers.SpeechToText = ProviderDeepgram
				c.Providers.TextToSpeech = ProviderDeepgram
				c.Providers.DeepgramAPIKey = "deepgram-key"
			},
			expectError: false,
		},
		{
			name:        "unknown speech to text provider",
			modify:      func(c *Config) { c.Providers.SpeechToText = "whisper" },
			expectError: true,
			errorMsg:    "speech_to_text",
		},
		{
			name:        "unknown caption backend",
			modify:      func(c *Config) { c.Captions.Backend = "redis" },
			expectError: true,
			errorMsg:    "captions config",
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Captions.Backend = CaptionsSQLite
				c.Captions.Path = ""
			},
			expectError: true,
			errorMsg:    "path cannot be empty",
		},
		{
			name:        "unknown log level",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "logging config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Fatalf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("DEEPGRAM_API_KEY", "deepgram-key")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("CARTESIA_API_KEY", "")

	content := `
server:
  address: "127.0.0.1:9000"
audio:
  capture: true
  input_device: "USB Mic"
orchestrator:
  silence_period: 2s
  instructions: "Keep it short."
providers:
  speech_to_text: deepgram
  text_to_speech: deepgram
captions:
  backend: sqlite
  path: /tmp/captions.db
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if config.Server.Address != "127.0.0.1:9000" {
		t.Fatalf("expected address from file, got %q", config.Server.Address)
	}
	if config.Server.LogDir != "." {
		t.Fatalf("expected default log dir, got %q", config.Server.LogDir)
	}
	if !config.Audio.Capture || config.Audio.InputDevice != "USB Mic" {
		t.Fatalf("expected local capture on USB Mic, got %+v", config.Audio)
	}
	if config.Audio.OutputDevice != "VB-Cable" {
		t.Fatalf("expected default output device, got %q", config.Audio.OutputDevice)
	}
	if config.Orchestrator.SilencePeriod != 2*time.Second {
		t.Fatalf("expected silence period 2s, got %s", config.Orchestrator.SilencePeriod)
	}
	if config.Orchestrator.ThinkingPeriod != 5*time.Second {
		t.Fatalf("expected default thinking period, got %s", config.Orchestrator.ThinkingPeriod)
	}
	if config.Orchestrator.Instructions != "Keep it short." {
		t.Fatalf("unexpected instructions %q", config.Orchestrator.Instructions)
	}
	if config.Providers.DeepgramAPIKey != "deepgram-key" {
		t.Fatalf("expected deepgram key from environment")
	}
	if config.Captions.Backend != CaptionsSQLite {
		t.Fatalf("expected sqlite backend, got %q", config.Captions.Backend)
	}
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("CARTESIA_API_KEY", "cartesia-key")

	config, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if config.Providers.LLM != ProviderOpenAI || config.Providers.TextToSpeech != ProviderCartesia {
		t.Fatalf("unexpected default providers %+v", config.Providers)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("CARTESIA_API_KEY", "cartesia-key")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("orchestrator:\n  thinking_period: 0s\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "thinking_period") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
