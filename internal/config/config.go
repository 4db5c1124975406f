// Package config loads the server configuration from a YAML file and the
// provider API keys from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Captions     CaptionsConfig     `yaml:"captions"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// LogDir holds one context_<n> directory per connection.
	LogDir  string `yaml:"log_dir"`
	Metrics bool   `yaml:"metrics"`
}

type AudioConfig struct {
	InputSampleRate   int           `yaml:"input_sample_rate"`
	OutputSampleRate  int           `yaml:"output_sample_rate"`
	MinFlushDuration  time.Duration `yaml:"min_flush_duration"`
	MaxFlushDuration  time.Duration `yaml:"max_flush_duration"`
	LoudnessThreshold float64       `yaml:"loudness_threshold"`
	// OutputDevice is matched as a case-insensitive substring of the device
	// name. Empty plays on the system default.
	OutputDevice string `yaml:"output_device"`
	// Capture runs a single local session fed by the microphone. Websocket
	// clients then share that session.
	Capture     bool   `yaml:"capture"`
	InputDevice string `yaml:"input_device"`
}

type OrchestratorConfig struct {
	SilencePeriod            time.Duration `yaml:"silence_period"`
	ThinkingPeriod           time.Duration `yaml:"thinking_period"`
	SpeechBootstrapThreshold int           `yaml:"speech_bootstrap_threshold"`
	MaxConcurrentToolCalls   int           `yaml:"max_concurrent_tool_calls"`
	PromptHistoryLength      time.Duration `yaml:"prompt_history_length"`
	MaxFinegrainedLength     time.Duration `yaml:"max_finegrained_length"`
	RecallWindow             time.Duration `yaml:"recall_window"`
	MaxConcurrentCaptions    int           `yaml:"max_concurrent_captions"`
	Instructions             string        `yaml:"instructions"`
}

type ProvidersConfig struct {
	LLM          string `yaml:"llm"`
	LLMModel     string `yaml:"llm_model"`
	SpeechToText string `yaml:"speech_to_text"`
	TextToSpeech string `yaml:"text_to_speech"`
	Voice        string `yaml:"voice"`
	CaptionModel string `yaml:"caption_model"`
	RecallModel  string `yaml:"recall_model"`

	OpenAIAPIKey   string `yaml:"-"`
	GroqAPIKey     string `yaml:"-"`
	DeepgramAPIKey string `yaml:"-"`
	CartesiaAPIKey string `yaml:"-"`
}

type CaptionsConfig struct {
	// Backend is one of memory, file or sqlite.
	Backend string `yaml:"backend"`
	// Path is the sqlite database file, shared by all sessions.
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

const (
	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderDeepgram = "deepgram"
	ProviderCartesia = "cartesia"

	CaptionsMemory = "memory"
	CaptionsFile   = "file"
	CaptionsSQLite = "sqlite"
)

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address: ":8000",
			LogDir:  ".",
			Metrics: true,
		},
		Audio: AudioConfig{
			InputSampleRate:   48000,
			OutputSampleRate:  24000,
			MinFlushDuration:  2 * time.Second,
			MaxFlushDuration:  10 * time.Second,
			LoudnessThreshold: 0.02,
			OutputDevice:      "VB-Cable",
		},
		Orchestrator: OrchestratorConfig{
			SilencePeriod:            5 * time.Second,
			ThinkingPeriod:           5 * time.Second,
			SpeechBootstrapThreshold: 6,
			MaxConcurrentToolCalls:   8,
			PromptHistoryLength:      30 * time.Second,
			MaxFinegrainedLength:     30 * time.Second,
			RecallWindow:             5 * time.Second,
			MaxConcurrentCaptions:    4,
		},
		Providers: ProvidersConfig{
			LLM:          ProviderOpenAI,
			SpeechToText: ProviderOpenAI,
			TextToSpeech: ProviderCartesia,
		},
		Captions: CaptionsConfig{
			Backend: CaptionsFile,
			Path:    "captions.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file over the defaults, picks up the API keys
// from the environment and validates the result. An empty path only uses
// the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.Providers.loadKeys(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (p *ProvidersConfig) loadKeys(getenv func(string) string) {
	p.OpenAIAPIKey = getenv("OPENAI_API_KEY")
	p.GroqAPIKey = getenv("GROQ_API_KEY")
	p.DeepgramAPIKey = getenv("DEEPGRAM_API_KEY")
	p.CartesiaAPIKey = getenv("CARTESIA_API_KEY")
}

// Validate checks every section and reports the first problem found
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator config: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}
	if err := c.Captions.Validate(); err != nil {
		return fmt.Errorf("captions config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return errors.New("address cannot be empty")
	}
	if s.LogDir == "" {
		return errors.New("log_dir cannot be empty")
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.InputSampleRate <= 0 {
		return fmt.Errorf("input_sample_rate must be positive, got %d", a.InputSampleRate)
	}
	if a.OutputSampleRate <= 0 {
		return fmt.Errorf("output_sample_rate must be positive, got %d", a.OutputSampleRate)
	}
	if a.MinFlushDuration <= 0 {
		return fmt.Errorf("min_flush_duration must be positive, got %s", a.MinFlushDuration)
	}
	if a.MaxFlushDuration < a.MinFlushDuration {
		return fmt.Errorf("max_flush_duration (%s) must not be shorter than min_flush_duration (%s)",
			a.MaxFlushDuration, a.MinFlushDuration)
	}
	if a.LoudnessThreshold < 0 || a.LoudnessThreshold > 1 {
		return fmt.Errorf("loudness_threshold must be between 0 and 1, got %f", a.LoudnessThreshold)
	}
	return nil
}

func (o *OrchestratorConfig) Validate() error {
	if o.SilencePeriod <= 0 {
		return fmt.Errorf("silence_period must be positive, got %s", o.SilencePeriod)
	}
	if o.ThinkingPeriod <= 0 {
		return fmt.Errorf("thinking_period must be positive, got %s", o.ThinkingPeriod)
	}
	if o.SpeechBootstrapThreshold < 1 {
		return fmt.Errorf("speech_bootstrap_threshold must be at least 1, got %d", o.SpeechBootstrapThreshold)
	}
	if o.MaxConcurrentToolCalls < 1 {
		return fmt.Errorf("max_concurrent_tool_calls must be at least 1, got %d", o.MaxConcurrentToolCalls)
	}
	if o.MaxConcurrentCaptions < 1 {
		return fmt.Errorf("max_concurrent_captions must be at least 1, got %d", o.MaxConcurrentCaptions)
	}
	if o.PromptHistoryLength <= 0 || o.MaxFinegrainedLength <= 0 || o.RecallWindow <= 0 {
		return errors.New("prompt_history_length, max_finegrained_length and recall_window must be positive")
	}
	return nil
}

func (p *ProvidersConfig) Validate() error {
	// Captioning and recall always go through OpenAI.
	if p.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}

	switch p.LLM {
	case ProviderOpenAI:
	case ProviderGroq:
		if p.GroqAPIKey == "" {
			return errors.New("GROQ_API_KEY is not set")
		}
	default:
		return fmt.Errorf("llm must be %s or %s, got %q", ProviderOpenAI, ProviderGroq, p.LLM)
	}

	switch p.SpeechToText {
	case ProviderOpenAI:
	case ProviderDeepgram:
		if p.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY is not set")
		}
	default:
		return fmt.Errorf("speech_to_text must be %s or %s, got %q", ProviderOpenAI, ProviderDeepgram, p.SpeechToText)
	}

	switch p.TextToSpeech {
	case ProviderCartesia:
		if p.CartesiaAPIKey == "" {
			return errors.New("CARTESIA_API_KEY is not set")
		}
	case ProviderDeepgram:
		if p.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY is not set")
		}
	default:
		return fmt.Errorf("text_to_speech must be %s or %s, got %q", ProviderCartesia, ProviderDeepgram, p.TextToSpeech)
	}

	return nil
}

func (c *CaptionsConfig) Validate() error {
	switch c.Backend {
	case CaptionsMemory, CaptionsFile:
	case CaptionsSQLite:
		if c.Path == "" {
			return errors.New("path cannot be empty for the sqlite backend")
		}
	default:
		return fmt.Errorf("backend must be %s, %s or %s, got %q", CaptionsMemory, CaptionsFile, CaptionsSQLite, c.Backend)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", l.Level)
	}
	return nil
}
