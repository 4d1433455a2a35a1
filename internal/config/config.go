// Package config loads and validates the translator configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MockModel selects the canned offline transcription adapter. It needs
// no API key and never leaves the machine.
const MockModel = "mock"

// Config is the full translator configuration.
type Config struct {
	Debug         bool                `yaml:"debug"`
	DebugAudioDir string              `yaml:"debug_audio_dir"`
	OSC           OSCConfig           `yaml:"osc"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Translation   TranslationConfig   `yaml:"translation"`
	Audio         AudioConfig         `yaml:"audio"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Replay        ReplayConfig        `yaml:"replay"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
	Cost          CostConfig          `yaml:"cost"`
}

// OSCConfig describes the VRChat OSC endpoints and chatbox pacing.
type OSCConfig struct {
	Address          string `yaml:"address"`
	InputPort        uint16 `yaml:"input_port"`
	OutputPort       uint16 `yaml:"output_port"`
	DisplayTimeMs    int    `yaml:"display_time"`
	MaxMessageChunks int    `yaml:"max_message_chunks"`
}

// DisplayTime returns the per-chunk display duration.
func (c OSCConfig) DisplayTime() time.Duration {
	return time.Duration(c.DisplayTimeMs) * time.Millisecond
}

// OpenAIConfig holds API credentials and model selection.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// TranslationConfig controls the translation step. Translation is enabled
// when a target language is set.
type TranslationConfig struct {
	TargetLanguage         string `yaml:"target_language"`
	IncludeOriginalMessage bool   `yaml:"include_original_message"`
}

// Enabled reports whether transcripts should be translated.
func (c TranslationConfig) Enabled() bool {
	return c.TargetLanguage != ""
}

// AudioConfig holds capture and segmentation parameters. Threshold units
// follow the config file: silence_threshold is milliseconds, the hold time
// and minimum duration are seconds.
type AudioConfig struct {
	SampleRate               int     `yaml:"sample_rate"`
	SilenceThresholdMs       int     `yaml:"silence_threshold"`
	NoiseGateThreshold       float64 `yaml:"noise_gate_threshold"`
	NoiseGateHoldTime        float64 `yaml:"noise_gate_hold_time"`
	MinTranscriptionDuration float64 `yaml:"min_transcription_duration"`
}

// SilenceThreshold returns the silence duration that closes an utterance.
func (c AudioConfig) SilenceThreshold() time.Duration {
	return time.Duration(c.SilenceThresholdMs) * time.Millisecond
}

// GateHold returns how long the noise gate stays open after the last loud frame.
func (c AudioConfig) GateHold() time.Duration {
	return time.Duration(c.NoiseGateHoldTime * float64(time.Second))
}

// MinDuration returns the minimum utterance duration worth transcribing.
func (c AudioConfig) MinDuration() time.Duration {
	return time.Duration(c.MinTranscriptionDuration * float64(time.Second))
}

// RateLimitConfig bounds outbound API calls.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// ReplayConfig points at a directory watched for WAV files to inject.
type ReplayConfig struct {
	WatchDir string `yaml:"watch_dir"`
}

// EventsConfig configures the optional Kafka transcript mirror.
type EventsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Principal string   `yaml:"principal"`
}

// ObservabilityConfig controls logging and the metrics endpoint.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// CostConfig controls the running spend estimate. An empty ledger path
// disables persistence but not estimation.
type CostConfig struct {
	LedgerPath string `yaml:"ledger_path"`
}

// Default returns the configuration defaults applied before the file is read.
func Default() *Config {
	return &Config{
		OSC: OSCConfig{
			Address:          "127.0.0.1",
			InputPort:        9001,
			OutputPort:       9000,
			DisplayTimeMs:    7000,
			MaxMessageChunks: 4,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Translation: TranslationConfig{
			IncludeOriginalMessage: true,
		},
		Audio: AudioConfig{
			SampleRate:               16000,
			SilenceThresholdMs:       700,
			NoiseGateThreshold:       0.15,
			NoiseGateHoldTime:        0.3,
			MinTranscriptionDuration: 0.6,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
		},
		Events: EventsConfig{
			Topic:     "vrchat.chatbox.transcripts",
			Principal: "vrc-chatbox-translator",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
		Cost: CostConfig{
			LedgerPath: "total_cost.txt",
		},
		DebugAudioDir: "debug_audio",
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. Any violation is fatal for the caller: the pipeline
// must not start on a bad configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides. The API key is the one
// secret in the file, so it gets an escape hatch.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
}

// Validate checks every value the pipeline depends on.
func (c *Config) Validate() error {
	if c.OSC.Address == "" {
		return fmt.Errorf("osc.address must not be empty")
	}
	if c.OSC.OutputPort == 0 {
		return fmt.Errorf("osc.output_port must not be zero")
	}
	if c.OSC.InputPort == 0 {
		return fmt.Errorf("osc.input_port must not be zero")
	}
	if c.OSC.DisplayTimeMs <= 0 {
		return fmt.Errorf("osc.display_time must be positive, got %d", c.OSC.DisplayTimeMs)
	}
	if c.OSC.MaxMessageChunks < 1 {
		return fmt.Errorf("osc.max_message_chunks must be at least 1, got %d", c.OSC.MaxMessageChunks)
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model must not be empty")
	}
	if c.OpenAI.APIKey == "" && c.OpenAI.Model != MockModel {
		return fmt.Errorf("openai.api_key must be set (or OPENAI_API_KEY exported)")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.NoiseGateThreshold < 0 || c.Audio.NoiseGateThreshold > 1 {
		return fmt.Errorf("audio.noise_gate_threshold must be in [0,1], got %g", c.Audio.NoiseGateThreshold)
	}
	if c.Audio.NoiseGateHoldTime < 0 {
		return fmt.Errorf("audio.noise_gate_hold_time must not be negative, got %g", c.Audio.NoiseGateHoldTime)
	}
	if c.Audio.SilenceThresholdMs <= 0 {
		return fmt.Errorf("audio.silence_threshold must be positive, got %d", c.Audio.SilenceThresholdMs)
	}
	if c.Audio.MinTranscriptionDuration < 0 {
		return fmt.Errorf("audio.min_transcription_duration must not be negative, got %g", c.Audio.MinTranscriptionDuration)
	}
	if c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate_limit.requests_per_minute must be at least 1, got %d", c.RateLimit.RequestsPerMinute)
	}
	return nil
}
