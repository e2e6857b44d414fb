// Package config loads the daemon's layered configuration: built-in
// defaults, overridden by a declarative YAML file, overridden by
// credentials from a .env-style file, overridden last by CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WakeWordConfig is §6's wake_word.* section.
type WakeWordConfig struct {
	PPNPath     string  `yaml:"ppn_path"`
	ModelPath   string  `yaml:"model_path"`
	Device      string  `yaml:"device"`
	Sensitivity float32 `yaml:"sensitivity"`
}

// ExecutionConfig is §6's execution.* section.
type ExecutionConfig struct {
	ConfirmationTimeoutSeconds int  `yaml:"confirmation_timeout_seconds"`
	DryRun                     bool `yaml:"dry_run"`
}

// UIConfig is §6's ui.* section.
type UIConfig struct {
	ListeningNotification bool `yaml:"listening_notification"`
	OSD                   bool `yaml:"osd"`
	OSDTimeoutMs          int  `yaml:"osd_timeout_ms"`
}

// SpeechOutputConfig is §6's speech_output.* section. Provider is a
// label ("cloud", "azure", ...); Endpoint is the actual URL the TTS
// client POSTs to and is what internal/tts.Config.Endpoint is built from.
type SpeechOutputConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Provider string  `yaml:"provider"`
	Endpoint string  `yaml:"endpoint"`
	Voice    string  `yaml:"voice"`
	Format   string  `yaml:"format"`
	Rate     float64 `yaml:"rate"`
}

// SearchConfig is §6's search.* section.
type SearchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Country   string `yaml:"country"`
}

// LLMConfig is §6's llm.* section. Provider must be one of "ollama"
// (default) or "openai".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// VADConfig tunes the Utterance Capturer; it has no dedicated spec.md §6
// section but the model path is required to construct the native VAD.
type VADConfig struct {
	ModelPath          string  `yaml:"model_path"`
	Threshold          float32 `yaml:"threshold"`
	TrailingSilenceMs  int     `yaml:"trailing_silence_ms"`
	MaxDurationSeconds float64 `yaml:"max_duration_seconds"`
	PreSpeechTimeoutMs int     `yaml:"pre_speech_timeout_ms"`
}

// ASRConfig names the cloud speech-to-text endpoint.
type ASRConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Config is the fully-resolved daemon configuration.
type Config struct {
	AllowListPath string `yaml:"allow_list_path"`

	WakeWord     WakeWordConfig     `yaml:"wake_word"`
	VAD          VADConfig          `yaml:"vad"`
	ASR          ASRConfig          `yaml:"asr"`
	Execution    ExecutionConfig    `yaml:"execution"`
	UI           UIConfig           `yaml:"ui"`
	SpeechOutput SpeechOutputConfig `yaml:"speech_output"`
	Search       SearchConfig       `yaml:"search"`
	LLM          LLMConfig          `yaml:"llm"`

	Verbose bool `yaml:"verbose"`

	// Populated from the .env credentials file, never from YAML.
	WakeWordAccessKey string `yaml:"-"`
	LLMCredential     string `yaml:"-"`
	SearchCredential  string `yaml:"-"`
	TTSCredential     string `yaml:"-"`
}

// ConfirmationTimeout is ExecutionConfig.ConfirmationTimeoutSeconds as a
// time.Duration.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.Execution.ConfirmationTimeoutSeconds) * time.Second
}

// SearchTimeout is SearchConfig.TimeoutMs as a time.Duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutMs) * time.Millisecond
}

// Default returns a Config populated with the defaults named in spec.md
// §6.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		AllowListPath: filepath.Join(homeDir, ".config", "btwd", "commands.yaml"),
		WakeWord: WakeWordConfig{
			Device:      "cpu",
			Sensitivity: 0.6,
		},
		VAD: VADConfig{
			Threshold:          0.5,
			TrailingSilenceMs:  700,
			MaxDurationSeconds: 15,
			PreSpeechTimeoutMs: 3000,
		},
		Execution: ExecutionConfig{
			ConfirmationTimeoutSeconds: 10,
			DryRun:                     false,
		},
		UI: UIConfig{
			ListeningNotification: true,
			OSD:                   true,
			OSDTimeoutMs:          5000,
		},
		SpeechOutput: SpeechOutputConfig{
			Enabled:  true,
			Provider: "cloud",
			Format:   "wav",
			Rate:     1.0,
		},
		Search: SearchConfig{
			Enabled:   true,
			TimeoutMs: 3500,
		},
		LLM: LLMConfig{
			Provider: "ollama",
		},
	}
}

// Load builds the final Config: defaults, then the YAML file at
// configPath, then credentials from the .env file at envPath, then CLI
// flag overrides via args. Every failure is reported as fatal; the
// caller treats Load's error as a startup validation failure.
func Load(configPath, envPath string, args []string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
		}
	}

	var env map[string]string
	if envPath != "" {
		var err error
		env, err = godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading env file %s: %w", envPath, err)
		}
	}
	cfg.WakeWordAccessKey = env["WAKE_WORD_ACCESS_KEY"]
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLMCredential = env["OPENAI_API_KEY"]
	default:
		cfg.LLMCredential = env["OLLAMA_HOST"]
	}
	cfg.SearchCredential = env["SEARCH_API_KEY"]
	cfg.TTSCredential = env["TTS_API_KEY"]

	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("btwd", flag.ContinueOnError)
	fs.StringVar(&c.AllowListPath, "allow-list", c.AllowListPath, "Path to the command allow-list file")
	fs.StringVar(&c.WakeWord.PPNPath, "wake-keyword-file", c.WakeWord.PPNPath, "Path to the wake-word keyword file")
	fs.StringVar(&c.WakeWord.ModelPath, "wake-model-dir", c.WakeWord.ModelPath, "Directory containing the keyword-spotter model")
	fs.StringVar(&c.VAD.ModelPath, "vad-model", c.VAD.ModelPath, "Path to the VAD model file")
	fs.StringVar(&c.LLM.Provider, "llm-provider", c.LLM.Provider, "LLM provider: ollama or openai")
	fs.BoolVar(&c.Execution.DryRun, "dry-run", c.Execution.DryRun, "Log argv instead of spawning commands")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose logging")
	return fs.Parse(args)
}

func (c *Config) validate() error {
	if c.AllowListPath == "" {
		return fmt.Errorf("config: allow_list_path is required")
	}
	if c.WakeWord.PPNPath == "" {
		return fmt.Errorf("config: wake_word.ppn_path is required")
	}
	if c.WakeWord.ModelPath == "" {
		return fmt.Errorf("config: wake_word.model_path is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.Provider != "openai" {
		return fmt.Errorf("config: llm.provider must be ollama or openai, got %q", c.LLM.Provider)
	}
	if c.WakeWordAccessKey == "" {
		return fmt.Errorf("config: WAKE_WORD_ACCESS_KEY is required")
	}
	if c.LLMCredential == "" {
		return fmt.Errorf("config: credential for llm.provider %q is required", c.LLM.Provider)
	}
	return nil
}
