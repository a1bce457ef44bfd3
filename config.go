// Package autoquiz turns user-supplied material (files, links, topics) into
// validated multiple-choice quiz questions through a pipeline of extraction
// adapters, a quality assessor, a provider fallback chain, and a per-identity
// daily usage guard.
package autoquiz

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration. Provider credentials are opaque
// to the pipeline; identity of the fallback chain is configuration, not a
// hard-coded dependency.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Generation GenerationConfig `yaml:"generation"`
	Quota      QuotaConfig      `yaml:"quota"`
	Server     ServerConfig     `yaml:"server"`
	LogDir     string           `yaml:"log_dir"`
}

// ProvidersConfig configures the generation provider chain in fixed order:
// OpenAI primary, Deepseek secondary.
type ProvidersConfig struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Deepseek DeepseekConfig `yaml:"deepseek"`
}

// OpenAIConfig holds the primary provider settings.
type OpenAIConfig struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"` // used by the OCR adapter
}

// DeepseekConfig holds the secondary provider settings.
type DeepseekConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ExtractionConfig bounds the extraction stage.
type ExtractionConfig struct {
	MaxFileSize    int64         `yaml:"max_file_size"`    // per-file byte ceiling
	MinFileSize    int64         `yaml:"min_file_size"`    // sanity floor
	MaxSources     int           `yaml:"max_sources"`      // per-request source ceiling
	Workers        int           `yaml:"workers"`          // bounded concurrency for file sources
	Timeout        time.Duration `yaml:"timeout"`          // per-source deadline
	FetchUserAgent string        `yaml:"fetch_user_agent"` // web/video adapter requests
}

// GenerationConfig bounds the generation stage.
type GenerationConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-provider-call deadline
	Verify  bool          `yaml:"verify"`  // optional LLM verification pass
}

// QuotaConfig configures the usage guard.
type QuotaConfig struct {
	DailyLimit   int    `yaml:"daily_limit"`
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	SessionKey string `yaml:"session_key"`
}

// LoadConfig reads a YAML config file, applies defaults, and overlays API
// keys from the environment. An empty path is not an error: defaults plus
// environment keys are enough for a working setup.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	ApplyDefaults(&cfg)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		cfg.Providers.Deepseek.APIKey = key
	}
	return &cfg, nil
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Providers.OpenAI.Model == "" {
		cfg.Providers.OpenAI.Model = "gpt-4o"
	}
	if cfg.Providers.OpenAI.VisionModel == "" {
		cfg.Providers.OpenAI.VisionModel = "gpt-4o"
	}
	if cfg.Providers.Deepseek.BaseURL == "" {
		cfg.Providers.Deepseek.BaseURL = "https://api.deepseek.com/v1/chat/completions"
	}
	if cfg.Providers.Deepseek.Model == "" {
		cfg.Providers.Deepseek.Model = "deepseek-chat"
	}
	if cfg.Extraction.MaxFileSize <= 0 {
		cfg.Extraction.MaxFileSize = 20 * 1024 * 1024
	}
	if cfg.Extraction.MinFileSize <= 0 {
		cfg.Extraction.MinFileSize = 16
	}
	if cfg.Extraction.MaxSources <= 0 {
		cfg.Extraction.MaxSources = 10
	}
	if cfg.Extraction.Workers <= 0 {
		cfg.Extraction.Workers = 4
	}
	if cfg.Extraction.Timeout <= 0 {
		cfg.Extraction.Timeout = 45 * time.Second
	}
	if cfg.Extraction.FetchUserAgent == "" {
		cfg.Extraction.FetchUserAgent = "autoquiz/1.0"
	}
	if cfg.Generation.Timeout <= 0 {
		cfg.Generation.Timeout = 2 * time.Minute
	}
	if cfg.Quota.DailyLimit <= 0 {
		cfg.Quota.DailyLimit = 20
	}
	if cfg.Quota.DatabasePath == "" {
		cfg.Quota.DatabasePath = "./usage.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8180
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "log"
	}
}
