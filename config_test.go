package autoquiz

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.OpenAI.Model != "gpt-4o" {
		t.Errorf("default model = %q", cfg.Providers.OpenAI.Model)
	}
	if cfg.Quota.DailyLimit != 20 {
		t.Errorf("default daily limit = %d", cfg.Quota.DailyLimit)
	}
	if cfg.Extraction.Workers != 4 {
		t.Errorf("default workers = %d", cfg.Extraction.Workers)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("default generation timeout = %v", cfg.Generation.Timeout)
	}
	if cfg.Server.Port != 8180 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
providers:
  openai:
    model: gpt-4o-mini
quota:
  daily_limit: 5
extraction:
  workers: 2
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Providers.OpenAI.Model)
	}
	if cfg.Quota.DailyLimit != 5 {
		t.Errorf("daily limit = %d", cfg.Quota.DailyLimit)
	}
	if cfg.Extraction.Workers != 2 {
		t.Errorf("workers = %d", cfg.Extraction.Workers)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	// Unset fields still get defaults.
	if cfg.Providers.Deepseek.Model != "deepseek-chat" {
		t.Errorf("deepseek model = %q", cfg.Providers.Deepseek.Model)
	}
	if cfg.Extraction.MaxSources != 10 {
		t.Errorf("max sources = %d", cfg.Extraction.MaxSources)
	}
}

func TestLoadConfigUnreadableFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for nonexistent explicit path")
	}
}

func TestLoadConfigEnvOverridesKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-test")
	t.Setenv("DEEPSEEK_API_KEY", "ds-env-test")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-env-test" {
		t.Errorf("openai key = %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Providers.Deepseek.APIKey != "ds-env-test" {
		t.Errorf("deepseek key = %q", cfg.Providers.Deepseek.APIKey)
	}
}
