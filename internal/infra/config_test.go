package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultLocale != "ko" {
		t.Fatalf("DefaultLocale = %q, want ko", cfg.DefaultLocale)
	}
	if got, want := cfg.VideoProviderPriority, []string{"replicate", "veo", "ark"}; len(got) != len(want) {
		t.Fatalf("VideoProviderPriority = %#v, want %#v", got, want)
	}
	if !cfg.DegradeOnComposeFailure {
		t.Fatal("DegradeOnComposeFailure should default to true")
	}
	if cfg.PollInterval != 5*time.Second || cfg.PollMaxAttempts != 120 {
		t.Fatalf("poll defaults = %v / %d", cfg.PollInterval, cfg.PollMaxAttempts)
	}
}

func TestLoadConfigProviderPriorityOverride(t *testing.T) {
	t.Setenv("VIDEO_PROVIDER_PRIORITY", " veo , ark ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"veo", "ark"}
	if len(cfg.VideoProviderPriority) != len(want) {
		t.Fatalf("VideoProviderPriority = %#v, want %#v", cfg.VideoProviderPriority, want)
	}
	for i, name := range want {
		if cfg.VideoProviderPriority[i] != name {
			t.Fatalf("VideoProviderPriority[%d] = %q, want %q", i, cfg.VideoProviderPriority[i], name)
		}
	}
}

func TestLoadConfigStripsSecretBOM(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "\ufeff r8_token ")
	t.Setenv("GEMINI_API_KEY", "\ufeffAIzaKey")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ReplicateAPIToken != "r8_token" {
		t.Fatalf("ReplicateAPIToken = %q", cfg.ReplicateAPIToken)
	}
	if cfg.GeminiAPIKey != "AIzaKey" {
		t.Fatalf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
}

func TestLoadConfigDegradeToggle(t *testing.T) {
	t.Setenv("DEGRADE_ON_COMPOSE_FAILURE", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DegradeOnComposeFailure {
		t.Fatal("DEGRADE_ON_COMPOSE_FAILURE=false not honored")
	}
}
