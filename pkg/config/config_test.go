package config

import (
	"testing"
	"time"
)

func TestDefaultsMatchReferenceConfig(t *testing.T) {
	cfg := Defaults()
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Fatalf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.DailyBudgetGBP != 2.00 || cfg.WeeklyBudgetGBP != 8.00 {
		t.Fatalf("unexpected budget caps: daily=%v weekly=%v", cfg.DailyBudgetGBP, cfg.WeeklyBudgetGBP)
	}
	if cfg.MaxWriterRetries != 2 {
		t.Fatalf("MaxWriterRetries = %d, want 2", cfg.MaxWriterRetries)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.PipelineScriptTimeout != 600*time.Second || cfg.DeployScriptTimeout != 600*time.Second {
		t.Fatalf("unexpected script timeouts: pipeline=%v deploy=%v", cfg.PipelineScriptTimeout, cfg.DeployScriptTimeout)
	}
	if cfg.GitCommandTimeout != 300*time.Second {
		t.Fatalf("GitCommandTimeout = %v, want 300s", cfg.GitCommandTimeout)
	}
}

func TestFromEnvWithoutOverridesMatchesDefaults(t *testing.T) {
	cfg := FromEnv()
	want := Defaults()
	if cfg != want {
		t.Fatalf("FromEnv() without overrides = %+v, want %+v", cfg, want)
	}
}

func TestFromEnvOverridesStrings(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434")
	t.Setenv("WRITER_MODEL", "claude-opus-4")
	t.Setenv("REPO_PATH", "/srv/app")

	cfg := FromEnv()
	if cfg.OllamaURL != "http://ollama.internal:11434" {
		t.Fatalf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.WriterModel != "claude-opus-4" {
		t.Fatalf("WriterModel = %q", cfg.WriterModel)
	}
	if cfg.RepoPath != "/srv/app" {
		t.Fatalf("RepoPath = %q", cfg.RepoPath)
	}
}

func TestFromEnvOverridesNumerics(t *testing.T) {
	t.Setenv("DAILY_BUDGET_GBP", "5.5")
	t.Setenv("MAX_WRITER_RETRIES", "4")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "15")
	t.Setenv("GIT_COMMAND_TIMEOUT_SECONDS", "120")

	cfg := FromEnv()
	if cfg.DailyBudgetGBP != 5.5 {
		t.Fatalf("DailyBudgetGBP = %v, want 5.5", cfg.DailyBudgetGBP)
	}
	if cfg.MaxWriterRetries != 4 {
		t.Fatalf("MaxWriterRetries = %d, want 4", cfg.MaxWriterRetries)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("HTTPTimeout = %v, want 15s", cfg.HTTPTimeout)
	}
	if cfg.GitCommandTimeout != 120*time.Second {
		t.Fatalf("GitCommandTimeout = %v, want 120s", cfg.GitCommandTimeout)
	}
}

func TestFromEnvIgnoresUnparsableNumerics(t *testing.T) {
	t.Setenv("DAILY_BUDGET_GBP", "not-a-number")
	t.Setenv("MAX_WRITER_RETRIES", "also-not-a-number")

	cfg := FromEnv()
	want := Defaults()
	if cfg.DailyBudgetGBP != want.DailyBudgetGBP {
		t.Fatalf("DailyBudgetGBP = %v, want default %v", cfg.DailyBudgetGBP, want.DailyBudgetGBP)
	}
	if cfg.MaxWriterRetries != want.MaxWriterRetries {
		t.Fatalf("MaxWriterRetries = %d, want default %d", cfg.MaxWriterRetries, want.MaxWriterRetries)
	}
}

func TestFromEnvIgnoresEmptyStringOverride(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	cfg := FromEnv()
	if cfg.OllamaURL != Defaults().OllamaURL {
		t.Fatalf("expected an empty env var to leave the default in place, got %q", cfg.OllamaURL)
	}
}
