package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Addr != ":8099" {
		t.Fatalf("expected default addr, got %s", cfg.Addr)
	}
	if cfg.Workflow.SubmissionStrategy != StrategyPerDoor {
		t.Fatalf("expected per_door strategy, got %s", cfg.Workflow.SubmissionStrategy)
	}
	if cfg.BackgroundRefreshEnabled() {
		t.Fatalf("expected background refresh disabled without service token")
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
addr: ":9000"
api:
  base_url: "http://file.example"
  service_token: "from-file"
workflow:
  submission_strategy: batch
  scan_timeout: 10s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("DEVICE_API_URL", "http://env.example")
	t.Setenv("WORKFLOW_IDLE_TTL_SECONDS", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr from file, got %s", cfg.Addr)
	}
	if cfg.API.BaseURL != "http://env.example" {
		t.Fatalf("expected env override for base url, got %s", cfg.API.BaseURL)
	}
	if cfg.Workflow.SubmissionStrategy != StrategyBatch {
		t.Fatalf("expected batch strategy from file, got %s", cfg.Workflow.SubmissionStrategy)
	}
	if cfg.Workflow.ScanTimeout != 10*time.Second {
		t.Fatalf("expected 10s scan timeout, got %s", cfg.Workflow.ScanTimeout)
	}
	if cfg.Workflow.IdleTTL != 2*time.Minute {
		t.Fatalf("expected 2m idle ttl, got %s", cfg.Workflow.IdleTTL)
	}
	if !cfg.BackgroundRefreshEnabled() {
		t.Fatalf("expected background refresh enabled with service token")
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("SUBMISSION_STRATEGY", "parallel")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unknown strategy to error")
	}
}
