package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	content := `
data_path: testdata/spy.csv
symbol: SPY
broker:
  cash: 25000
  spread: 0.001
strategy:
  stop_loss_pct: 0.02
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig() error = %v", err)
	}
	if cfg.DataPath != "testdata/spy.csv" {
		t.Fatalf("DataPath = %q", cfg.DataPath)
	}
	if cfg.Broker.Cash != 25000 {
		t.Fatalf("Broker.Cash = %v, want 25000", cfg.Broker.Cash)
	}
	// Untouched fields keep their defaults.
	if cfg.Broker.Margin != 1 {
		t.Fatalf("Broker.Margin = %v, want default 1", cfg.Broker.Margin)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	if _, err := LoadRunConfig("/nonexistent/run.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
