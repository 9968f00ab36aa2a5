package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	if cfg.Agent.LookBack != 30 || cfg.Agent.TargetPolicy != "unconditional" {
		t.Errorf("unexpected agent defaults %+v", cfg.Agent)
	}
	if cfg.Model.Name != "dense" || cfg.Model.HiddenUnits != 256 {
		t.Errorf("unexpected model defaults %+v", cfg.Model)
	}
	if cfg.Exchange.Retry.MinDelay != 500*time.Millisecond {
		t.Errorf("expected duration defaults to decode, got %s", cfg.Exchange.Retry.MinDelay)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
agent:
  look_back: 10
  state_mode: roc
model:
  name: linear
training:
  epochs: 5
data_source:
  kind: csv
  dir: prices
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRADES_DATA_SOURCE_TICKERS", "AAA,BBB")
	t.Setenv("TRADES_AGENT_GAMMA", "0.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Agent.LookBack != 10 || cfg.Agent.StateMode != "roc" || cfg.Model.Name != "linear" {
		t.Errorf("file values not applied: %+v %+v", cfg.Agent, cfg.Model)
	}
	if cfg.Training.Epochs != 5 || cfg.DataSource.Dir != "prices" {
		t.Errorf("unexpected training/data source %+v %+v", cfg.Training, cfg.DataSource)
	}
	if cfg.Agent.Gamma != 0.5 {
		t.Errorf("expected env gamma 0.5, got %f", cfg.Agent.Gamma)
	}
	if len(cfg.DataSource.Tickers) != 2 || cfg.DataSource.Tickers[1] != "BBB" {
		t.Errorf("expected env tickers, got %v", cfg.DataSource.Tickers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	cfg.Agent.LookBack = 0
	cfg.Agent.StateMode = "fourier"
	cfg.Model.Rho = 1
	cfg.DataSource.Kind = "alphavantage"
	cfg.DataSource.APIKey = ""

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"agent.look_back", "agent.state_mode", "model.rho", "api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestValidate_MemorySmallerThanBatch(t *testing.T) {
	cfg, _ := Default()
	cfg.Agent.MemoryCapacity = 4
	cfg.Agent.BatchSize = 8
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "memory_capacity") {
		t.Fatalf("expected memory capacity error, got %v", err)
	}
}
