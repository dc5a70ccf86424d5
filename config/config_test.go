package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestToEngineConfigAppliesOverrides(t *testing.T) {
	dc := DetectorConfig{
		Preset:          "industrial",
		Metrics:         []string{"motor_temp", "oil_pressure"},
		NumTrees:        64,
		MinDataPoints:   50,
		RetrainInterval: Duration{6 * time.Hour},
		RetrainCheck:    Duration{time.Minute},
	}

	cfg, err := dc.ToEngineConfig()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	if cfg.IsolationForest.NumTrees != 64 {
		t.Errorf("tree override not applied, got %d", cfg.IsolationForest.NumTrees)
	}
	if cfg.MinDataPoints != 50 {
		t.Errorf("min data points override not applied, got %d", cfg.MinDataPoints)
	}
	if cfg.RetrainInterval != 6*time.Hour {
		t.Errorf("retrain interval override not applied, got %v", cfg.RetrainInterval)
	}
	// Preset values survive where no override was given.
	if cfg.IsolationForest.Contamination != 0.005 {
		t.Errorf("industrial contamination lost, got %f", cfg.IsolationForest.Contamination)
	}
}

func TestToEngineConfigRejectsUnknownPreset(t *testing.T) {
	dc := DetectorConfig{Preset: "paranoid", Metrics: []string{"motor_temp"}}
	if _, err := dc.ToEngineConfig(); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestLoadFromFileMergesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	raw := `{
		"server": {"port": ":9090"},
		"detector": {"preset": "sensitive", "retrain_interval": "6h"},
		"redis": {"enabled": true, "addr": "redis:6379"}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != ":9090" {
		t.Errorf("port not loaded, got %s", cfg.Server.Port)
	}
	if cfg.Detector.Preset != "sensitive" {
		t.Errorf("preset not loaded, got %s", cfg.Detector.Preset)
	}
	if cfg.Detector.RetrainInterval.Duration != 6*time.Hour {
		t.Errorf("duration not parsed, got %v", cfg.Detector.RetrainInterval.Duration)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis settings not loaded: %+v", cfg.Redis)
	}
	// Untouched sections keep their defaults.
	if cfg.Ingestion.BufferSize != 1000 {
		t.Errorf("defaults lost, buffer size %d", cfg.Ingestion.BufferSize)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"90s"`), &d); err != nil {
		t.Fatalf("string duration failed: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", d.Duration)
	}

	if err := json.Unmarshal([]byte(`30`), &d); err != nil {
		t.Fatalf("numeric duration failed: %v", err)
	}
	if d.Duration != 30*time.Second {
		t.Errorf("expected 30s, got %v", d.Duration)
	}

	if err := json.Unmarshal([]byte(`true`), &d); err == nil {
		t.Error("expected error for bool duration")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"no metrics", func(c *Config) { c.Detector.Metrics = nil }},
		{"bad preset", func(c *Config) { c.Detector.Preset = "wat" }},
		{"zero buffer", func(c *Config) { c.Ingestion.BufferSize = 0 }},
		{"redis no addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
