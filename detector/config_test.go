package detector

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp"})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestPresetConfigs(t *testing.T) {
	for _, preset := range []string{"", "default", "industrial", "sensitive", "robust"} {
		cfg, err := PresetConfig(preset, []string{"motor_temp"})
		if err != nil {
			t.Fatalf("preset %q failed: %v", preset, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q should validate: %v", preset, err)
		}
	}

	industrial, _ := PresetConfig("industrial", []string{"motor_temp"})
	sensitive, _ := PresetConfig("sensitive", []string{"motor_temp"})
	if industrial.IsolationForest.Contamination >= sensitive.IsolationForest.Contamination {
		t.Error("industrial preset should expect fewer outliers than sensitive")
	}
	if sensitive.AnomalyThreshold <= industrial.AnomalyThreshold {
		// sensitive uses -0.3, which trips earlier than the default -0.5
		t.Error("sensitive preset should have a higher (less negative) threshold")
	}

	_, err := PresetConfig("aggressive", []string{"motor_temp"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("unknown preset should fail with ConfigError, got %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no metrics", func(c *Config) { c.Metrics = nil }},
		{"bad scaler", func(c *Config) { c.ScalerKind = "minmax" }},
		{"bad contamination", func(c *Config) { c.IsolationForest.Contamination = 0.9 }},
		{"bad severity order", func(c *Config) { c.SeverityBands = SeverityBands{Mild: 3, Moderate: 2, Severe: 1} }},
		{"overweight", func(c *Config) {
			c.HealthWeights = map[string]float64{"temperature": 0.8, "current": 0.8}
		}},
		{"inverted band", func(c *Config) {
			c.HealthBands = map[string]Band{"temperature": {Min: 100, Max: 0}}
		}},
	}

	for _, tc := range cases {
		cfg := DefaultConfig([]string{"motor_temp"})
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestConfigNormalizedFillsDefaults(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp"})
	cfg.HealthWeights = map[string]float64{
		CategoryTemperature: 0.5,
		CategoryCurrent:     0.3,
	}
	cfg.HealthBands = map[string]Band{}

	norm := cfg.normalized()

	if w := norm.HealthWeights[CategoryOther]; math.Abs(w-0.2) > 1e-9 {
		t.Errorf("other weight should take the remainder 0.2, got %f", w)
	}
	if _, ok := norm.HealthBands[CategoryTemperature]; !ok {
		t.Error("missing bands should fall back to defaults")
	}
}
