package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scenario.NumVehicles != 22 {
		t.Errorf("expected 22 vehicles, got %d", cfg.Scenario.NumVehicles)
	}
	if cfg.Controller.Name != "idm" {
		t.Errorf("expected idm controller, got %q", cfg.Controller.Name)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero length", func(c *Config) { c.Scenario.Length = 0 }},
		{"no vehicles", func(c *Config) { c.Scenario.NumVehicles = 0 }},
		{"rl exceeds fleet", func(c *Config) { c.Scenario.NumRL = 99 }},
		{"overfull ring", func(c *Config) { c.Scenario.Length = 50 }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"bad env kind", func(c *Config) { c.EnvKind = "dqn" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := WaveRing()
	cfg.Seed = 7
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Controller.Name != "ovm" {
		t.Errorf("expected ovm after round trip, got %q", loaded.Controller.Name)
	}
	if loaded.Seed != 7 {
		t.Errorf("expected seed 7, got %d", loaded.Seed)
	}
	if loaded.Scenario.PosJitter != 1.5 {
		t.Errorf("expected jitter 1.5, got %v", loaded.Scenario.PosJitter)
	}
}

func TestLoadPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte("scenario:\n  num_vehicles: 10\ndt: 0.2\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario.NumVehicles != 10 {
		t.Errorf("expected override to 10 vehicles, got %d", cfg.Scenario.NumVehicles)
	}
	if cfg.Dt != 0.2 {
		t.Errorf("expected dt 0.2, got %v", cfg.Dt)
	}
	if cfg.Horizon != 1000 {
		t.Errorf("expected default horizon kept, got %d", cfg.Horizon)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/cfg.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPresets(t *testing.T) {
	for name, build := range Presets {
		cfg := build()
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	if len(PresetNames()) != len(Presets) {
		t.Errorf("preset name count mismatch")
	}
}
