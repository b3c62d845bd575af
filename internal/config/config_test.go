package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if cfg.Device != want.Device || cfg.Output != want.Output {
		t.Fatalf("Load(\"\") = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadHonorsEnvironment(t *testing.T) {
	t.Setenv("KMSGRAB_OUTPUT", "from-env.ppm")
	t.Setenv("KMSGRAB_TONEMAP", "5")
	t.Setenv("KMSGRAB_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "from-env.ppm" {
		t.Fatalf("Output = %q, want from-env.ppm", cfg.Output)
	}
	if cfg.ToneMap != 5 {
		t.Fatalf("ToneMap = %d, want 5", cfg.ToneMap)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched keys keep their defaults.
	if cfg.Device != Default().Device {
		t.Fatalf("Device = %q, want default", cfg.Device)
	}
}

func TestLoadReadsExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmsgrab.yaml")
	if err := os.WriteFile(path, []byte("output: from-file.ppm\nexposure: 2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "from-file.ppm" {
		t.Fatalf("Output = %q, want from-file.ppm", cfg.Output)
	}
	if cfg.Exposure != 2.5 {
		t.Fatalf("Exposure = %v, want 2.5", cfg.Exposure)
	}
}

func TestLoadMissingExplicitFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing explicit config file should be an error")
	}
}
