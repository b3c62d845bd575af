package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredZeroExposureIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Exposure = 0
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("zero exposure should be fatal")
	}
	found := false
	for _, err := range result.Fatals {
		if strings.Contains(err.Error(), "exposure") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected exposure validation error in fatals")
	}
}

func TestValidateTieredNegativeExposureIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Exposure = -0.5
	if result := cfg.ValidateTiered(); !result.HasFatals() {
		t.Fatal("negative exposure should be fatal")
	}
}

func TestValidateTieredToneMapOutOfRangeIsFatal(t *testing.T) {
	for _, mode := range []int{-1, 8, 99} {
		cfg := Default()
		cfg.ToneMap = mode
		if result := cfg.ValidateTiered(); !result.HasFatals() {
			t.Fatalf("tonemap %d should be fatal", mode)
		}
	}
}

func TestValidateTieredEmptyDeviceIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Device = ""
	if result := cfg.ValidateTiered(); !result.HasFatals() {
		t.Fatal("empty device should be fatal")
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want clamped to info", cfg.LogLevel)
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("LogFormat = %q, want clamped to text", cfg.LogFormat)
	}
}

func TestValidateTieredLogSizeClamping(t *testing.T) {
	cfg := Default()
	cfg.LogMaxSizeMB = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped log size should be warning: %v", result.Fatals)
	}
	if cfg.LogMaxSizeMB != 1 {
		t.Fatalf("LogMaxSizeMB = %d, want 1", cfg.LogMaxSizeMB)
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.Exposure = 0      // fatal
	cfg.LogFormat = "xml" // warning
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}

func TestParams(t *testing.T) {
	cfg := Default()
	cfg.Exposure = 1.5
	cfg.ToneMap = 5
	p := cfg.Params()
	if p.Exposure != 1.5 {
		t.Fatalf("Exposure = %v, want 1.5", p.Exposure)
	}
	if int(p.Curve) != 5 {
		t.Fatalf("Curve = %d, want 5", p.Curve)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("converted params should validate: %v", err)
	}
}
