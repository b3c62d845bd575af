package config

import (
	"fmt"
	"strings"

	"github.com/kmsgrab/kmsgrab/internal/tonemap"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop the run from ones
// that were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config. Bad capture parameters are fatal:
// clamping an exposure or tone curve would silently change the image,
// so the run stops instead. Cosmetic settings are clamped to defaults
// and reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.Exposure <= 0 {
		result.Fatals = append(result.Fatals,
			fmt.Errorf("exposure must be positive, got %v", c.Exposure))
	}
	if c.ToneMap < 0 || c.ToneMap > int(tonemap.Uchimura) {
		result.Fatals = append(result.Fatals,
			fmt.Errorf("tonemap mode %d out of range 0-%d", c.ToneMap, int(tonemap.Uchimura)))
	}
	if c.Device == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("device must not be empty"))
	}
	if c.Output == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("output must not be empty"))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings,
			fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), using info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings,
			fmt.Errorf("log_format %q is not valid (use text or json), using text", c.LogFormat))
		c.LogFormat = "text"
	}

	if c.LogMaxSizeMB < 1 {
		result.Warnings = append(result.Warnings,
			fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	}
	if c.LogMaxBackups < 0 {
		result.Warnings = append(result.Warnings,
			fmt.Errorf("log_max_backups %d is negative, clamping to 0", c.LogMaxBackups))
		c.LogMaxBackups = 0
	}

	return result
}

// Params converts the validated config into tone-mapping parameters.
func (c *Config) Params() tonemap.Params {
	return tonemap.Params{
		Exposure: float32(c.Exposure),
		Curve:    tonemap.Curve(c.ToneMap),
	}
}
