// Package config loads and validates the kmsgrab configuration from
// defaults, an optional YAML file and KMSGRAB_* environment variables.
// Command-line flags override all of these at the CLI layer.
package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Device        string  `mapstructure:"device"`
	Output        string  `mapstructure:"output"`
	Exposure      float64 `mapstructure:"exposure"`
	ToneMap       int     `mapstructure:"tonemap"`
	LogLevel      string  `mapstructure:"log_level"`
	LogFormat     string  `mapstructure:"log_format"`
	LogFile       string  `mapstructure:"log_file"`
	LogMaxSizeMB  int     `mapstructure:"log_max_size_mb"`
	LogMaxBackups int     `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		Device:        "/dev/dri/card1",
		Output:        "screenshot.ppm",
		Exposure:      1.0,
		ToneMap:       2,
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
	}
}

// Load reads the config file (an explicit path, or kmsgrab.yaml looked
// up in /etc/kmsgrab and the working directory) plus environment
// variables over the defaults. A missing implicit config file is fine;
// a missing explicit one is an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("kmsgrab")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/kmsgrab")
		v.AddConfigPath(".")
	}

	// AutomaticEnv only resolves keys viper already knows about, so
	// every key is registered with its default up front; without this,
	// KMSGRAB_* variables would only apply to keys present in a file.
	v.SetDefault("device", cfg.Device)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("exposure", cfg.Exposure)
	v.SetDefault("tonemap", cfg.ToneMap)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)

	v.SetEnvPrefix("KMSGRAB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
