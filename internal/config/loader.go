package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. When no file exists at path, the defaults are written there
// (best effort) and returned — the first run of the daemon produces a
// config file the user can then calibrate and edit.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if saveErr := Save(cfg, path); saveErr != nil {
			slog.Warn("config: could not write default config file", "path", path, "error", saveErr)
		} else {
			slog.Info("config: wrote default config file", "path", path)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is not one of debug/info/warn/error", cfg.Server.LogLevel))
	}

	if cfg.Audio.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size must be > 0, got %d", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be > 0, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be > 0, got %d", cfg.Audio.Channels))
	}

	if cfg.Capture.MaxReopenAttempts < 0 {
		errs = append(errs, fmt.Errorf("capture.max_reopen_attempts must be >= 0, got %d", cfg.Capture.MaxReopenAttempts))
	}
	if cfg.Capture.ReopenBackoffMS < 0 {
		errs = append(errs, fmt.Errorf("capture.reopen_backoff_ms must be >= 0, got %d", cfg.Capture.ReopenBackoffMS))
	}
	if cfg.Capture.MaxReopenBackoffMS < 0 {
		errs = append(errs, fmt.Errorf("capture.max_reopen_backoff_ms must be >= 0, got %d", cfg.Capture.MaxReopenBackoffMS))
	}

	if cfg.Detection.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("detection.threshold must be > 0, got %v", cfg.Detection.Threshold))
	}
	if cfg.Detection.CooldownMS < 0 {
		errs = append(errs, fmt.Errorf("detection.cooldown_ms must be >= 0, got %d", cfg.Detection.CooldownMS))
	}
	if cfg.Detection.DoubleClapWindowMS <= cfg.Detection.CooldownMS {
		errs = append(errs, fmt.Errorf("detection.double_clap_window_ms (%d) must exceed cooldown_ms (%d), or a second clap can never register",
			cfg.Detection.DoubleClapWindowMS, cfg.Detection.CooldownMS))
	}
	if cfg.Detection.TripleClapWindowMS <= cfg.Detection.CooldownMS {
		errs = append(errs, fmt.Errorf("detection.triple_clap_window_ms (%d) must exceed cooldown_ms (%d), or a third clap can never register",
			cfg.Detection.TripleClapWindowMS, cfg.Detection.CooldownMS))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
}
