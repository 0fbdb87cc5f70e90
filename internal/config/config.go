// Package config provides the configuration schema, loader, and validation
// for the wakebot daemon and its calibration tool.
package config

import (
	"time"

	"github.com/wakebot/wakebot/pkg/capture"
	"github.com/wakebot/wakebot/pkg/detect"
)

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for wakebot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Detection DetectionConfig `yaml:"detection"`
	Actions   ActionsConfig   `yaml:"actions"`

	// StartActive selects whether clap detection is enabled at startup.
	// A triple clap toggles it at runtime either way.
	StartActive bool `yaml:"start_active"`

	// LogRMSValues enables per-block RMS debug logging. Noisy; meant for
	// threshold troubleshooting.
	LogRMSValues bool `yaml:"log_rms_values"`
}

// ServerConfig holds the observability HTTP surface and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /metrics, /healthz and /readyz
	// (e.g. ":9464"). Empty disables the HTTP server entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the input device stream.
type AudioConfig struct {
	// ChunkSize is the number of frames read per block.
	ChunkSize int `yaml:"chunk_size"`

	// SampleRate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the input channel count; 1 for mono.
	Channels int `yaml:"channels"`
}

// Params converts the audio settings into capture stream parameters.
func (a AudioConfig) Params() capture.Params {
	return capture.Params{
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		ChunkSize:  a.ChunkSize,
	}
}

// CaptureConfig tunes the fault-recovery policy of the sample source.
type CaptureConfig struct {
	// MaxReopenAttempts bounds reopen attempts per fault before the stream
	// is declared unrecoverable.
	MaxReopenAttempts int `yaml:"max_reopen_attempts"`

	// ReopenBackoffMS is the initial reopen delay in milliseconds. Doubles
	// per attempt up to MaxReopenBackoffMS.
	ReopenBackoffMS int `yaml:"reopen_backoff_ms"`

	// MaxReopenBackoffMS caps the backoff growth, in milliseconds.
	MaxReopenBackoffMS int `yaml:"max_reopen_backoff_ms"`
}

// DetectionConfig holds the clap detector's timing parameters. All
// durations are in milliseconds, matching the calibration tool's output.
type DetectionConfig struct {
	// Threshold is the RMS level at or above which a block counts as a
	// clap edge. Run wakebot-calibrate to pick a value for your room.
	Threshold float64 `yaml:"threshold"`

	// CooldownMS is the debounce spacing between registered edges.
	CooldownMS int `yaml:"cooldown_ms"`

	// DoubleClapWindowMS is how long to wait for a second clap.
	DoubleClapWindowMS int `yaml:"double_clap_window_ms"`

	// TripleClapWindowMS is how long to wait for a third clap.
	TripleClapWindowMS int `yaml:"triple_clap_window_ms"`
}

// DetectorConfig converts the detection settings into a detector config.
func (d DetectionConfig) DetectorConfig() detect.Config {
	return detect.Config{
		Threshold:    d.Threshold,
		Cooldown:     time.Duration(d.CooldownMS) * time.Millisecond,
		DoubleWindow: time.Duration(d.DoubleClapWindowMS) * time.Millisecond,
		TripleWindow: time.Duration(d.TripleClapWindowMS) * time.Millisecond,
	}
}

// ActionsConfig maps gestures to system actions.
type ActionsConfig struct {
	// WakeKey is the key pressed on a single clap (e.g. "shift"). A
	// non-intrusive key keeps the wake gesture side-effect free.
	WakeKey string `yaml:"wake_key"`

	// OpenURL is opened in the default browser on a double clap.
	OpenURL string `yaml:"open_url"`
}

// Default returns the configuration written when no config file exists yet.
// The threshold is a starting point only — run wakebot-calibrate.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Audio: AudioConfig{
			ChunkSize:  1024,
			SampleRate: 44100,
			Channels:   1,
		},
		Capture: CaptureConfig{
			MaxReopenAttempts:  10,
			ReopenBackoffMS:    1000,
			MaxReopenBackoffMS: 30000,
		},
		Detection: DetectionConfig{
			Threshold:          3000,
			CooldownMS:         100,
			DoubleClapWindowMS: 500,
			TripleClapWindowMS: 700,
		},
		Actions: ActionsConfig{
			WakeKey: "shift",
			OpenURL: "https://www.youtube.com",
		},
		StartActive: true,
	}
}
