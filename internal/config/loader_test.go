package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wakebot/wakebot/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9464"
  log_level: debug
audio:
  chunk_size: 2048
  sample_rate: 48000
  channels: 2
capture:
  max_reopen_attempts: 5
  reopen_backoff_ms: 500
  max_reopen_backoff_ms: 8000
detection:
  threshold: 2500
  cooldown_ms: 120
  double_clap_window_ms: 450
  triple_clap_window_ms: 650
actions:
  wake_key: shift
  open_url: https://example.com
start_active: true
log_rms_values: true
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9464" {
		t.Errorf("listen_addr = %q, want :9464", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Audio.ChunkSize != 2048 || cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 {
		t.Errorf("audio = %+v, want 2048/48000/2", cfg.Audio)
	}
	if cfg.Detection.Threshold != 2500 {
		t.Errorf("threshold = %v, want 2500", cfg.Detection.Threshold)
	}
	if !cfg.LogRMSValues {
		t.Error("log_rms_values should be true")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("detektion:\n  threshold: 3000\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantMsg: "log_level",
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *config.Config) { c.Audio.ChunkSize = 0 },
			wantMsg: "chunk_size",
		},
		{
			name:    "zero sample rate",
			mutate:  func(c *config.Config) { c.Audio.SampleRate = 0 },
			wantMsg: "sample_rate",
		},
		{
			name:    "zero channels",
			mutate:  func(c *config.Config) { c.Audio.Channels = 0 },
			wantMsg: "channels",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *config.Config) { c.Detection.Threshold = 0 },
			wantMsg: "threshold",
		},
		{
			name:    "negative cooldown",
			mutate:  func(c *config.Config) { c.Detection.CooldownMS = -1 },
			wantMsg: "cooldown_ms",
		},
		{
			name:    "double window not above cooldown",
			mutate:  func(c *config.Config) { c.Detection.DoubleClapWindowMS = 100 },
			wantMsg: "double_clap_window_ms",
		},
		{
			name:    "triple window not above cooldown",
			mutate:  func(c *config.Config) { c.Detection.TripleClapWindowMS = 50 },
			wantMsg: "triple_clap_window_ms",
		},
		{
			name:    "negative reopen attempts",
			mutate:  func(c *config.Config) { c.Capture.MaxReopenAttempts = -1 },
			wantMsg: "max_reopen_attempts",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tc.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error should mention %q, got: %v", tc.wantMsg, err)
			}
		})
	}
}

func TestValidate_Default(t *testing.T) {
	t.Parallel()

	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoad_WritesDefaultWhenMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wakebot.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if cfg.Detection.Threshold != config.Default().Detection.Threshold {
		t.Errorf("missing file should yield defaults, got threshold %v", cfg.Detection.Threshold)
	}

	// The defaults must have been persisted and be loadable again.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file was not written: %v", err)
	}
	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("reloading written defaults: %v", err)
	}
	if *reloaded != *cfg {
		t.Errorf("reloaded config differs from defaults:\n got %+v\nwant %+v", reloaded, cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Detection.Threshold = 4200
	cfg.Actions.OpenURL = "https://news.ycombinator.com"

	path := filepath.Join(t.TempDir(), "wakebot.yaml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestDetectionConfig_DetectorConfig(t *testing.T) {
	t.Parallel()

	d := config.DetectionConfig{
		Threshold:          3000,
		CooldownMS:         100,
		DoubleClapWindowMS: 500,
		TripleClapWindowMS: 700,
	}
	dc := d.DetectorConfig()
	if dc.Threshold != 3000 {
		t.Errorf("Threshold = %v, want 3000", dc.Threshold)
	}
	if dc.Cooldown != 100*time.Millisecond {
		t.Errorf("Cooldown = %v, want 100ms", dc.Cooldown)
	}
	if dc.DoubleWindow != 500*time.Millisecond || dc.TripleWindow != 700*time.Millisecond {
		t.Errorf("windows = %v/%v, want 500ms/700ms", dc.DoubleWindow, dc.TripleWindow)
	}
}

func TestAudioConfig_Params(t *testing.T) {
	t.Parallel()

	a := config.AudioConfig{ChunkSize: 1024, SampleRate: 44100, Channels: 1}
	p := a.Params()
	if p.ChunkSize != 1024 || p.SampleRate != 44100 || p.Channels != 1 {
		t.Errorf("Params = %+v, want 1024/44100/1", p)
	}
}
