// Command wakebot is the clap-controlled automation daemon: it listens to
// the microphone, classifies clap gestures, and triggers the configured
// system actions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wakebot/wakebot/internal/actions"
	"github.com/wakebot/wakebot/internal/app"
	"github.com/wakebot/wakebot/internal/config"
	"github.com/wakebot/wakebot/internal/observe"
	"github.com/wakebot/wakebot/pkg/capture"
	"github.com/wakebot/wakebot/pkg/capture/portaudio"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "wakebot.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wakebot: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("wakebot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "wakebot",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Capture source ────────────────────────────────────────────────────────
	src, err := capture.NewSource(capture.SourceConfig{
		Params:            cfg.Audio.Params(),
		Opener:            portaudio.Opener{},
		MaxReopenAttempts: cfg.Capture.MaxReopenAttempts,
		ReopenBackoff:     time.Duration(cfg.Capture.ReopenBackoffMS) * time.Millisecond,
		MaxReopenBackoff:  time.Duration(cfg.Capture.MaxReopenBackoffMS) * time.Millisecond,
		OnFault: func(error) {
			metrics.StreamFaults.Add(context.Background(), 1)
		},
		OnReopen: func(int) {
			metrics.StreamReopens.Add(context.Background(), 1)
		},
	})
	if err != nil {
		slog.Error("failed to create capture source", "err", err)
		return 1
	}

	// ── Orchestrator and dispatcher ───────────────────────────────────────────
	application, err := app.New(cfg, src, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	dispatcher, err := actions.NewSystem(actions.Config{
		WakeKey: cfg.Actions.WakeKey,
		OpenURL: cfg.Actions.OpenURL,
		Toggle:  application.Toggle,
	})
	if err != nil {
		slog.Error("failed to create action dispatcher", "err", err)
		return 1
	}
	application.SetDispatcher(dispatcher)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)
	slog.Info("listening for claps — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         wakebot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Audio", fmt.Sprintf("%dHz / %dch / %d", cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.ChunkSize))
	printRow("Threshold", fmt.Sprintf("%.0f", cfg.Detection.Threshold))
	printRow("Windows", fmt.Sprintf("%dms / %dms", cfg.Detection.DoubleClapWindowMS, cfg.Detection.TripleClapWindowMS))
	printRow("Wake key", cfg.Actions.WakeKey)
	printRow("Double-clap URL", cfg.Actions.OpenURL)
	if cfg.StartActive {
		printRow("Detection", "active")
	} else {
		printRow("Detection", "paused (triple clap to enable)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
