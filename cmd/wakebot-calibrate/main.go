// Command wakebot-calibrate records the room through the microphone and
// recommends a clap detection threshold.
//
// Run it, stay quiet for a few seconds, clap a handful of times, then press
// Ctrl+C. The tool separates the ambient loudness floor from the clap peaks
// and prints a threshold recommendation; with -write it is saved straight
// into the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wakebot/wakebot/internal/calibrate"
	"github.com/wakebot/wakebot/internal/config"
	"github.com/wakebot/wakebot/pkg/capture"
	"github.com/wakebot/wakebot/pkg/capture/portaudio"
	"github.com/wakebot/wakebot/pkg/dsp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "wakebot.yaml", "path to the YAML configuration file")
	write := flag.Bool("write", false, "write the recommended threshold back into the config file")
	preview := flag.Float64("preview", 0, "loudness above which samples are echoed live (0 = analyzer default)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wakebot-calibrate: %v\n", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := capture.NewSource(capture.SourceConfig{
		Params: cfg.Audio.Params(),
		Opener: portaudio.Opener{},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "wakebot-calibrate: %v\n", err)
		return 1
	}
	if err := src.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wakebot-calibrate: %v\n", err)
		return 1
	}
	defer src.Close()

	analyzer := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{PreviewThreshold: *preview})

	fmt.Println("Recording. Stay quiet for a few seconds, then clap 4-5 times")
	fmt.Println("with a second or so between claps. Press Ctrl+C when done.")
	fmt.Println()

	if err := record(ctx, src, analyzer); err != nil {
		fmt.Fprintf(os.Stderr, "wakebot-calibrate: recording failed: %v\n", err)
		return 1
	}

	rec, err := analyzer.Recommend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nwakebot-calibrate: %v\n", err)
		return 1
	}
	printReport(rec, analyzer.Count())

	if *write {
		cfg.Detection.Threshold = rec.Threshold
		if err := config.Save(cfg, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "wakebot-calibrate: %v\n", err)
			return 1
		}
		fmt.Printf("Threshold %.0f written to %s.\n", rec.Threshold, *configPath)
	} else {
		fmt.Printf("Set detection.threshold to %.0f in %s (or rerun with -write).\n", rec.Threshold, *configPath)
	}
	return 0
}

// record pulls blocks until ctx is cancelled, feeding every block's RMS to
// the analyzer and echoing loud samples so the user sees their claps land.
func record(ctx context.Context, src *capture.Source, analyzer *calibrate.Analyzer) error {
	start := time.Now()
	for {
		block, err := src.Pull(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		rms := dsp.RMS(block)
		analyzer.Add(rms, time.Now())

		if rms > analyzer.PreviewThreshold() {
			fmt.Printf("  %6.1fs  clap?  rms=%.0f\n", time.Since(start).Seconds(), rms)
		}
	}
}

func printReport(rec calibrate.Recommendation, samples int) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      wakebot-calibrate — report       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Samples recorded : %-17d ║\n", samples)
	fmt.Printf("║  Claps detected   : %-17d ║\n", rec.ClapCount)
	fmt.Printf("║  Ambient max/avg  : %-17s ║\n", fmt.Sprintf("%.0f / %.0f", rec.AmbientMax, rec.AmbientAvg))
	fmt.Printf("║  Clap min/avg     : %-17s ║\n", fmt.Sprintf("%.0f / %.0f", rec.ClapMin, rec.ClapAvg))
	fmt.Printf("║  Threshold        : %-17.0f ║\n", rec.Threshold)
	fmt.Println("╚═══════════════════════════════════════╝")

	headroom := rec.ClapMin / math.Max(rec.AmbientMax, 1)
	if headroom < 3 {
		fmt.Println("Note: claps are close to the ambient floor; consider a quieter")
		fmt.Println("room or clapping closer to the microphone, then recalibrate.")
	}
}
