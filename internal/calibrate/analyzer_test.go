package calibrate_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wakebot/wakebot/internal/calibrate"
)

var base = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

// record feeds the analyzer a sample every 23ms (1024 frames at 44.1kHz)
// using the given loudness trace.
func record(a *calibrate.Analyzer, trace []float64) {
	for i, v := range trace {
		a.Add(v, base.Add(time.Duration(i)*23*time.Millisecond))
	}
}

// traceWithClaps builds an ambient floor of ~200 with clap spikes (value,
// with realistic decay) at the given sample indexes.
func traceWithClaps(n int, claps map[int]float64) []float64 {
	trace := make([]float64, n)
	for i := range trace {
		trace[i] = 200 + float64(i%7)*10 // mild ambient wobble, max 260
	}
	for idx, v := range claps {
		trace[idx] = v
		if idx+1 < n {
			trace[idx+1] = v * 0.4 // decay tail above preview threshold
		}
		if idx+2 < n {
			trace[idx+2] = v * 0.15
		}
	}
	return trace
}

func TestStats(t *testing.T) {
	t.Parallel()

	var s calibrate.Stats
	if s.Count() != 0 || s.Min() != 0 || s.Max() != 0 || s.Avg() != 0 {
		t.Fatal("zero-value Stats should report zeros")
	}

	for _, v := range []float64{300, 100, 200} {
		s.Add(v)
	}
	if s.Count() != 3 {
		t.Errorf("Count = %d, want 3", s.Count())
	}
	if s.Min() != 100 || s.Max() != 300 {
		t.Errorf("Min/Max = %v/%v, want 100/300", s.Min(), s.Max())
	}
	if math.Abs(s.Avg()-200) > 1e-9 {
		t.Errorf("Avg = %v, want 200", s.Avg())
	}
}

func TestPeaks_DetectsIsolatedClaps(t *testing.T) {
	t.Parallel()

	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	record(a, traceWithClaps(200, map[int]float64{50: 5000, 120: 6200}))

	peaks := a.Peaks()
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2: %v", len(peaks), peaks)
	}
	if peaks[0].Value != 5000 || peaks[1].Value != 6200 {
		t.Errorf("peak values = %v/%v, want 5000/6200", peaks[0].Value, peaks[1].Value)
	}
	if !peaks[0].At.Before(peaks[1].At) {
		t.Error("peaks should be in time order")
	}
}

func TestPeaks_RingingYieldsOnePeak(t *testing.T) {
	t.Parallel()

	// The decay tail written by traceWithClaps sits right next to the
	// spike; the local-maximum window must absorb it into one peak.
	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	record(a, traceWithClaps(100, map[int]float64{40: 8000}))

	peaks := a.Peaks()
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1 (ringing must not double-count): %v", len(peaks), peaks)
	}
}

func TestPeaks_MinGapSuppressesNearDuplicates(t *testing.T) {
	t.Parallel()

	// Two spikes 8 samples (~184ms) apart are within the default 300ms
	// gap; only the first survives.
	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	trace := traceWithClaps(100, map[int]float64{40: 8000})
	trace[48] = 7000
	record(a, trace)

	peaks := a.Peaks()
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1: %v", len(peaks), peaks)
	}
	if peaks[0].Value != 8000 {
		t.Errorf("surviving peak = %v, want the first (8000)", peaks[0].Value)
	}
}

func TestPeaks_ShortRecording(t *testing.T) {
	t.Parallel()

	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	record(a, []float64{200, 9000, 200})
	if peaks := a.Peaks(); len(peaks) != 0 {
		t.Errorf("recording shorter than the window should yield no peaks, got %v", peaks)
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	record(a, traceWithClaps(300, map[int]float64{60: 5000, 140: 6000, 220: 5500}))

	rec, err := a.Recommend()
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if rec.ClapCount != 3 {
		t.Errorf("ClapCount = %d, want 3", rec.ClapCount)
	}
	if rec.ClapMin != 5000 {
		t.Errorf("ClapMin = %v, want 5000", rec.ClapMin)
	}
	if rec.AmbientMax >= 1000 {
		t.Errorf("AmbientMax = %v, want below preview threshold", rec.AmbientMax)
	}
	if rec.Threshold <= rec.AmbientMax || rec.Threshold >= rec.ClapMin {
		t.Errorf("Threshold %v must lie between ambient ceiling %v and quietest clap %v",
			rec.Threshold, rec.AmbientMax, rec.ClapMin)
	}
	// Halfway point, rounded.
	want := math.Round(rec.AmbientMax + (rec.ClapMin-rec.AmbientMax)/2)
	if rec.Threshold != want {
		t.Errorf("Threshold = %v, want %v", rec.Threshold, want)
	}
}

func TestRecommend_NoClaps(t *testing.T) {
	t.Parallel()

	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	record(a, traceWithClaps(100, nil))

	_, err := a.Recommend()
	if !errors.Is(err, calibrate.ErrNoClaps) {
		t.Fatalf("Recommend error = %v, want ErrNoClaps", err)
	}
}

func TestRecommend_IndistinctClaps(t *testing.T) {
	t.Parallel()

	// A loud room (ambient up to ~880) with a soft clap at 1500 leaves
	// less than the required 2x separation.
	a := calibrate.NewAnalyzer(calibrate.AnalyzerConfig{})
	trace := make([]float64, 100)
	for i := range trace {
		trace[i] = 700 + float64(i%7)*30
	}
	trace[40] = 1500
	record(a, trace)

	_, err := a.Recommend()
	if !errors.Is(err, calibrate.ErrIndistinct) {
		t.Fatalf("Recommend error = %v, want ErrIndistinct", err)
	}
}
