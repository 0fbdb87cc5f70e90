// Package calibrate analyses an RMS loudness recording to recommend a clap
// detection threshold for the current room and microphone.
//
// The calibration tool records a quiet baseline followed by deliberate
// claps. The analyzer separates the two populations: ambient samples feed
// running statistics, loud samples are checked for isolated local maxima
// (one per physical clap), and the recommendation lands between the ambient
// ceiling and the quietest clap peak.
package calibrate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Defaults for the analyzer knobs.
const (
	defaultPreviewThreshold = 1000
	defaultPeakWindow       = 5
	defaultMinClapGap       = 300 * time.Millisecond
)

// ErrNoClaps is wrapped by [Analyzer.Recommend] when the recording contains
// no detectable clap peaks.
var ErrNoClaps = errors.New("calibrate: no claps detected")

// ErrIndistinct is wrapped by [Analyzer.Recommend] when the quietest clap is
// less than twice the ambient ceiling — too little separation for a
// threshold that avoids both false positives and missed claps.
var ErrIndistinct = errors.New("calibrate: claps indistinguishable from ambient noise")

// Stats accumulates running min/max/avg over a stream of values.
type Stats struct {
	n        int
	min, max float64
	sum      float64
}

// Add folds v into the statistics.
func (s *Stats) Add(v float64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.n++
}

// Count returns how many values were added.
func (s *Stats) Count() int { return s.n }

// Min returns the smallest value seen, or 0 before any Add.
func (s *Stats) Min() float64 { return s.min }

// Max returns the largest value seen, or 0 before any Add.
func (s *Stats) Max() float64 { return s.max }

// Avg returns the mean of all values, or 0 before any Add.
func (s *Stats) Avg() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// Peak is one detected clap: an isolated local loudness maximum.
type Peak struct {
	At    time.Time
	Value float64
}

// Recommendation is the analyzer's calibration verdict.
type Recommendation struct {
	// Threshold is the recommended detection threshold: halfway between
	// the ambient ceiling and the quietest clap.
	Threshold float64

	// AmbientMax and AmbientAvg describe the quiet-baseline population.
	AmbientMax float64
	AmbientAvg float64

	// ClapMin and ClapAvg describe the detected clap peaks.
	ClapMin float64
	ClapAvg float64

	// ClapCount is the number of distinct claps detected.
	ClapCount int
}

// AnalyzerConfig tunes the clap-peak detection.
type AnalyzerConfig struct {
	// PreviewThreshold separates potential clap samples from ambient
	// samples during collection. Defaults to 1000 if zero.
	PreviewThreshold float64

	// PeakWindow is how many samples on each side a candidate must exceed
	// to count as a peak. Defaults to 5 if zero.
	PeakWindow int

	// MinClapGap suppresses peaks closer together than one physical clap
	// plausibly allows. Defaults to 300ms if zero.
	MinClapGap time.Duration
}

// Analyzer collects timestamped RMS values and extracts clap peaks.
// Not safe for concurrent use; the calibration loop is single-threaded.
type Analyzer struct {
	preview float64
	window  int
	minGap  time.Duration

	values []float64
	times  []time.Time
}

// NewAnalyzer creates an Analyzer. Zero-value config fields get defaults.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	preview := cfg.PreviewThreshold
	if preview <= 0 {
		preview = defaultPreviewThreshold
	}
	window := cfg.PeakWindow
	if window <= 0 {
		window = defaultPeakWindow
	}
	minGap := cfg.MinClapGap
	if minGap <= 0 {
		minGap = defaultMinClapGap
	}
	return &Analyzer{preview: preview, window: window, minGap: minGap}
}

// Add records one RMS measurement.
func (a *Analyzer) Add(v float64, at time.Time) {
	a.values = append(a.values, v)
	a.times = append(a.times, at)
}

// Count returns the number of recorded measurements.
func (a *Analyzer) Count() int { return len(a.values) }

// PreviewThreshold returns the effective ambient/clap split level, after
// defaulting. The calibration tool echoes samples above it live.
func (a *Analyzer) PreviewThreshold() float64 { return a.preview }

// Ambient returns statistics over the samples below the preview threshold.
func (a *Analyzer) Ambient() Stats {
	var s Stats
	for _, v := range a.values {
		if v < a.preview {
			s.Add(v)
		}
	}
	return s
}

// Peaks returns the detected clap peaks in time order. A sample is a peak
// when it exceeds the preview threshold, is strictly greater than every
// neighbour within the peak window, and lies at least MinClapGap after the
// previously accepted peak — a clap's ringing therefore yields one peak.
func (a *Analyzer) Peaks() []Peak {
	var peaks []Peak
	if len(a.values) < 2*a.window {
		return peaks
	}
	for i := a.window; i < len(a.values)-a.window; i++ {
		v := a.values[i]
		if v <= a.preview {
			continue
		}
		isPeak := true
		for j := i - a.window; j <= i+a.window; j++ {
			if j != i && a.values[j] >= v {
				isPeak = false
				break
			}
		}
		if !isPeak {
			continue
		}
		if len(peaks) > 0 && a.times[i].Sub(peaks[len(peaks)-1].At) <= a.minGap {
			continue
		}
		peaks = append(peaks, Peak{At: a.times[i], Value: v})
	}
	return peaks
}

// Recommend computes the threshold recommendation from the collected data.
func (a *Analyzer) Recommend() (Recommendation, error) {
	peaks := a.Peaks()
	if len(peaks) == 0 {
		return Recommendation{}, fmt.Errorf("%w: record some claps and retry", ErrNoClaps)
	}

	ambient := a.Ambient()

	var claps Stats
	for _, p := range peaks {
		claps.Add(p.Value)
	}

	if claps.Min() < 2*ambient.Max() {
		return Recommendation{}, fmt.Errorf("%w: quietest clap %.0f vs ambient ceiling %.0f",
			ErrIndistinct, claps.Min(), ambient.Max())
	}

	// Halfway between the ambient ceiling and the quietest clap keeps
	// equal margin against false positives and missed claps.
	threshold := math.Round(ambient.Max() + (claps.Min()-ambient.Max())/2)

	return Recommendation{
		Threshold:  threshold,
		AmbientMax: ambient.Max(),
		AmbientAvg: ambient.Avg(),
		ClapMin:    claps.Min(),
		ClapAvg:    claps.Avg(),
		ClapCount:  claps.Count(),
	}, nil
}
