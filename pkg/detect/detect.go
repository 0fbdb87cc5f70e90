// Package detect implements clap gesture detection over a loudness stream.
//
// The central type is [Detector], a timing-window state machine that consumes
// (loudness, timestamp) samples in arrival order and classifies clap
// sequences into Single, Double, and Triple gestures. A cooldown debounce
// collapses the threshold-crossing samples produced by one physical clap's
// acoustic ringing into a single logical edge, and per-phase deadlines decide
// when a sequence completes versus times out.
//
// The detector is deliberately not safe for concurrent use: its correctness
// depends on strictly ordered, non-overlapping observation of samples, so a
// single goroutine must own each instance.
package detect

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by [New] when the supplied [Config] violates
// one of its invariants. Use errors.Is to test for it.
var ErrInvalidConfig = errors.New("detect: invalid configuration")

// Gesture classifies a completed clap sequence.
type Gesture int

const (
	// Single is one isolated clap, emitted when the double-clap window
	// expires without a second edge.
	Single Gesture = iota + 1

	// Double is two claps, emitted when the triple-clap window expires
	// without a third edge.
	Double

	// Triple is three claps, emitted immediately on the third edge.
	Triple
)

// String returns the human-readable name of the gesture.
func (g Gesture) String() string {
	switch g {
	case Single:
		return "single"
	case Double:
		return "double"
	case Triple:
		return "triple"
	default:
		return "unknown"
	}
}

// Sample is one loudness measurement with the monotonic instant at which the
// underlying audio block was captured.
type Sample struct {
	// Value is the non-negative loudness metric (RMS amplitude).
	Value float64

	// At is when the block producing this value was captured.
	At time.Time
}

// Event is an emitted gesture tagged with the instant that completed or
// timed out the sequence. For Triple this is the third edge's timestamp; for
// Single and Double it is the expired window deadline.
type Event struct {
	Gesture Gesture
	At      time.Time
}

// Config holds the detection timing parameters. A Detector keeps its Config
// for life; changing parameters means constructing a new Detector.
type Config struct {
	// Threshold is the loudness level at or above which a sample may
	// register as a clap edge. Must be > 0.
	Threshold float64

	// Cooldown is the minimum spacing between registered edges. Samples
	// arriving within Cooldown of the last edge are ignored entirely,
	// whatever their value. Must be >= 0.
	Cooldown time.Duration

	// DoubleWindow is how long after a first edge a second edge may arrive
	// to extend the sequence. Must be > Cooldown, otherwise a second clap
	// could never register.
	DoubleWindow time.Duration

	// TripleWindow is how long after a second edge a third edge may arrive.
	// Must be > Cooldown.
	TripleWindow time.Duration
}

// validate reports all invariant violations in cfg, joined into one error
// wrapping [ErrInvalidConfig].
func (c Config) validate() error {
	var errs []error
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be > 0, got %v", c.Threshold))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must be >= 0, got %v", c.Cooldown))
	}
	if c.DoubleWindow <= c.Cooldown {
		errs = append(errs, fmt.Errorf("double clap window (%v) must exceed cooldown (%v)", c.DoubleWindow, c.Cooldown))
	}
	if c.TripleWindow <= c.Cooldown {
		errs = append(errs, fmt.Errorf("triple clap window (%v) must exceed cooldown (%v)", c.TripleWindow, c.Cooldown))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// phase is the detector's current position in a clap sequence. Cooldown is
// not a phase of its own — it is a guard inside edge detection, nested within
// whichever window is armed.
type phase int

const (
	// phaseIdle means no sequence is in progress.
	phaseIdle phase = iota

	// phaseWaitingSecond means one edge registered; waiting for a second
	// within the double-clap window.
	phaseWaitingSecond

	// phaseWaitingThird means two edges registered; waiting for a third
	// within the triple-clap window.
	phaseWaitingThird
)

// String returns the phase name, for log output.
func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseWaitingSecond:
		return "waiting-second"
	case phaseWaitingThird:
		return "waiting-third"
	default:
		return "unknown"
	}
}

// Detector converts an ordered loudness stream into clap gestures.
// Construct with [New]; feed samples through [Detector.Observe].
type Detector struct {
	cfg Config

	phase    phase
	deadline time.Time // armed only while phase != phaseIdle
	claps    int       // edges registered in the current sequence (0..2)

	lastEdge time.Time // debounce anchor; survives sequence resets
	hasEdge  bool
}

// New creates a Detector with the given config. It fails fast with an error
// wrapping [ErrInvalidConfig] when the config invariants do not hold; the
// detector is never partially constructed.
func New(cfg Config) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Observe steps the state machine with one loudness sample and reports
// whether a gesture was emitted. Samples must arrive in capture order;
// Observe performs O(1) work and never fails.
//
// Timeout detection is driven by sample arrival: an armed deadline that has
// strictly passed emits its pending gesture (stamped with the deadline
// instant) before the current sample is considered. A qualifying edge landing
// exactly on the deadline completes the gesture instead — ties favour
// completion. At most one gesture is emitted per call.
func (d *Detector) Observe(s Sample) (Event, bool) {
	if d.phase != phaseIdle && s.At.After(d.deadline) {
		ev := Event{At: d.deadline}
		if d.phase == phaseWaitingSecond {
			ev.Gesture = Single
		} else {
			ev.Gesture = Double
		}
		d.resetSequence()
		// The sample that revealed the timeout may itself open the next
		// sequence; it cannot emit a second gesture this step.
		if d.qualifies(s) {
			d.registerEdge(s)
			d.phase = phaseWaitingSecond
			d.deadline = s.At.Add(d.cfg.DoubleWindow)
		}
		return ev, true
	}

	if !d.qualifies(s) {
		return Event{}, false
	}

	switch d.phase {
	case phaseIdle:
		d.registerEdge(s)
		d.phase = phaseWaitingSecond
		d.deadline = s.At.Add(d.cfg.DoubleWindow)
	case phaseWaitingSecond:
		d.registerEdge(s)
		d.phase = phaseWaitingThird
		d.deadline = s.At.Add(d.cfg.TripleWindow)
	case phaseWaitingThird:
		// Third edge: the only non-timeout emission.
		d.resetSequence()
		d.lastEdge = s.At
		d.hasEdge = true
		return Event{Gesture: Triple, At: s.At}, true
	}
	return Event{}, false
}

// qualifies reports whether s registers as a clap edge: at or above the
// threshold (inclusive) and outside the cooldown of the last edge. Samples
// with timestamps flowing backward are non-qualifying rather than fatal.
func (d *Detector) qualifies(s Sample) bool {
	if s.Value < d.cfg.Threshold {
		return false
	}
	if !d.hasEdge {
		return true
	}
	if s.At.Before(d.lastEdge) {
		return false
	}
	return s.At.Sub(d.lastEdge) >= d.cfg.Cooldown
}

// registerEdge records s as the latest edge and bumps the sequence counter.
func (d *Detector) registerEdge(s Sample) {
	d.lastEdge = s.At
	d.hasEdge = true
	d.claps++
}

// resetSequence returns the machine to idle with a zero counter. The
// debounce anchor is kept so a clap's ringing cannot seed the next sequence.
func (d *Detector) resetSequence() {
	d.phase = phaseIdle
	d.deadline = time.Time{}
	d.claps = 0
}

// Reset discards any in-progress sequence and the debounce anchor, returning
// the detector to its freshly constructed state. The orchestrator uses this
// when detection is paused so a stale window cannot complete across the
// pause boundary.
func (d *Detector) Reset() {
	d.resetSequence()
	d.lastEdge = time.Time{}
	d.hasEdge = false
}

// Idle reports whether no clap sequence is currently in progress.
func (d *Detector) Idle() bool {
	return d.phase == phaseIdle && d.claps == 0
}
