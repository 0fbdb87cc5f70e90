package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default recovery parameters, matching the reconnection policy used
// elsewhere in the project.
const (
	defaultMaxReopenAttempts = 10
	defaultReopenBackoff     = 1 * time.Second
	defaultMaxReopenBackoff  = 30 * time.Second
)

// SourceConfig configures a [Source].
type SourceConfig struct {
	// Params describes the device stream to open.
	Params Params

	// Opener acquires device handles. Required.
	Opener Opener

	// MaxReopenAttempts bounds how many reopen attempts one fault may
	// consume before the stream is declared unrecoverable. Defaults to 10
	// if zero.
	MaxReopenAttempts int

	// ReopenBackoff is the initial delay before a reopen attempt. Doubles
	// each attempt up to MaxReopenBackoff. Defaults to 1s if zero.
	ReopenBackoff time.Duration

	// MaxReopenBackoff caps the backoff growth. Defaults to 30s if zero.
	MaxReopenBackoff time.Duration

	// OnFault is called for every transient read fault, before recovery
	// starts. May be nil. Best effort: recovery proceeds regardless.
	OnFault func(err error)

	// OnReopen is called after a successful reopen with the attempt number
	// that succeeded. May be nil.
	OnReopen func(attempt int)
}

// Source produces complete, fresh sample blocks from an audio input device
// and transparently recovers from read faults by cycling the device handle.
//
// Open, Pull, and Close are intended for a single owning goroutine; Close
// may additionally be called from a shutdown path and is idempotent.
type Source struct {
	params      Params
	opener      Opener
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	onFault     func(err error)
	onReopen    func(attempt int)

	mu     sync.Mutex
	stream Stream
	closed bool
}

// NewSource creates a Source from cfg. Zero-value recovery knobs are
// replaced with defaults. The device is not touched until [Source.Open].
func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("capture: opener is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("capture: invalid params: %w", err)
	}
	maxAttempts := cfg.MaxReopenAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReopenAttempts
	}
	backoff := cfg.ReopenBackoff
	if backoff <= 0 {
		backoff = defaultReopenBackoff
	}
	maxBackoff := cfg.MaxReopenBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxReopenBackoff
	}
	return &Source{
		params:      cfg.Params,
		opener:      cfg.Opener,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		maxBackoff:  maxBackoff,
		onFault:     cfg.OnFault,
		onReopen:    cfg.OnReopen,
	}, nil
}

// Params returns the stream configuration the source was built with.
func (s *Source) Params() Params {
	return s.params
}

// Open acquires the device. Failure here means no usable input device exists
// (or permissions are denied); it is surfaced wrapped in
// [ErrDeviceUnavailable] and never retried internally.
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotOpen
	}
	if s.stream != nil {
		return nil
	}
	stream, err := s.opener.Open(ctx, s.params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	return nil
}

// Pull blocks until one complete block of ChunkSize×Channels samples has
// been read and returns it. A block is either complete and fresh, or Pull
// returns an error — no partial or stale data is ever delivered.
//
// On a read fault Pull closes the handle and reopens it after a backoff
// delay, retrying up to the configured attempt budget; a successful reopen
// resumes pulling as if nothing happened. Exhausting the budget returns an
// error wrapping [ErrStreamUnrecoverable]. Backoff waits honour ctx.
func (s *Source) Pull(ctx context.Context) (Block, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := s.current()
		if err != nil {
			return nil, err
		}

		block := make(Block, s.params.BlockLen())
		readErr := stream.Read(block)
		if readErr == nil {
			return block, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Warn("capture: stream read fault, attempting recovery", "error", readErr)
		if s.onFault != nil {
			s.onFault(readErr)
		}

		if err := s.reopen(ctx); err != nil {
			return nil, err
		}
	}
}

// Close releases the device handle. Safe to call multiple times and on all
// exit paths; after Close, Pull returns [ErrNotOpen].
func (s *Source) Close() error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.closed = true
	s.mu.Unlock()

	if stream != nil {
		return stream.Close()
	}
	return nil
}

// current returns the active stream handle or the reason there is none.
func (s *Source) current() (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stream == nil {
		return nil, ErrNotOpen
	}
	return s.stream, nil
}

// reopen cycles the device handle: close, back off, reopen, with capped
// exponential backoff between attempts. The faulted handle is always closed
// first so no handle leaks across recovery cycles.
func (s *Source) reopen(ctx context.Context) error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	closed := s.closed
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			slog.Debug("capture: closing faulted stream", "error", err)
		}
	}
	if closed {
		return ErrNotOpen
	}

	currentBackoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		slog.Info("capture: reopening input stream",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"backoff", currentBackoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(currentBackoff):
		}

		stream, err := s.opener.Open(ctx, s.params)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				_ = stream.Close()
				return ErrNotOpen
			}
			s.stream = stream
			s.mu.Unlock()

			slog.Info("capture: input stream reopened", "attempt", attempt)
			if s.onReopen != nil {
				s.onReopen(attempt)
			}
			return nil
		}
		lastErr = err

		slog.Warn("capture: reopen attempt failed",
			"attempt", attempt,
			"error", err,
		)

		currentBackoff *= 2
		if currentBackoff > s.maxBackoff {
			currentBackoff = s.maxBackoff
		}
	}

	return fmt.Errorf("%w: %d reopen attempts failed, last error: %w",
		ErrStreamUnrecoverable, s.maxAttempts, lastErr)
}
