// Package capture acquires fixed-size blocks of audio samples from an input
// device and survives transient device failures.
//
// The low-level device handle is abstracted behind [Stream] and acquired
// through an [Opener]; the production implementation lives in the portaudio
// subpackage and test doubles in the mock subpackage. [Source] wraps an
// Opener with the fault-recovery policy: a failed read closes the handle and
// reopens it with capped exponential backoff, up to a bounded attempt budget.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceUnavailable is wrapped by [Source.Open] when the input device
	// cannot be acquired at all (no device, permission denied). It is fatal
	// and never retried internally.
	ErrDeviceUnavailable = errors.New("capture: audio input device unavailable")

	// ErrStreamUnrecoverable is wrapped by [Source.Pull] once the reopen
	// attempt budget is exhausted. The stream is dead; manual intervention
	// or a process restart is required.
	ErrStreamUnrecoverable = errors.New("capture: stream unrecoverable")

	// ErrNotOpen is returned by [Source.Pull] before [Source.Open] succeeded
	// or after [Source.Close].
	ErrNotOpen = errors.New("capture: source not open")
)

// Params describes the device stream configuration.
type Params struct {
	// SampleRate in Hz (e.g. 44100).
	SampleRate int

	// Channels is the interleaved channel count; 1 for mono.
	Channels int

	// ChunkSize is the number of frames per block.
	ChunkSize int
}

// BlockLen is the number of int16 samples in one block: ChunkSize × Channels.
func (p Params) BlockLen() int {
	return p.ChunkSize * p.Channels
}

// BlockInterval is the nominal wall-clock duration covered by one block.
// This bounds the extra latency of poll-driven gesture timeouts downstream.
func (p Params) BlockInterval() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.ChunkSize) * time.Second / time.Duration(p.SampleRate)
}

// Validate reports whether the params describe an openable stream.
func (p Params) Validate() error {
	var errs []error
	if p.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be > 0, got %d", p.SampleRate))
	}
	if p.Channels <= 0 {
		errs = append(errs, fmt.Errorf("channels must be > 0, got %d", p.Channels))
	}
	if p.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be > 0, got %d", p.ChunkSize))
	}
	return errors.Join(errs...)
}

// Block is one complete, fresh block of interleaved signed samples. A Block
// is handed to exactly one consumer and never reused by the Source.
type Block []int16

// Stream is an open device handle delivering raw samples.
type Stream interface {
	// Read blocks until len(dst) samples are available and fills dst
	// completely, or returns an error without delivering a partial block.
	Read(dst []int16) error

	// Close releases the device handle. Implementations must tolerate
	// multiple calls.
	Close() error
}

// Opener acquires a [Stream] for the given params. Each call must return an
// independent handle; the Source closes a faulted handle before asking for a
// new one.
type Opener interface {
	Open(ctx context.Context, p Params) (Stream, error)
}
