// Package portaudio implements [capture.Opener] on top of the PortAudio
// library, reading interleaved int16 PCM from the system default input
// device.
//
// PortAudio's Initialize/Terminate calls are reference counted by the
// underlying library, so each opened stream pairs its own Initialize with a
// Terminate on close; reopen cycles during fault recovery stay balanced.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/wakebot/wakebot/pkg/capture"
)

// Opener opens the default input device. The zero value is ready to use.
type Opener struct{}

// Open implements [capture.Opener]. It acquires the default input device
// with the given sample rate, channel count, and frames-per-buffer, and
// starts the stream. Open fails when no input device exists or access is
// denied; the caller decides whether that is fatal.
func (Opener) Open(ctx context.Context, p capture.Params) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	// The buffer is bound to the stream at open time; Read fills it.
	buf := make([]int16, p.BlockLen())
	pa, err := portaudio.OpenDefaultStream(p.Channels, 0, float64(p.SampleRate), p.ChunkSize, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open default input: %w", err)
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}

	return &stream{pa: pa, buf: buf}, nil
}

// stream adapts *portaudio.Stream to [capture.Stream].
type stream struct {
	pa  *portaudio.Stream
	buf []int16

	closeOnce sync.Once
	closeErr  error
}

// Read blocks until the bound buffer is filled, then copies it into dst so
// the caller always receives a fresh block independent of the next read.
func (s *stream) Read(dst []int16) error {
	if len(dst) != len(s.buf) {
		return fmt.Errorf("portaudio: read destination holds %d samples, stream delivers %d", len(dst), len(s.buf))
	}
	if err := s.pa.Read(); err != nil {
		return fmt.Errorf("portaudio: read: %w", err)
	}
	copy(dst, s.buf)
	return nil
}

// Close stops the stream and releases the device. Safe to call multiple
// times; only the first call takes effect.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		stopErr := s.pa.Stop()
		closeErr := s.pa.Close()
		termErr := portaudio.Terminate()
		switch {
		case closeErr != nil:
			s.closeErr = fmt.Errorf("portaudio: close: %w", closeErr)
		case stopErr != nil:
			s.closeErr = fmt.Errorf("portaudio: stop: %w", stopErr)
		case termErr != nil:
			s.closeErr = fmt.Errorf("portaudio: terminate: %w", termErr)
		}
	})
	return s.closeErr
}
