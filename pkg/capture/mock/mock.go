// Package mock provides scripted in-memory implementations of
// [capture.Stream] and [capture.Opener] for use in unit tests.
//
// Both mocks are safe for concurrent use. They record call counts so tests
// can assert on handle lifecycle, and they consume scripted outcomes so
// tests can inject read faults and open failures at precise points.
//
// Typical usage:
//
//	stream := &mock.Stream{Outcomes: []mock.ReadOutcome{
//	    {Value: 4000},
//	    {Err: errors.New("device unplugged")},
//	}}
//	opener := &mock.Opener{Sequence: []mock.OpenOutcome{{Stream: stream}}}
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/wakebot/wakebot/pkg/capture"
)

// ReadOutcome scripts the result of one Stream.Read call.
type ReadOutcome struct {
	// Err, when non-nil, is returned without touching dst.
	Err error

	// Value is written to every element of dst on a successful read.
	Value int16
}

// Stream is a scripted [capture.Stream]. Each Read consumes the next
// outcome; when the script is exhausted, reads succeed with silence.
type Stream struct {
	mu sync.Mutex

	// Outcomes is consumed one entry per Read call.
	Outcomes []ReadOutcome

	// CloseError is returned by Close.
	CloseError error

	// CallCountRead records how many times Read was called.
	CallCountRead int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Read implements [capture.Stream].
func (s *Stream) Read(dst []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountRead++

	if len(s.Outcomes) == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	out := s.Outcomes[0]
	s.Outcomes = s.Outcomes[1:]
	if out.Err != nil {
		return out.Err
	}
	for i := range dst {
		dst[i] = out.Value
	}
	return nil
}

// Close implements [capture.Stream]. Returns CloseError.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// OpenOutcome scripts the result of one Opener.Open call.
type OpenOutcome struct {
	// Err, when non-nil, is returned instead of a stream.
	Err error

	// Stream is handed out on success.
	Stream capture.Stream
}

// Opener is a scripted [capture.Opener]. Each Open consumes the next
// outcome; an exhausted script returns an error so tests fail loudly when
// more handles are requested than were planned for.
type Opener struct {
	mu sync.Mutex

	// Sequence is consumed one entry per Open call.
	Sequence []OpenOutcome

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// GotParams records the params of every Open call, in order.
	GotParams []capture.Params
}

// Open implements [capture.Opener].
func (o *Opener) Open(_ context.Context, p capture.Params) (capture.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountOpen++
	o.GotParams = append(o.GotParams, p)

	if len(o.Sequence) == 0 {
		return nil, errors.New("mock: open called with no scripted outcomes left")
	}
	out := o.Sequence[0]
	o.Sequence = o.Sequence[1:]
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Stream, nil
}
