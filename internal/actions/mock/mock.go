// Package mock provides a recording [actions.Dispatcher] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/wakebot/wakebot/pkg/detect"
)

// Dispatcher records every dispatched event. Safe for concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	// DispatchError is returned by every Dispatch call.
	DispatchError error

	// Events holds all dispatched events in order.
	Events []detect.Event
}

// Dispatch implements [actions.Dispatcher].
func (d *Dispatcher) Dispatch(_ context.Context, ev detect.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Events = append(d.Events, ev)
	return d.DispatchError
}

// Dispatched returns a copy of the recorded events.
func (d *Dispatcher) Dispatched() []detect.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]detect.Event, len(d.Events))
	copy(out, d.Events)
	return out
}
