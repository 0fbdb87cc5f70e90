// Package actions maps classified clap gestures to system automation:
// a non-intrusive keypress to wake the display, a URL opened in the default
// browser, and a detection pause toggle.
//
// The [Dispatcher] interface is what the orchestrator talks to; [System] is
// the production implementation and the mock subpackage provides a recording
// double for tests.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/micmonay/keybd_event"
	"github.com/pkg/browser"

	"github.com/wakebot/wakebot/pkg/detect"
)

// Dispatcher consumes exactly one gesture event per completed clap sequence.
// Dispatch is fire-and-forget from the pipeline's point of view: an error is
// logged and counted but never stops detection.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev detect.Event) error
}

// Config configures the [System] dispatcher.
type Config struct {
	// WakeKey is the key pressed on a single clap. See [SupportedKeys].
	WakeKey string

	// OpenURL is opened in the default browser on a double clap. Empty
	// makes the double-clap action a no-op.
	OpenURL string

	// Toggle flips detection on a triple clap and reports the new state.
	// Wired by the orchestrator; may be nil, making triple a no-op.
	Toggle func() bool
}

// System performs real system automation.
type System struct {
	cfg   Config
	press func() error
}

// NewSystem builds a dispatcher from cfg. It fails when WakeKey names a key
// this package cannot synthesise.
func NewSystem(cfg Config) (*System, error) {
	press, err := pressFunc(cfg.WakeKey)
	if err != nil {
		return nil, err
	}
	return &System{cfg: cfg, press: press}, nil
}

// Dispatch implements [Dispatcher].
func (s *System) Dispatch(ctx context.Context, ev detect.Event) error {
	switch ev.Gesture {
	case detect.Single:
		if err := s.press(); err != nil {
			return fmt.Errorf("actions: press wake key %q: %w", s.cfg.WakeKey, err)
		}
		slog.Info("actions: wake key pressed", "key", s.cfg.WakeKey)
		return nil

	case detect.Double:
		if s.cfg.OpenURL == "" {
			return nil
		}
		if err := browser.OpenURL(s.cfg.OpenURL); err != nil {
			return fmt.Errorf("actions: open %q: %w", s.cfg.OpenURL, err)
		}
		slog.Info("actions: url opened", "url", s.cfg.OpenURL)
		return nil

	case detect.Triple:
		if s.cfg.Toggle == nil {
			return nil
		}
		active := s.cfg.Toggle()
		slog.Info("actions: detection toggled", "active", active)
		return nil

	default:
		return fmt.Errorf("actions: unknown gesture %v", ev.Gesture)
	}
}

// SupportedKeys lists the wake key names accepted in the configuration.
func SupportedKeys() []string {
	return []string{"shift", "ctrl", "alt", "space", "esc", "enter"}
}

// pressFunc binds a key name to a closure that synthesises one press and
// release of that key. The name is validated before any keyboard binding is
// created so configuration mistakes surface even where no virtual keyboard
// is available.
func pressFunc(name string) (func() error, error) {
	setup, ok := keySetups()[name]
	if !ok {
		return nil, fmt.Errorf("actions: unsupported wake key %q (supported: %v)", name, SupportedKeys())
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("actions: keyboard binding: %w", err)
	}
	setup(&kb)

	return func() error { return kb.Launching() }, nil
}

// keySetups maps supported key names to their binding setup.
func keySetups() map[string]func(*keybd_event.KeyBonding) {
	return map[string]func(*keybd_event.KeyBonding){
		"shift": func(kb *keybd_event.KeyBonding) { kb.HasSHIFT(true) },
		"ctrl":  func(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) },
		"alt":   func(kb *keybd_event.KeyBonding) { kb.HasALT(true) },
		"space": func(kb *keybd_event.KeyBonding) { kb.SetKeys(keybd_event.VK_SPACE) },
		"esc":   func(kb *keybd_event.KeyBonding) { kb.SetKeys(keybd_event.VK_ESC) },
		"enter": func(kb *keybd_event.KeyBonding) { kb.SetKeys(keybd_event.VK_ENTER) },
	}
}
