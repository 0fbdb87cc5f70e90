package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wakebot/wakebot/pkg/detect"
)

func event(g detect.Gesture) detect.Event {
	return detect.Event{Gesture: g, At: time.Now()}
}

func TestNewSystem_RejectsUnknownWakeKey(t *testing.T) {
	t.Parallel()

	_, err := NewSystem(Config{WakeKey: "hyper"})
	if err == nil {
		t.Fatal("expected error for unknown wake key, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported wake key") {
		t.Errorf("error should mention the unsupported key, got: %v", err)
	}
}

func TestSupportedKeysAllHaveSetups(t *testing.T) {
	t.Parallel()

	setups := keySetups()
	for _, name := range SupportedKeys() {
		if _, ok := setups[name]; !ok {
			t.Errorf("supported key %q has no binding setup", name)
		}
	}
	if len(setups) != len(SupportedKeys()) {
		t.Errorf("setups = %d entries, supported list = %d", len(setups), len(SupportedKeys()))
	}
}

func TestDispatch_SinglePressesWakeKey(t *testing.T) {
	t.Parallel()

	pressed := 0
	s := &System{
		cfg:   Config{WakeKey: "shift"},
		press: func() error { pressed++; return nil },
	}

	if err := s.Dispatch(context.Background(), event(detect.Single)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if pressed != 1 {
		t.Errorf("press calls = %d, want 1", pressed)
	}
}

func TestDispatch_SinglePressFailureIsWrapped(t *testing.T) {
	t.Parallel()

	pressErr := errors.New("uinput denied")
	s := &System{
		cfg:   Config{WakeKey: "shift"},
		press: func() error { return pressErr },
	}

	err := s.Dispatch(context.Background(), event(detect.Single))
	if !errors.Is(err, pressErr) {
		t.Fatalf("Dispatch error = %v, want wrapped press error", err)
	}
}

func TestDispatch_DoubleWithoutURLIsNoop(t *testing.T) {
	t.Parallel()

	s := &System{cfg: Config{}, press: func() error { return nil }}
	if err := s.Dispatch(context.Background(), event(detect.Double)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestDispatch_TripleTogglesDetection(t *testing.T) {
	t.Parallel()

	toggled := 0
	s := &System{
		cfg: Config{Toggle: func() bool { toggled++; return toggled%2 == 0 }},
	}

	if err := s.Dispatch(context.Background(), event(detect.Triple)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if toggled != 1 {
		t.Errorf("toggle calls = %d, want 1", toggled)
	}
}

func TestDispatch_TripleWithoutToggleIsNoop(t *testing.T) {
	t.Parallel()

	s := &System{cfg: Config{}}
	if err := s.Dispatch(context.Background(), event(detect.Triple)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestDispatch_UnknownGesture(t *testing.T) {
	t.Parallel()

	s := &System{cfg: Config{}}
	err := s.Dispatch(context.Background(), event(detect.Gesture(0)))
	if err == nil || !strings.Contains(err.Error(), "unknown gesture") {
		t.Fatalf("Dispatch error = %v, want unknown gesture error", err)
	}
}
