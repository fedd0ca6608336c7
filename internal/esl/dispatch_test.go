package esl

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchRegisteredHandler(t *testing.T) {
	d := NewDispatcher(testLogger())

	var got []string
	d.Handle("CHANNEL_ANSWER", func(ev *Event) error {
		got = append(got, ev.UUID())
		return nil
	})

	d.Dispatch(&Event{Name: "CHANNEL_ANSWER", headers: map[string]string{"Unique-ID": "u-1"}})
	d.Dispatch(&Event{Name: "CHANNEL_ANSWER", headers: map[string]string{"Unique-ID": "u-2"}})

	if len(got) != 2 || got[0] != "u-1" || got[1] != "u-2" {
		t.Errorf("handled = %v, want [u-1 u-2] in order", got)
	}
}

func TestDispatchUnregisteredGoesGeneric(t *testing.T) {
	d := NewDispatcher(testLogger())

	var generic []string
	d.HandleGeneric(func(ev *Event) error {
		generic = append(generic, ev.Name)
		return nil
	})
	d.Handle("CHANNEL_HANGUP", func(ev *Event) error { return nil })

	// Unregistered names must never fail, with or without a generic handler.
	d.Dispatch(&Event{Name: "HEARTBEAT", headers: map[string]string{}})
	d.Dispatch(&Event{Name: "CHANNEL_HANGUP", headers: map[string]string{}})

	if len(generic) != 1 || generic[0] != "HEARTBEAT" {
		t.Errorf("generic handled = %v, want [HEARTBEAT]", generic)
	}
}

func TestDispatchHandlerErrorSwallowed(t *testing.T) {
	d := NewDispatcher(testLogger())

	calls := 0
	d.Handle("CHANNEL_CREATE", func(ev *Event) error {
		calls++
		return errors.New("storage unavailable")
	})

	// A failing handler must not prevent later dispatches.
	d.Dispatch(&Event{Name: "CHANNEL_CREATE", headers: map[string]string{"Unique-ID": "u-1"}})
	d.Dispatch(&Event{Name: "CHANNEL_CREATE", headers: map[string]string{"Unique-ID": "u-2"}})

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}
