package esl

import "log/slog"

// HandlerFunc processes a single engine event. A returned error is logged
// with call and event context; it never propagates into the dispatch loop.
type HandlerFunc func(ev *Event) error

// Dispatcher routes decoded events to the handler registered for their
// event name. Events with no registered handler are forwarded to the generic
// handler (if any) rather than failing. Dispatch runs synchronously on the
// connection's single read goroutine, so handlers for one connection never
// execute concurrently and arrival order is preserved.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	generic  HandlerFunc
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.With("component", "esl_dispatch"),
	}
}

// Handle registers a handler for the named event, replacing any previous one.
// Registration must complete before the client starts reading.
func (d *Dispatcher) Handle(name string, h HandlerFunc) {
	d.handlers[name] = h
}

// HandleGeneric registers the fallback handler for event names with no
// dedicated handler.
func (d *Dispatcher) HandleGeneric(h HandlerFunc) {
	d.generic = h
}

// Dispatch invokes the handler for ev. Handler errors are logged and
// swallowed so one bad event cannot take down the connection.
func (d *Dispatcher) Dispatch(ev *Event) {
	h, ok := d.handlers[ev.Name]
	if !ok {
		if d.generic == nil {
			d.logger.Debug("unhandled event", "event", ev.Name, "call_uuid", ev.UUID())
			return
		}
		h = d.generic
	}
	if err := h(ev); err != nil {
		d.logger.Error("event handler failed",
			"event", ev.Name,
			"call_uuid", ev.UUID(),
			"error", err,
		)
	}
}
