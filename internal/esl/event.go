package esl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Event names the client subscribes to for call lifecycle tracking.
// BACKGROUND_JOB carries the completion of bgapi commands.
var DefaultEvents = []string{
	"CHANNEL_CREATE",
	"CHANNEL_ANSWER",
	"CHANNEL_BRIDGE",
	"CHANNEL_UNBRIDGE",
	"CHANNEL_HANGUP",
	"CHANNEL_HANGUP_COMPLETE",
	"BACKGROUND_JOB",
}

// Event is a decoded engine event. Event frames arrive with Content-Type
// text/event-plain: the frame body is itself a header block of URL-encoded
// values, optionally followed by an event body.
type Event struct {
	Name    string
	headers map[string]string
	Body    string
}

// NewEvent builds an event from explicit headers. The Event-Name header is
// filled in from name.
func NewEvent(name string, headers map[string]string) *Event {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Event-Name"] = name
	return &Event{Name: name, headers: h}
}

// Get returns the named event header, decoded, or "" if absent.
func (e *Event) Get(key string) string {
	return e.headers[key]
}

// GetInt returns the named event header parsed as an integer, or def if the
// header is absent or not numeric.
func (e *Event) GetInt(key string, def int) int {
	v, ok := e.headers[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// UUID returns the event's channel UUID.
func (e *Event) UUID() string {
	return e.headers["Unique-ID"]
}

// ParseEvent decodes a text/event-plain frame body into an Event.
func ParseEvent(fr *Frame) (*Event, error) {
	headers := make(map[string]string)
	rest := fr.Body

	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		if line == "" {
			// Blank line ends the event's header block; anything after
			// is the event body (e.g. BACKGROUND_JOB command output).
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed event header line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		headers[key] = value
	}

	name := headers["Event-Name"]
	if name == "" {
		return nil, fmt.Errorf("event frame missing Event-Name")
	}

	return &Event{Name: name, headers: headers, Body: rest}, nil
}
