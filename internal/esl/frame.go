// Package esl implements the client side of the call engine's event socket:
// a text protocol of header/body frames carrying command replies and
// asynchronous call events. One Client owns one TCP session, a Decoder turns
// the byte stream into frames, and a Dispatcher routes decoded events to
// registered handlers in strict arrival order.
package esl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Frame is a single protocol frame: a block of "Key: Value" header lines
// terminated by a blank line, optionally followed by Content-Length bytes
// of body.
type Frame struct {
	Headers map[string]string
	Body    string
}

// Header returns the value of the named header, or "" if absent.
func (f *Frame) Header(key string) string {
	return f.Headers[key]
}

// ContentType returns the frame's Content-Type header.
func (f *Frame) ContentType() string {
	return f.Headers["Content-Type"]
}

// Decoder accumulates raw socket bytes and yields complete frames. Partial
// frames stay buffered until the rest arrives; a single fill containing
// several frames yields them all. A malformed header block is discarded and
// reported to the error sink without disturbing subsequent frames.
type Decoder struct {
	buf bytes.Buffer

	// OnError receives frame-local decode errors. May be nil.
	OnError func(error)
}

// Write appends raw bytes from the socket to the decode buffer.
func (d *Decoder) Write(p []byte) {
	d.buf.Write(p)
}

// Next decodes and returns the next complete frame, or (nil, false) if the
// buffer does not yet hold one. Malformed frames are skipped internally, so
// callers should loop until Next returns false.
func (d *Decoder) Next() (*Frame, bool) {
	for {
		data := d.buf.Bytes()

		// A frame's header block ends at the first blank line.
		end := bytes.Index(data, []byte("\n\n"))
		if end < 0 {
			return nil, false
		}
		headerBlock := data[:end]
		consumed := end + 2

		headers, err := parseHeaders(headerBlock)
		if err != nil {
			// Drop just this frame and keep decoding the stream.
			d.buf.Next(consumed)
			d.report(err)
			continue
		}

		bodyLen := 0
		if cl := headers["Content-Length"]; cl != "" {
			n, err := strconv.Atoi(cl)
			if err != nil || n < 0 {
				d.buf.Next(consumed)
				d.report(fmt.Errorf("invalid Content-Length %q", cl))
				continue
			}
			bodyLen = n
		}

		if len(data) < consumed+bodyLen {
			// Body not fully buffered yet.
			return nil, false
		}

		body := string(data[consumed : consumed+bodyLen])
		d.buf.Next(consumed + bodyLen)

		return &Frame{Headers: headers, Body: body}, true
	}
}

func (d *Decoder) report(err error) {
	if d.OnError != nil {
		d.OnError(err)
	}
}

// parseHeaders parses a block of "Key: Value" lines.
func parseHeaders(block []byte) (map[string]string, error) {
	headers := make(map[string]string)
	for _, line := range strings.Split(string(block), "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}
