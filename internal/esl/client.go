package esl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voxerr"
)

// Config holds the engine socket settings.
type Config struct {
	Addr     string // host:port of the engine's event socket
	Password string

	DialTimeout       time.Duration
	CommandTimeout    time.Duration // bound on api command replies
	BackgroundTimeout time.Duration // bound on bgapi job completion

	ReconnectBase time.Duration // first retry delay
	ReconnectCap  time.Duration // maximum retry delay
	MaxReconnects int           // attempt ceiling before giving up

	Events []string // event names to subscribe to
}

func (c Config) withDefaults() Config {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.BackgroundTimeout == 0 {
		c.BackgroundTimeout = 30 * time.Second
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectCap == 0 {
		c.ReconnectCap = 60 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if len(c.Events) == 0 {
		c.Events = DefaultEvents
	}
	return c
}

// BackgroundResult is the outcome of a backgrounded command, delivered on the
// channel returned by SendBackground.
type BackgroundResult struct {
	Body string
	Err  error
}

type reply struct {
	fr  *Frame
	err error
}

type pendingJob struct {
	ch    chan BackgroundResult
	timer *time.Timer
}

// Client maintains the persistent session to the engine's event socket. It
// authenticates, subscribes to the configured events, feeds decoded frames
// through a single read goroutine (command replies to waiting callers,
// events to the Dispatcher) and reconnects with exponential backoff when the
// transport drops. After MaxReconnects consecutive failures it signals
// OnExhausted exactly once and stops retrying.
type Client struct {
	cfg    Config
	disp   *Dispatcher
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	replyQ  []chan reply
	pending map[string]*pendingJob

	connected  atomic.Bool
	reconnects atomic.Int64
	shutdown   atomic.Bool

	// Lifecycle signals. Set before Run; invoked from the connection
	// goroutine.
	OnConnect    func()
	OnDisconnect func(err error)
	OnExhausted  func()
}

// NewClient creates a client for the given engine socket. Run must be called
// to establish the session.
func NewClient(cfg Config, disp *Dispatcher, logger *slog.Logger) *Client {
	return &Client{
		cfg:     cfg.withDefaults(),
		disp:    disp,
		logger:  logger.With("component", "esl"),
		pending: make(map[string]*pendingJob),
	}
}

// Connected reports whether an authenticated session is currently active.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// ReconnectAttempts returns the total number of reconnect attempts made.
func (c *Client) ReconnectAttempts() int64 {
	return c.reconnects.Load()
}

// Run connects and serves the session until ctx is cancelled, Close is
// called, or the reconnect ceiling is reached. Only this goroutine ever
// attempts a connection, so at most one attempt is in flight at any time.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		wasConnected, err := c.runSession(ctx)
		if ctx.Err() != nil || c.shutdown.Load() {
			return
		}

		if wasConnected {
			// The session was up; start a fresh backoff sequence.
			attempt = 1
		} else {
			attempt++
		}
		c.reconnects.Add(1)

		if attempt > c.cfg.MaxReconnects {
			c.logger.Error("reconnect attempts exhausted", "attempts", c.cfg.MaxReconnects)
			if c.OnExhausted != nil {
				c.OnExhausted()
			}
			return
		}

		delay := backoffDelay(attempt, c.cfg.ReconnectBase, c.cfg.ReconnectCap)
		c.logger.Warn("engine connection lost, reconnecting",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxReconnects,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// backoffDelay returns the delay before the given 1-based attempt:
// min(base * 2^(attempt-1), cap).
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

// runSession dials, authenticates, subscribes and serves one session. The
// returned bool reports whether the handshake completed before the session
// ended.
func (c *Client) runSession(ctx context.Context) (bool, error) {
	conn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
	if err != nil {
		return false, fmt.Errorf("dialing engine: %w", err)
	}

	dec := &Decoder{OnError: func(err error) {
		c.logger.Warn("dropped malformed frame", "error", err)
	}}

	if err := c.handshake(conn, dec); err != nil {
		conn.Close()
		return false, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("engine connected", "addr", c.cfg.Addr)
	if c.OnConnect != nil {
		c.OnConnect()
	}

	// Close the socket when ctx is cancelled so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	err = c.readLoop(conn, dec)

	c.teardown(err)
	return true, err
}

// handshake performs the auth challenge/response and event subscription.
func (c *Client) handshake(conn net.Conn, dec *Decoder) error {
	fr, err := readFrame(conn, dec, c.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("awaiting auth challenge: %w", err)
	}
	if fr.ContentType() != "auth/request" {
		return fmt.Errorf("unexpected greeting %q", fr.ContentType())
	}

	if _, err := fmt.Fprintf(conn, "auth %s\n\n", c.cfg.Password); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}
	fr, err = readFrame(conn, dec, c.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("awaiting auth reply: %w", err)
	}
	if !strings.HasPrefix(fr.Header("Reply-Text"), "+OK") {
		return fmt.Errorf("auth rejected: %s", fr.Header("Reply-Text"))
	}

	if _, err := fmt.Fprintf(conn, "event plain %s\n\n", strings.Join(c.cfg.Events, " ")); err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	fr, err = readFrame(conn, dec, c.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("awaiting subscribe reply: %w", err)
	}
	if !strings.HasPrefix(fr.Header("Reply-Text"), "+OK") {
		return fmt.Errorf("event subscription rejected: %s", fr.Header("Reply-Text"))
	}

	return nil
}

// readFrame reads from conn until the decoder yields one frame. Used only
// during the handshake, before the read loop starts.
func readFrame(conn net.Conn, dec *Decoder, timeout time.Duration) (*Frame, error) {
	buf := make([]byte, 4096)
	deadline := time.Now().Add(timeout)
	for {
		if fr, ok := dec.Next(); ok {
			return fr, nil
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		dec.Write(buf[:n])
	}
}

var errDisconnectNotice = errors.New("engine sent disconnect notice")

// readLoop decodes and routes frames until the connection fails. All frame
// handling for a session happens on this one goroutine, which is what keeps
// dispatch strictly ordered.
func (c *Client) readLoop(conn net.Conn, dec *Decoder) error {
	buf := make([]byte, 8192)
	conn.SetReadDeadline(time.Time{})
	for {
		fr, ok := dec.Next()
		if !ok {
			n, err := conn.Read(buf)
			if err != nil {
				return err
			}
			dec.Write(buf[:n])
			continue
		}
		if err := c.handleFrame(fr); err != nil {
			return err
		}
	}
}

func (c *Client) handleFrame(fr *Frame) error {
	switch fr.ContentType() {
	case "command/reply", "api/response":
		c.deliverReply(fr)

	case "text/event-plain":
		ev, err := ParseEvent(fr)
		if err != nil {
			c.logger.Warn("dropped undecodable event", "error", err)
			return nil
		}
		if ev.Name == "BACKGROUND_JOB" {
			if c.resolveJob(ev.Get("Job-UUID"), ev.Body) {
				return nil
			}
			// No waiter (timed out or never ours); fall through as a
			// regular event.
		}
		c.disp.Dispatch(ev)

	case "text/disconnect-notice":
		return errDisconnectNotice

	default:
		c.logger.Debug("ignoring frame", "content_type", fr.ContentType())
	}
	return nil
}

// deliverReply hands a command/api reply to the oldest waiting caller.
// Replies arrive in the order commands were written, so a FIFO is the whole
// correlation mechanism for foreground commands.
func (c *Client) deliverReply(fr *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replyQ) == 0 {
		c.logger.Warn("reply with no waiting command", "content_type", fr.ContentType())
		return
	}
	ch := c.replyQ[0]
	c.replyQ = c.replyQ[1:]
	ch <- reply{fr: fr}
}

// Send issues a foreground api command and waits for its reply. It fails
// immediately with voxerr.ErrNotConnected when no session is active, and
// with voxerr.ErrTimeout if no reply arrives within the command bound. An
// explicit engine error reply ("-ERR ...") is returned as an error carrying
// the engine's stated reason.
func (c *Client) Send(ctx context.Context, cmd string) (*Frame, error) {
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, voxerr.ErrNotConnected
	}
	// Write while holding the lock so the reply queue order matches the
	// order commands hit the wire.
	if _, err := fmt.Fprintf(c.conn, "api %s\n\n", cmd); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("writing command: %w", err)
	}
	c.replyQ = append(c.replyQ, ch)
	c.mu.Unlock()

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if msg, bad := engineError(r.fr); bad {
			return nil, fmt.Errorf("engine rejected %q: %s", cmd, msg)
		}
		return r.fr, nil
	case <-timer.C:
		// The slot stays in the queue; the buffered channel absorbs the
		// late reply so ordering for subsequent commands is preserved.
		return nil, fmt.Errorf("api %s: %w", cmd, voxerr.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendBackground issues a bgapi command. It returns the correlation id
// (Job-UUID) synchronously together with a channel that receives the result
// when the engine's completion event arrives, or a Timeout error after the
// background bound. The pending slot is freed in either case.
func (c *Client) SendBackground(cmd string) (string, <-chan BackgroundResult, error) {
	jobID := uuid.NewString()
	ackCh := make(chan reply, 1)
	resCh := make(chan BackgroundResult, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return "", nil, voxerr.ErrNotConnected
	}
	if _, err := fmt.Fprintf(c.conn, "bgapi %s\nJob-UUID: %s\n\n", cmd, jobID); err != nil {
		c.mu.Unlock()
		return "", nil, fmt.Errorf("writing background command: %w", err)
	}
	// The bgapi acknowledgement consumes a reply slot like any command.
	c.replyQ = append(c.replyQ, ackCh)

	p := &pendingJob{ch: resCh}
	p.timer = time.AfterFunc(c.cfg.BackgroundTimeout, func() {
		if c.evictJob(jobID) {
			resCh <- BackgroundResult{Err: voxerr.ErrTimeout}
		}
	})
	c.pending[jobID] = p
	c.mu.Unlock()

	return jobID, resCh, nil
}

// resolveJob completes the pending command for jobID. Returns false when no
// caller is waiting (already timed out, or the job was not issued here).
func (c *Client) resolveJob(jobID, body string) bool {
	if jobID == "" {
		return false
	}
	c.mu.Lock()
	p, ok := c.pending[jobID]
	if ok {
		delete(c.pending, jobID)
		p.timer.Stop()
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "-ERR") {
		p.ch <- BackgroundResult{Err: fmt.Errorf("engine rejected background job: %s", body)}
	} else {
		p.ch <- BackgroundResult{Body: body}
	}
	return true
}

// evictJob removes a pending entry on timeout. Returns true if the entry was
// still present.
func (c *Client) evictJob(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[jobID]; !ok {
		return false
	}
	delete(c.pending, jobID)
	return true
}

// teardown clears the session and fails every waiter so no caller blocks on
// a dead connection.
func (c *Client) teardown(cause error) {
	c.connected.Store(false)

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	for _, ch := range c.replyQ {
		ch <- reply{err: voxerr.ErrNotConnected}
	}
	c.replyQ = nil
	for id, p := range c.pending {
		p.timer.Stop()
		p.ch <- BackgroundResult{Err: voxerr.ErrNotConnected}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !c.shutdown.Load() {
		c.logger.Warn("engine disconnected", "error", cause)
		if c.OnDisconnect != nil {
			c.OnDisconnect(cause)
		}
	}
}

// Close requests shutdown: the session is torn down and no reconnect is
// scheduled.
func (c *Client) Close() {
	c.shutdown.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// engineError inspects a reply frame for an explicit engine error. Both
// command replies (Reply-Text) and api responses (body) can carry one.
func engineError(fr *Frame) (string, bool) {
	if rt := fr.Header("Reply-Text"); strings.HasPrefix(rt, "-ERR") {
		return strings.TrimSpace(strings.TrimPrefix(rt, "-ERR")), true
	}
	if body := strings.TrimSpace(fr.Body); strings.HasPrefix(body, "-ERR") {
		return strings.TrimSpace(strings.TrimPrefix(body, "-ERR")), true
	}
	return "", false
}
