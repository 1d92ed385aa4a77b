// Package realtime is the push side of the client: one Socket.IO connection
// over a websocket, relaying "attendence" notifications into the event store.
// It holds no state besides the connection itself and never makes HTTP calls.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tokenstore"
	"github.com/gorilla/websocket"
)

// EventAttendance is the inbound notification name, spelled as the server sends it.
const (
	EventAttendance = "attendence"
	EventMessage    = "message"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var (
	ErrNotConnected = errors.New("realtime channel not connected")
	ErrHandshake    = errors.New("realtime handshake failed")
)

// AttendanceSink receives reconciled attendance changes.
type AttendanceSink interface {
	ApplyAttendance(u domain.AttendanceUpdate)
}

type Config struct {
	URL        string
	AuthHeader string
}

// conn is one physical connection; a Channel has at most one at a time.
type conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	pingWait time.Duration
	done     chan struct{}
}

func (c *conn) write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

type Channel struct {
	cfg    Config
	tokens tokenstore.Store
	sink   AttendanceSink
	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	cur       *conn
	dialing   *dialAttempt
	listeners []func(State)
}

// dialAttempt is the connect in progress; Close cancels it.
type dialAttempt struct {
	cancel context.CancelFunc
}

func NewChannel(cfg Config, tokens tokenstore.Store, sink AttendanceSink) *Channel {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}
	return &Channel{
		cfg:    cfg,
		tokens: tokens,
		sink:   sink,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
		},
		state: StateDisconnected,
	}
}

func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// OnStateChange registers fn for every transition. fn runs on the goroutine
// that caused the transition and must not block.
func (ch *Channel) OnStateChange(fn func(State)) {
	ch.mu.Lock()
	ch.listeners = append(ch.listeners, fn)
	ch.mu.Unlock()
}

// setState must be called without ch.mu held.
func (ch *Channel) setState(s State, cur *conn) {
	ch.mu.Lock()
	announce := ch.switchLocked(s, cur)
	ch.mu.Unlock()
	announce()
}

// switchLocked records a transition and returns the announcement to run
// once ch.mu is released.
func (ch *Channel) switchLocked(s State, cur *conn) func() {
	if ch.state == s {
		return func() {}
	}
	ch.state = s
	ch.cur = cur
	listeners := append([]func(State){}, ch.listeners...)

	return func() {
		metrics.RealtimeConnected(s == StateConnected)
		logger.Log.Info().Str("state", string(s)).Msg("realtime_state_changed")
		for _, fn := range listeners {
			fn(s)
		}
	}
}

// Start opens the connection and blocks until the Socket.IO namespace is
// joined or the handshake fails. Starting a channel that is connecting or
// connected is a no-op. A dropped connection is not re-established; call
// Start again.
func (ch *Channel) Start(ctx context.Context) error {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	attempt := &dialAttempt{cancel: cancel}

	ch.mu.Lock()
	if ch.state != StateDisconnected {
		ch.mu.Unlock()
		return nil
	}
	ch.dialing = attempt
	announce := ch.switchLocked(StateConnecting, nil)
	ch.mu.Unlock()
	announce()

	c, err := ch.dial(dialCtx)

	ch.mu.Lock()
	current := ch.dialing == attempt
	if current {
		ch.dialing = nil
	}
	switch {
	case err != nil:
		if current {
			announce = ch.switchLocked(StateDisconnected, nil)
		} else {
			announce = func() {}
		}
	case !current || ch.state != StateConnecting:
		// closed while the handshake was running
		ch.mu.Unlock()
		_ = c.ws.Close()
		return fmt.Errorf("%w: closed while connecting", ErrHandshake)
	default:
		announce = ch.switchLocked(StateConnected, c)
	}
	ch.mu.Unlock()
	announce()

	if err != nil {
		logger.Log.Warn().Err(err).Str("url", ch.cfg.URL).Msg("realtime_connect_failed")
		return err
	}

	go ch.readLoop(c)
	return nil
}

func (ch *Channel) dial(ctx context.Context) (*conn, error) {
	target, err := endpoint(ch.cfg.URL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if ch.tokens != nil {
		token, err := ch.tokens.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			header.Set(ch.cfg.AuthHeader, token)
		}
	}

	ws, resp, err := ch.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	// unblock handshake reads when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	open, err := handshake(ws)
	if err != nil {
		_ = ws.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshake, ctx.Err())
		}
		return nil, err
	}

	c := &conn{ws: ws, pingWait: open.pingWait(), done: make(chan struct{})}
	c.extendDeadline()
	return c, nil
}

// handshake reads the Engine.IO open packet, joins the default namespace
// and waits for the server's connect ack.
func handshake(ws *websocket.Conn) (openPacket, error) {
	var open openPacket

	_, msg, err := ws.ReadMessage()
	if err != nil {
		return open, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		return open, fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, msg)
	}
	if err := json.Unmarshal(msg[1:], &open); err != nil {
		return open, fmt.Errorf("%w: bad open packet: %v", ErrHandshake, err)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
		return open, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return open, fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		switch {
		case len(msg) == 1 && msg[0] == eioPing:
			if err := ws.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return open, fmt.Errorf("%w: %v", ErrHandshake, err)
			}
		case len(msg) >= 2 && msg[0] == eioMessage && msg[1] == sioConnect:
			return open, nil
		case len(msg) >= 2 && msg[0] == eioMessage && msg[1] == sioConnectError:
			return open, fmt.Errorf("%w: server refused connection: %s", ErrHandshake, msg[2:])
		}
	}
}

func (c *conn) extendDeadline() {
	if c.pingWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pingWait))
	}
}

func (ch *Channel) readLoop(c *conn) {
	defer func() {
		_ = c.ws.Close()
		ch.mu.Lock()
		current := ch.cur == c
		ch.mu.Unlock()
		if current {
			ch.setState(StateDisconnected, nil)
		}
		close(c.done)
	}()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Log.Debug().Err(err).Msg("realtime_read_ended")
			}
			return
		}
		c.extendDeadline()
		if !ch.handle(c, msg) {
			return
		}
	}
}

// handle processes one frame and reports whether the connection stays open.
func (ch *Channel) handle(c *conn, msg []byte) bool {
	if len(msg) == 0 {
		return true
	}
	switch msg[0] {
	case eioPing:
		if err := c.write(context.Background(), []byte{eioPong}); err != nil {
			return false
		}
	case eioClose:
		return false
	case eioMessage:
		if len(msg) < 2 {
			return true
		}
		switch msg[1] {
		case sioDisconnect:
			logger.Log.Info().Msg("realtime_server_disconnect")
			return false
		case sioEvent:
			ch.dispatch(msg[2:])
		}
	}
	return true
}

func (ch *Channel) dispatch(body []byte) {
	name, args, err := decodeEvent(body)
	if err != nil {
		metrics.RealtimeNotification("unknown", "malformed")
		logger.Log.Warn().Err(err).Msg("realtime_notification_dropped")
		return
	}
	if name != EventAttendance {
		metrics.RealtimeNotification(name, "ignored")
		logger.Log.Debug().Str("event", name).Msg("realtime_notification_ignored")
		return
	}

	u, err := decodeAttendance(args)
	if err != nil {
		metrics.RealtimeNotification(name, "malformed")
		logger.Log.Warn().Err(err).Str("event", name).Msg("realtime_notification_dropped")
		return
	}
	if ch.sink != nil {
		ch.sink.ApplyAttendance(u)
	}
	metrics.RealtimeNotification(name, "applied")
}

func decodeAttendance(args []json.RawMessage) (domain.AttendanceUpdate, error) {
	var u domain.AttendanceUpdate
	if len(args) == 0 {
		return u, errMalformedPacket
	}
	if err := json.Unmarshal(args[0], &u); err != nil {
		return u, domain.ErrSchema("malformed attendance notification", err)
	}
	if err := domain.ValidateSchema(u, "attendance notification"); err != nil {
		return u, err
	}
	return u, nil
}

// Emit sends an event on the default namespace. The client only emits the
// diagnostic "message" event; nothing in the stores depends on it.
func (ch *Channel) Emit(ctx context.Context, name string, payload any) error {
	ch.mu.Lock()
	c := ch.cur
	connected := ch.state == StateConnected
	ch.mu.Unlock()
	if !connected || c == nil {
		return ErrNotConnected
	}

	frame, err := encodeEvent(name, payload)
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// Close leaves the namespace, closes the socket and waits for the read loop
// to finish. A connect in progress is cancelled. Closing a disconnected
// channel is a no-op.
func (ch *Channel) Close(ctx context.Context) error {
	ch.mu.Lock()
	c := ch.cur
	if c == nil {
		announce := func() {}
		if ch.dialing != nil {
			ch.dialing.cancel()
			ch.dialing = nil
			announce = ch.switchLocked(StateDisconnected, nil)
		}
		ch.mu.Unlock()
		announce()
		return nil
	}
	ch.mu.Unlock()

	_ = c.write(ctx, []byte{eioMessage, sioDisconnect})
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	ch.setState(StateDisconnected, nil)
	_ = c.ws.Close()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
