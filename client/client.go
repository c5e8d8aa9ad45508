package client

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/consultly/collab/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 512 * 1024
	defaultAckTimeout = 10 * time.Second
	defaultTypingIdle = 3 * time.Second
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ReconnectPolicy configures automatic reconnection after an unexpected
// connection loss. The zero value disables it: the caller observes the loss
// via OnDisconnect and reconnects manually.
type ReconnectPolicy struct {
	InitialBackoff time.Duration // default 500ms
	MaxBackoff     time.Duration // default 30s
	Jitter         float64       // fraction of backoff added randomly, 0..1
	MaxAttempts    int           // 0 disables automatic reconnection
}

func (p ReconnectPolicy) enabled() bool { return p.MaxAttempts > 0 }

// Options configures a Client. Each Client is an isolated session; callers
// construct and own instances, there is no shared process-wide connection.
type Options struct {
	// URL is the channel endpoint, e.g. "ws://host:8080/ws".
	URL string
	// RESTBase is the REST endpoint base. Derived from URL when empty.
	RESTBase string
	// Token is the opaque session token presented at connect.
	Token string
	// UserID is the local participant id; the presence tracker ignores
	// events about it.
	UserID string
	// UserName is the local participant display name.
	UserName string

	// AckTimeout caps join/save/lock operations. Default 10s.
	AckTimeout time.Duration
	// TypingIdle is the inactivity window before an automatic typing-stop.
	// Default 3s.
	TypingIdle time.Duration

	Reconnect ReconnectPolicy

	// OnDisconnect observes an unexpected connection loss. Not called on a
	// deliberate Disconnect.
	OnDisconnect func(err error)
	// OnReconnect fires after a policy-driven reconnect, with the room id
	// that was re-joined ("" if none). Presence should be re-seeded from
	// the REST snapshot here.
	OnReconnect func(roomID string)

	Logger *slog.Logger
	Dialer *websocket.Dialer
}

// Client owns one duplex channel to the hub and the session state behind it.
type Client struct {
	opts       Options
	dispatcher *Dispatcher
	logger     *slog.Logger
	dialer     *websocket.Dialer
	httpc      *http.Client
	restBase   string

	mu          sync.RWMutex
	state       ConnState
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	currentRoom string
	closing     bool

	typingMu    sync.Mutex
	typingTimer *time.Timer
}

// New creates a client session. It does not connect.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("channel URL required")
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = defaultTypingIdle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	restBase := opts.RESTBase
	if restBase == "" {
		derived, err := deriveRESTBase(opts.URL)
		if err != nil {
			return nil, err
		}
		restBase = derived
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		opts:       opts,
		dispatcher: NewDispatcher(),
		logger:     opts.Logger.With(slog.String("component", "collab-client")),
		dialer:     dialer,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		restBase:   restBase,
	}, nil
}

// deriveRESTBase maps a ws endpoint to its http origin: the scheme flips and
// a trailing /ws path is dropped.
func deriveRESTBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse channel URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws")
	u.RawQuery = ""
	return u.String(), nil
}

// Dispatcher returns the event dispatcher for this session.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// On registers a handler for an event type.
func (c *Client) On(event protocol.MessageType, fn Handler) Subscription {
	return c.dispatcher.On(event, fn)
}

// Off removes a subscription.
func (c *Client) Off(sub Subscription) {
	c.dispatcher.Off(sub)
}

// State returns the connection state.
func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the channel is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect establishes the channel. It is idempotent: when already connected
// it returns immediately without re-handshaking. On handshake failure the
// transport error is returned and the state stays disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialURL := c.opts.URL
	if c.opts.Token != "" {
		sep := "?"
		if strings.Contains(dialURL, "?") {
			sep = "&"
		}
		dialURL += sep + "token=" + url.QueryEscape(c.opts.Token)
	}

	conn, _, err := c.dialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, 256)
	c.done = make(chan struct{})
	c.state = StateConnected
	c.closing = false
	send, done := c.send, c.done
	c.mu.Unlock()

	go c.writePump(conn, send, done)
	go c.readPump(conn)

	c.logger.Info("connected", slog.String("url", c.opts.URL))
	return nil
}

// Disconnect tears down the channel, clears the joined-room pointer and
// drops every dispatcher registration. Components must re-subscribe after a
// later Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	c.teardown()
	c.dispatcher.Reset()
	c.logger.Info("disconnected")
}

func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	c.conn = nil
	c.state = StateDisconnected
	c.currentRoom = ""
}

func (c *Client) readPump(conn *websocket.Conn) {
	var readErr error

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		payload, err := protocol.Decode(message)
		if err != nil {
			c.logger.Warn("failed to decode event", slog.Any("error", err))
			continue
		}
		c.dispatcher.emit(payload)
	}

	c.mu.RLock()
	deliberate := c.closing
	prevRoom := c.currentRoom
	c.mu.RUnlock()

	conn.Close()
	c.teardown()

	if deliberate {
		return
	}

	c.logger.Warn("connection lost", slog.Any("error", readErr))
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(readErr)
	}
	if c.opts.Reconnect.enabled() {
		go c.reconnectLoop(prevRoom)
	}
}

func (c *Client) writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// reconnectLoop re-dials with exponential backoff and jitter, then re-joins
// the previously current room.
func (c *Client) reconnectLoop(prevRoom string) {
	policy := c.opts.Reconnect
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := policy.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		sleep := backoff
		if policy.Jitter > 0 {
			sleep += time.Duration(rand.Float64() * policy.Jitter * float64(backoff))
		}
		time.Sleep(sleep)

		c.mu.RLock()
		closing := c.closing
		c.mu.RUnlock()
		if closing {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), defaultAckTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			rejoined := ""
			if prevRoom != "" {
				ctx, cancel := context.WithTimeout(context.Background(), c.opts.AckTimeout)
				if err := c.JoinRoom(ctx, prevRoom); err != nil {
					c.logger.Warn("rejoin failed", slog.String("room", prevRoom), slog.Any("error", err))
				} else {
					rejoined = prevRoom
				}
				cancel()
			}
			c.logger.Info("reconnected", slog.Int("attempt", attempt))
			if c.opts.OnReconnect != nil {
				c.opts.OnReconnect(rejoined)
			}
			return
		}

		c.logger.Warn("reconnect attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	c.logger.Error("reconnect attempts exhausted")
}

// sendPayload encodes and queues a fire-and-forget event. It never blocks:
// when the outbound buffer is full the event is dropped, mirroring the
// no-delivery-guarantee contract of broadcasts.
func (c *Client) sendPayload(p protocol.Payload) error {
	c.mu.RLock()
	state, send, done := c.state, c.send, c.done
	c.mu.RUnlock()

	if state != StateConnected {
		return ErrNotConnected
	}

	data, err := protocol.Encode(p)
	if err != nil {
		return err
	}

	select {
	case send <- data:
	case <-done:
		return ErrNotConnected
	default:
		c.logger.Warn("outbound buffer full, dropping event", slog.String("type", string(p.EventType())))
	}
	return nil
}

// await implements the ack/timeout race: one-shot listeners for the ack and
// error events run against the ack ceiling, and all of them are retired
// before returning. No cancellation is sent to the hub on timeout; a late
// response goes unobserved.
func (c *Client) await(ctx context.Context, req protocol.Payload, ackType protocol.MessageType, match func(protocol.Payload) bool) (protocol.Payload, error) {
	ackCh := make(chan protocol.Payload, 1)
	errCh := make(chan *protocol.ErrorPayload, 1)

	ackSub := c.dispatcher.On(ackType, func(p protocol.Payload) {
		if match != nil && !match(p) {
			return
		}
		select {
		case ackCh <- p:
		default:
		}
	})
	errSub := c.dispatcher.On(protocol.TypeError, func(p protocol.Payload) {
		if e, ok := p.(*protocol.ErrorPayload); ok {
			select {
			case errCh <- e:
			default:
			}
		}
	})
	defer c.dispatcher.Off(ackSub)
	defer c.dispatcher.Off(errSub)

	if err := c.sendPayload(req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()

	select {
	case p := <-ackCh:
		return p, nil
	case e := <-errCh:
		return nil, &ServerError{Code: e.Code, Message: e.Message}
	case <-timer.C:
		return nil, ErrAckTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// roomFor returns the current room id or ErrNoRoom, checked synchronously
// before any network interaction.
func (c *Client) roomFor() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return "", ErrNotConnected
	}
	if c.currentRoom == "" {
		return "", ErrNoRoom
	}
	return c.currentRoom, nil
}
