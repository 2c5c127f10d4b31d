// Package client implements the connection loop and message router: the
// single consumer that drains the inbound stream in arrival order and
// routes every message to the correlator, the dispatcher, or a built-in
// protocol reaction.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/luciancaetano/ddpnet"
	"github.com/luciancaetano/ddpnet/internal/correlator"
	"github.com/luciancaetano/ddpnet/internal/dispatch"
	"github.com/luciancaetano/ddpnet/internal/protocol"
	wstransport "github.com/luciancaetano/ddpnet/internal/websocket"
)

const defaultQueueSize = 256

// Protocol states. Transitions are driven purely by classified inbound
// message kinds, never by elapsed time.
const (
	stateFresh int32 = iota
	stateAwaitingConnectedAck
	stateConnected
	stateAuthenticating
	stateAuthenticated
)

// transport is the connection surface the router needs. Satisfied by
// *websocket.Conn; tests substitute a fake.
type transport interface {
	Send(ctx context.Context, data []byte) error
	Receive() <-chan []byte
	Close(ctx context.Context) error
	IsAlive() bool
}

// Config configures one client connection.
type Config struct {
	// Server is the websocket endpoint, e.g. wss://host/websocket.
	Server string `yaml:"server"`
	// Username and Password authenticate the login call issued after the
	// connection handshake.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// UseLDAP switches the login call to the LDAP variant.
	UseLDAP bool `yaml:"use_ldap"`
	// QueueSize bounds the inbound FIFO. Zero means 256.
	QueueSize int `yaml:"queue_size"`
	// HandshakeTimeout bounds the websocket dial. Zero means the
	// transport default.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// SendBuffer and ReceiveBuffer size the transport frame queues.
	SendBuffer    int `yaml:"send_buffer"`
	ReceiveBuffer int `yaml:"receive_buffer"`
	// RateLimit throttles outbound frames. Nil means disabled.
	RateLimit *wstransport.RateLimitConfig `yaml:"rate_limit"`
	// Header is sent with the dial request. May be nil.
	Header http.Header `yaml:"-"`
	// Logger receives client events. Nil means slog.Default.
	Logger *slog.Logger `yaml:"-"`
}

// Client is the concrete ddpnet.Client. It owns the correlation table
// and the listener registry for the lifetime of one connection.
type Client struct {
	id     string
	cfg    Config
	logger *slog.Logger

	table  *correlator.Table
	events *dispatch.Dispatcher

	queue  chan *protocol.Message
	nextID atomic.Uint64
	stop   atomic.Bool
	state  atomic.Int32

	mu           sync.RWMutex
	conn         transport
	session      string
	token        string
	tokenExpires time.Time
	userID       string

	runCancel context.CancelFunc
	group     *errgroup.Group

	// tasks tracks every goroutine spawned for a routing side effect
	// (pong reply, login call, retry resend) so Close can await them
	// instead of orphaning work after disconnect.
	tasks sync.WaitGroup

	authCh    chan struct{}
	authOnce  sync.Once
	closeOnce sync.Once
}

var _ ddpnet.Client = (*Client)(nil)

// New creates a client for cfg. The connection is not dialed until
// Connect.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Server == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}

	id := uuid.New().String()
	logger = logger.With("client_id", id)

	return &Client{
		id:     id,
		cfg:    *cfg,
		logger: logger,
		table:  correlator.New(logger),
		events: dispatch.New(),
		queue:  make(chan *protocol.Message, queueSize),
		authCh: make(chan struct{}),
	}, nil
}

// Connect dials the server and starts the network and handler loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ddpnet.ErrAlreadyConnected
	}

	conn, err := wstransport.Dial(ctx, wstransport.Config{
		URL:              c.cfg.Server,
		Header:           c.cfg.Header,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		SendBuffer:       c.cfg.SendBuffer,
		ReceiveBuffer:    c.cfg.ReceiveBuffer,
		RateLimit:        c.cfg.RateLimit,
		Logger:           c.logger,
	})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.conn = conn
	c.mu.Unlock()

	c.start(conn)
	c.logger.Info("connected", "server", c.cfg.Server)
	return nil
}

// start launches the loops against conn. Split from Connect so tests can
// drive the router through a fake transport.
func (c *Client) start(conn transport) {
	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel

	group, gctx := errgroup.WithContext(runCtx)
	c.group = group
	group.Go(func() error { return c.networkLoop(gctx, conn) })
	group.Go(func() error { return c.handlerLoop(gctx) })
}

// Close stops the loops, closes the transport and cancels every pending
// call and subscription. Idempotent.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.stop.Store(true)
		// Wake a handler loop blocked on an empty queue immediately
		// instead of stalling until the next real message arrives.
		select {
		case c.queue <- nil:
		default:
		}
		if c.runCancel != nil {
			c.runCancel()
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			err = conn.Close(ctx)
		}

		// Only after the loops exit is the task set final: route spawns
		// tasks, so waiting on them while it still runs races the Add.
		if c.group != nil {
			c.group.Wait()
		}

		c.table.CancelAll(ddpnet.ErrConnectionClosed)
		c.tasks.Wait()
		c.logger.Info("closed")
	})
	return err
}

// Wait blocks until the loops exit.
func (c *Client) Wait() error {
	if c.group == nil {
		return ddpnet.ErrNotConnected
	}
	return c.group.Wait()
}

// IsAlive reports whether the transport is still open.
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.IsAlive()
}

// WaitAuthenticated blocks until the login exchange completes.
func (c *Client) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-c.authCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the server-assigned session id.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// UserID returns the authenticated user id.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Token returns the resume token issued at login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// TokenExpires returns the expiry time of the resume token.
func (c *Client) TokenExpires() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenExpires
}

// AddListener registers a listener for event.
func (c *Client) AddListener(event string, l ddpnet.Listener) ddpnet.ListenerID {
	return c.events.Add(event, l)
}

// RemoveListener removes a listener registration.
func (c *Client) RemoveListener(event string, id ddpnet.ListenerID) bool {
	return c.events.Remove(event, id)
}

// Call issues a method call and awaits its result.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	conn := c.transport()
	if conn == nil || !conn.IsAlive() {
		return nil, ddpnet.ErrNotConnected
	}

	id := c.newID()
	frame, err := protocol.Method(id, method, params)
	if err != nil {
		return nil, err
	}

	pending, err := c.table.Register(id, correlator.KindCall, frame)
	if err != nil {
		return nil, err
	}
	if err := conn.Send(ctx, frame); err != nil {
		c.table.Discard(id)
		return nil, fmt.Errorf("send method %s: %w", method, err)
	}
	return pending.Await(ctx)
}

// Subscribe opens a subscription and awaits its ready signal.
func (c *Client) Subscribe(ctx context.Context, name string, params ...any) error {
	conn := c.transport()
	if conn == nil || !conn.IsAlive() {
		return ddpnet.ErrNotConnected
	}

	id := c.newID()
	frame, err := protocol.Sub(id, name, params)
	if err != nil {
		return err
	}

	pending, err := c.table.Register(id, correlator.KindSubscription, frame)
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, frame); err != nil {
		c.table.Discard(id)
		return fmt.Errorf("send sub %s: %w", name, err)
	}
	_, err = pending.Await(ctx)
	return err
}

// networkLoop feeds decoded inbound frames into the FIFO. When the
// transport's receive channel closes the connection is gone: every
// pending entry is cancelled so no caller awaits forever, and a sentinel
// wakes the handler loop.
func (c *Client) networkLoop(ctx context.Context, conn transport) error {
	defer func() {
		c.table.CancelAll(ddpnet.ErrConnectionClosed)
		select {
		case c.queue <- nil:
		default:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-conn.Receive():
			if !ok {
				return nil
			}
			msg, err := protocol.Decode(raw)
			if err != nil {
				c.logger.Warn("dropping undecodable frame", "error", err)
				continue
			}
			select {
			case c.queue <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// handlerLoop is the single consumer: it drains the FIFO strictly in
// arrival order and routes each message. A nil sentinel only wakes the
// loop so it can re-check the stop flag.
func (c *Client) handlerLoop(ctx context.Context) error {
	for {
		if c.stop.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.queue:
			if msg == nil {
				continue
			}
			c.route(ctx, msg)
		}
	}
}

// route classifies one message and dispatches it. Reactions that send
// outbound frames run as tracked goroutines: sending the login call, for
// example, waits for a future result message that only this loop can
// deliver, so blocking here would deadlock.
func (c *Client) route(ctx context.Context, m *protocol.Message) {
	switch protocol.Classify(m) {
	case protocol.KindNone:
		c.events.Fire(ddpnet.EventConnectionEstablished, nil)
		c.spawn(func() { c.doConnect(ctx) })

	case protocol.KindPing:
		id := m.ID
		c.spawn(func() { c.sendPong(ctx, id) })

	case protocol.KindPong:
		// Keepalive acknowledged.

	case protocol.KindConnected:
		c.mu.Lock()
		c.session = m.Session
		c.mu.Unlock()
		c.state.Store(stateConnected)
		c.spawn(func() { c.doLogin(ctx) })

	case protocol.KindResult:
		c.onResult(ctx, m)

	case protocol.KindReady:
		for _, id := range m.Subs {
			if err := c.table.MarkReady(id); err != nil {
				c.logger.Warn("dropping ready for unknown subscription", "id", id)
			}
		}

	case protocol.KindAdded:
		c.events.Fire(ddpnet.EventAdded, m.Raw)
	case protocol.KindUpdated:
		c.events.Fire(ddpnet.EventUpdated, m.Raw)
	case protocol.KindRemoved:
		c.events.Fire(ddpnet.EventRemoved, m.Raw)
	case protocol.KindFailed:
		c.events.Fire(ddpnet.EventFailed, m.Raw)

	case protocol.KindChanged:
		c.events.Fire(ddpnet.EventChanged, m.Raw)
		c.routeChanged(m)

	default:
		c.logger.Debug("dropping unknown message", "msg", m.Msg)
	}
}

// routeChanged fires the collection-specific event for a changed
// message, in addition to the raw changed event already fired.
func (c *Client) routeChanged(m *protocol.Message) {
	switch m.Collection {
	case ddpnet.CollectionUsers:
		c.events.Fire(ddpnet.EventUsers, m.Raw)
	case ddpnet.CollectionNotifyUser:
		c.events.Fire(ddpnet.EventNotifyUser, m.Raw)
	case ddpnet.CollectionNotifyRoom:
		c.events.Fire(ddpnet.EventNotifyRoom, m.Raw)
	case ddpnet.CollectionRoomMessages:
		c.events.Fire(ddpnet.EventRoomMessage, m.Raw)
	}
}

// onResult resolves the pending call a result message matches. Presence
// of a non-null error member is the authoritative failure discriminator;
// everything else, including an empty result, is success. The one error
// handled here rather than surfaced is the rate-limit rejection: the
// original request is resent exactly once after the server-specified
// reset interval, and the caller keeps waiting for the real outcome.
func (c *Client) onResult(ctx context.Context, m *protocol.Message) {
	if m.Error == nil {
		if err := c.table.ResolveSuccess(m.ID, m.Result); err != nil {
			c.logger.Warn("dropping result for unknown call", "id", m.ID)
		}
		return
	}

	serr := &ddpnet.ServerError{
		Kind:        string(m.Error.Code),
		Reason:      m.Error.Reason,
		Message:     m.Error.Message,
		ErrorType:   m.Error.ErrorType,
		TimeToReset: m.Error.Details.ResetInterval(),
		Raw:         m.Error.Raw,
	}

	if serr.IsTooManyRequests() {
		if original, ok := c.table.RetryOriginal(m.ID); ok {
			delay := serr.TimeToReset
			c.logger.Info("rate limited, resending after reset interval", "id", m.ID, "delay", delay)
			c.spawn(func() { c.resendAfter(ctx, delay, original) })
			return
		}
		// Already resent once; surface the failure like any other.
	}

	if err := c.table.ResolveFailure(m.ID, serr); err != nil {
		c.logger.Warn("dropping error result for unknown call", "id", m.ID)
	}
}

// doConnect sends the connection handshake.
func (c *Client) doConnect(ctx context.Context) {
	if !c.state.CompareAndSwap(stateFresh, stateAwaitingConnectedAck) {
		// Duplicate greeting; the handshake is already under way.
		return
	}
	frame, err := protocol.Connect()
	if err != nil {
		c.logger.Error("build connect frame", "error", err)
		return
	}
	if err := c.send(ctx, frame); err != nil {
		c.logger.Error("send connect", "error", err)
	}
}

// sendPong answers a keepalive ping, echoing its id.
func (c *Client) sendPong(ctx context.Context, id string) {
	frame, err := protocol.Pong(id)
	if err != nil {
		c.logger.Error("build pong frame", "error", err)
		return
	}
	if err := c.send(ctx, frame); err != nil {
		c.logger.Warn("send pong", "error", err)
	}
}

// doLogin runs the login exchange and publishes the result.
func (c *Client) doLogin(ctx context.Context) {
	if c.cfg.Username == "" {
		// Anonymous connection; stay in the connected state.
		return
	}

	c.state.Store(stateAuthenticating)
	result, err := c.login(ctx)
	if err != nil {
		c.logger.Error("login failed", "error", err)
		return
	}

	c.state.Store(stateAuthenticated)
	c.authOnce.Do(func() { close(c.authCh) })
	c.events.Fire(ddpnet.EventLoggedIn, result)
}

// resendAfter suspends for the server-specified reset interval, then
// resends the original request payload. Teardown cancels the wait.
func (c *Client) resendAfter(ctx context.Context, delay time.Duration, original []byte) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := c.send(ctx, original); err != nil {
		c.logger.Warn("retry resend failed", "error", err)
	}
}

// spawn runs a side-effecting reaction on its own goroutine so the
// handler loop is never blocked from draining the next inbound message.
func (c *Client) spawn(f func()) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		f()
	}()
}

func (c *Client) send(ctx context.Context, frame []byte) error {
	conn := c.transport()
	if conn == nil {
		return ddpnet.ErrNotConnected
	}
	return conn.Send(ctx, frame)
}

func (c *Client) transport() transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// newID returns the next correlation id: a monotonically increasing
// counter, unique among all calls and subscriptions in flight.
func (c *Client) newID() string {
	return strconv.FormatUint(c.nextID.Add(1), 10)
}
