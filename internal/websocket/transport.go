// Package websocket implements the raw transport: dialing the server,
// pumping outbound frames, and turning the socket's inbound stream into
// a channel of raw messages.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/ddpnet"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultSendBuffer       = 256
	defaultReceiveBuffer    = 256
	writeTimeout            = 10 * time.Second
	keepaliveInterval       = 54 * time.Second
)

// RateLimitConfig throttles outbound frames with a token bucket. The
// protocol's only mandated throttle is the server-driven retry-after
// case, so the limiter ships disabled; enable it to be polite to servers
// that rate-limit aggressively.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames may be sent per second.
	MessagesPerSecond rate.Limit `yaml:"messages_per_second"`
	// Burst defines the token bucket capacity.
	Burst int `yaml:"burst"`
	// Enabled determines if rate limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultRateLimitConfig allows 50 frames per second with burst of 100.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 50,
		Burst:             100,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{Enabled: false}
}

// Config configures one connection.
type Config struct {
	// URL is the websocket endpoint, e.g. wss://host/websocket.
	URL string
	// Header is sent with the dial request. May be nil.
	Header http.Header
	// HandshakeTimeout bounds the dial. Zero means 5s.
	HandshakeTimeout time.Duration
	// SendBuffer and ReceiveBuffer size the frame queues. Zero means 256.
	SendBuffer    int
	ReceiveBuffer int
	// RateLimit throttles outbound frames. Nil means disabled.
	RateLimit *RateLimitConfig
	// Logger receives transport-level events. Nil means slog.Default.
	Logger *slog.Logger
}

// Conn is one live connection. Frames written with Send are queued to a
// write pump; inbound frames arrive on Receive. The receive channel is
// closed when the connection dies, which is the caller's signal to
// cancel every pending request. A Conn is not restartable; dial a new
// one for a new connection.
type Conn struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	sendCh  chan []byte
	recvCh  chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

// Dial connects to cfg.URL and starts the read and write pumps.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handshake := cfg.HandshakeTimeout
	if handshake == 0 {
		handshake = defaultHandshakeTimeout
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer == 0 {
		sendBuffer = defaultSendBuffer
	}
	receiveBuffer := cfg.ReceiveBuffer
	if receiveBuffer == 0 {
		receiveBuffer = defaultReceiveBuffer
	}

	dialer := &websocket.Dialer{HandshakeTimeout: handshake}
	wsConn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:    wsConn,
		logger:  logger,
		sendCh:  make(chan []byte, sendBuffer),
		recvCh:  make(chan []byte, receiveBuffer),
		ctx:     connCtx,
		cancel:  cancel,
		limiter: limiter,
	}

	go c.writePump()
	go c.readLoop()
	return c, nil
}

// Send queues one frame for delivery. Fire-and-forget: a nil return
// means the frame was queued, not that the server received it. Fails
// once the connection is closed or either context is done.
//
// The lock is not held across the blocking enqueue, so a Send stuck on
// a full queue never blocks Close. sendCh is never closed; the pumps
// exit through the connection context instead.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ddpnet.ErrConnectionClosed
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ddpnet.ErrConnectionClosed
	}
}

// Receive returns the inbound frame stream. The channel is closed when
// the connection dies; it is not restartable.
func (c *Conn) Receive() <-chan []byte {
	return c.recvCh
}

// IsAlive returns true if the connection is still active.
func (c *Conn) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Close closes the connection gracefully.
func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional
// reason. Idempotent.
func (c *Conn) CloseWithCode(_ context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		c.logger.Debug("close handshake write failed", "error", err)
	}
	return c.conn.Close()
}

// writePump pumps frames from the send channel to the socket, sending a
// websocket-level ping when the connection idles.
func (c *Conn) writePump() {
	ticker := time.NewTicker(keepaliveInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readLoop feeds inbound frames into the receive channel until the
// socket dies, then marks the connection dead and closes the channel.
// The closed flag is set before recvCh closes, so anyone observing the
// closed receive channel also observes IsAlive() == false.
func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		close(c.recvCh)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}

		select {
		case c.recvCh <- data:
		case <-c.ctx.Done():
			return
		}
	}
}
