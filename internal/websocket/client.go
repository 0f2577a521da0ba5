package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/protocol"
)

// ErrSendQueueFull is returned when a client is not draining its frames.
var ErrSendQueueFull = errors.New("send queue full")

// Client is the server side of one accepted connection.
type Client struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	params      map[string]string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	closeMsg    []byte
	rateLimiter *rate.Limiter
}

// NewClient wraps an upgraded connection and starts its write pump.
func NewClient(conn *websocket.Conn, remoteAddr string, params map[string]string, rateLimitConfig *RateLimitConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rateLimitConfig != nil && rateLimitConfig.Enabled {
		limiter = rate.NewLimiter(rateLimitConfig.MessagesPerSecond, rateLimitConfig.Burst)
	}

	client := &Client{
		id:          uuid.New().String(),
		conn:        conn,
		remoteAddr:  remoteAddr,
		params:      params,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, sendBuffer),
		rateLimiter: limiter,
	}

	go client.writePump()

	return client
}

// ID returns a unique identifier for the connected client
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the client's remote network address
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Param returns a query parameter from the upgrade request.
func (c *Client) Param(name string) string {
	return c.params[name]
}

// Send frames the payload and queues it. It never blocks on a slow peer:
// a full queue is reported as ErrSendQueueFull.
func (c *Client) Send(ctx context.Context, command uint32, payload []byte) error {
	data, err := protocol.Encode(command, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", rockrelay.ErrFailedToEncode, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New(rockrelay.ErrConnectionClosed)
	}
	// The write pump is gone once the client context is done.
	if c.ctx.Err() != nil {
		return errors.New(rockrelay.ErrContextCancelled)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close closes the client connection
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode stops accepting frames and lets the write pump flush what is
// already queued before sending the close frame. Frames queued before the
// call, like a room_full notice, still reach the peer.
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.closeMsg = websocket.FormatCloseMessage(code, reason)
	close(c.sendCh)
	return nil
}

// IsAlive returns true if the connection is still active
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// CheckRateLimit reports whether one more inbound message is allowed.
func (c *Client) CheckRateLimit(ctx context.Context) bool {
	if c.rateLimiter == nil {
		return true
	}
	return c.rateLimiter.Allow()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.mu.RLock()
				msg := c.closeMsg
				c.mu.RUnlock()
				c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}

			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
