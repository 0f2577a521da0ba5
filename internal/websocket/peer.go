package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/protocol"
)

// FrameFn receives each decoded frame read by a Peer.
type FrameFn = func(command uint32, payload []byte)

// CloseFn is called once when a Peer's connection ends. err is nil for a
// local Close.
type CloseFn = func(code int, err error)

// PeerConfig configures the dialing side of a connection.
type PeerConfig struct {
	URL     string
	OnFrame FrameFn
	OnClose CloseFn
	Logger  *zerolog.Logger
	// HandshakeTimeout defaults to 10s.
	HandshakeTimeout time.Duration
}

// Peer is a client connection to a relay. It mirrors Client on the server
// side: one write pump owns all writes, one read loop owns all reads.
type Peer struct {
	conn    *websocket.Conn
	sendCh  chan []byte
	onFrame FrameFn
	onClose CloseFn
	log     zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a relay and starts the peer's pumps.
func Dial(ctx context.Context, cfg PeerConfig) (*Peer, error) {
	if cfg.OnFrame == nil {
		return nil, errors.New("peer requires an OnFrame callback")
	}
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	p := &Peer{
		conn:    conn,
		sendCh:  make(chan []byte, sendBuffer),
		onFrame: cfg.OnFrame,
		onClose: cfg.OnClose,
		log:     log.With().Str("component", "peer").Logger(),
		done:    make(chan struct{}),
	}

	go p.writePump()
	go p.readLoop()

	return p, nil
}

// Send frames and queues a command.
func (p *Peer) Send(command uint32, payload []byte) error {
	data, err := protocol.Encode(command, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", rockrelay.ErrFailedToEncode, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New(rockrelay.ErrConnectionClosed)
	}
	select {
	case p.sendCh <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close flushes queued frames and closes the connection normally.
func (p *Peer) Close() error {
	p.stopSending()
	return nil
}

// Done is closed after the read loop has exited.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) stopSending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.sendCh)
}

func (p *Peer) finish(code int, err error) {
	p.closeOnce.Do(func() {
		if p.onClose != nil {
			p.onClose(code, err)
		}
	})
}

func (p *Peer) readLoop() {
	defer close(p.done)
	defer p.stopSending()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPingHandler(func(appData string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return p.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				p.finish(closeErr.Code, closeErr)
				return
			}
			p.finish(websocket.CloseAbnormalClosure, err)
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))

		command, payload, err := protocol.Decode(data)
		if err != nil {
			p.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		p.onFrame(command, payload)
	}
}

func (p *Peer) writePump() {
	defer p.conn.Close()

	for message := range p.sendCh {
		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
			p.log.Debug().Err(err).Msg("write failed")
			return
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	// Give the server a moment to echo the close frame before tearing down.
	select {
	case <-p.done:
	case <-time.After(time.Second):
	}
}
