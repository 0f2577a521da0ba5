package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// CheckOriginFn is a function that validates the origin of a WebSocket connection request.
// It receives the HTTP request and returns true if the origin is allowed, false otherwise.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called once per connection after the handshake completes
// and before the read loop starts. It runs on the connection's goroutine, so
// anything it does happens before the first handler call for that client.
type OnConnectFn = func(client rockrelay.Client)

// OnClientDisconnectFn is invoked when a connection ends. voluntary is true
// when the peer closed with a normal or going-away close frame.
type OnClientDisconnectFn = func(client rockrelay.Client, voluntary bool)

type ServerConfig struct {
	Addr string
	// Path is where the upgrade endpoint is mounted. Defaults to "/ws".
	Path string
	// StaticDir, when set, is served on "/" next to the upgrade endpoint.
	StaticDir          string
	RateLimitConfig    *RateLimitConfig
	CheckOrigin        CheckOriginFn
	OnConnect          OnConnectFn
	OnClientDisconnect OnClientDisconnectFn
	Logger             *zerolog.Logger
}

// RateLimitConfig defines rate limiting configuration for clients
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig allows 100 messages per second with a burst of 200.
// A client sending updates at 60Hz plus shots stays well under it.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Server implements rockrelay.WebsocketServer on top of gorilla/websocket.
type Server struct {
	addr      string
	path      string
	staticDir string
	server    *http.Server
	clients   sync.Map // map[string]*Client
	handlers  sync.Map // map[uint32]func(client rockrelay.Client, payload []byte)

	rateLimitConfig *RateLimitConfig
	log             zerolog.Logger

	mu           sync.RWMutex
	running      bool
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnClientDisconnectFn
}

// New creates a server from cfg. A nil RateLimitConfig means
// DefaultRateLimitConfig and a nil Logger discards log output.
func New(cfg *ServerConfig) *Server {
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Server{
		addr:            cfg.Addr,
		path:            cfg.Path,
		staticDir:       cfg.StaticDir,
		rateLimitConfig: cfg.RateLimitConfig,
		log:             log.With().Str("component", "ws").Logger(),
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnClientDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler returns the HTTP handler serving the upgrade endpoint and, if
// configured, the static client files.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// Start starts the WebSocket server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(rockrelay.ErrServerAlreadyRunning)
	}
	s.running = true
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	srv := s.server
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Check for immediate startup errors with a small timeout
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.log.Info().Str("addr", s.addr).Str("path", s.path).Msg("listening")
		return nil
	}
}

// Stop closes every client connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.mu.Unlock()

	s.clients.Range(func(key, value any) bool {
		if client, ok := value.(*Client); ok {
			client.CloseWithCode(ctx, websocket.CloseGoingAway, "server shutting down")
		}
		return true
	})

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// RegisterHandler registers a handler for a specific command ID. Handlers
// are called synchronously on the connection's read goroutine.
func (s *Server) RegisterHandler(ctx context.Context, commandID uint32, handler func(client rockrelay.Client, payload []byte)) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", rockrelay.CommandName(commandID))
	}
	s.handlers.Store(commandID, handler)
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	client := NewClient(conn, r.RemoteAddr, params, s.rateLimitConfig)
	s.clients.Store(client.ID(), client)

	go s.handleClient(client)
}

func (s *Server) handleClient(client *Client) {
	log := s.log.With().Str("conn_id", client.ID()).Logger()
	voluntary := false

	defer func() {
		s.clients.Delete(client.ID())
		client.Close(context.Background())
		if s.onDisconnect != nil {
			s.onDisconnect(client, voluntary)
		}
		log.Debug().Bool("voluntary", voluntary).Msg("client disconnected")
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	log.Debug().Str("remote_addr", client.RemoteAddr()).Msg("client connected")
	if s.onConnect != nil {
		s.onConnect(client)
	}

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			voluntary = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !client.CheckRateLimit(context.Background()) {
			log.Warn().Str("remote_addr", client.RemoteAddr()).Msg("rate limit exceeded")
			client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		commandID, payload, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("invalid frame")
			client.CloseWithCode(context.Background(), websocket.CloseProtocolError, rockrelay.ErrInvalidMessageFormat)
			return
		}

		s.dispatch(client, commandID, payload, log)
	}
}

// dispatch runs the handler inline so a connection's messages are handled
// in arrival order. Unknown commands are dropped.
func (s *Server) dispatch(client *Client, commandID uint32, payload []byte, log zerolog.Logger) {
	handler, ok := s.handlers.Load(commandID)
	if !ok {
		log.Debug().Uint32("command", commandID).Msg(rockrelay.ErrUnknownCommand)
		return
	}
	if fn, ok := handler.(func(rockrelay.Client, []byte)); ok {
		fn(client, payload)
	}
}

// GetClient returns a client by ID
func (s *Server) GetClient(id string) (*Client, bool) {
	if client, ok := s.clients.Load(id); ok {
		return client.(*Client), true
	}
	return nil, false
}
