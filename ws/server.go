package ws

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnClientDisconnectFn
type ServerConfig = *websocket.ServerConfig

// Server is the concrete transport returned by New. Besides
// rockrelay.WebsocketServer it exposes Handler for mounting in tests or
// an existing mux.
type Server interface {
	rockrelay.WebsocketServer
	Handler() http.Handler
}

// Peer is a client connection to a relay.
type Peer = websocket.Peer
type PeerConfig = websocket.PeerConfig

// New creates a new WebSocket server.
//
// Example:
//
//	server := ws.New(ws.NewConfig(":3000", ws.DefaultRateLimitConfig(), ws.AllOrigins(), onConnect, onDisconnect))
func New(cfg ServerConfig) Server {
	return websocket.New(cfg)
}

// NewConfig builds a server configuration. Use WithStaticDir and WithLogger
// for the optional settings.
func NewConfig(addr string, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn, onConnect OnConnectFn, onDisconnect OnDisconnectFn) ServerConfig {
	return &websocket.ServerConfig{
		Addr:               addr,
		RateLimitConfig:    rateLimitConfig,
		CheckOrigin:        checkOrigin,
		OnConnect:          onConnect,
		OnClientDisconnect: onDisconnect,
	}
}

// WithStaticDir serves dir on "/" next to the websocket endpoint.
func WithStaticDir(cfg ServerConfig, dir string) ServerConfig {
	cfg.StaticDir = dir
	return cfg
}

func WithLogger(cfg ServerConfig, log zerolog.Logger) ServerConfig {
	cfg.Logger = &log
	return cfg
}

// Dial connects to the relay at cfg.URL.
func Dial(ctx context.Context, cfg PeerConfig) (*Peer, error) {
	return websocket.Dial(ctx, cfg)
}

// AllOrigins returns the default checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}

// RateLimit returns an enabled configuration with the given rate and burst.
func RateLimit(perSecond float64, burst int) *RateLimitConfig {
	return &RateLimitConfig{MessagesPerSecond: rate.Limit(perSecond), Burst: burst, Enabled: true}
}
