package rockrelay

import "context"

// WebsocketServer defines the interface for the relay's WebSocket transport.
//
// All messages exchanged between the server and clients are framed with the
// internal protocol format: a CommandID (uint32) followed by a codec-encoded
// payload.
//
// Example usage:
//
//	import "github.com/luciancaetano/rockrelay/ws"
//
//	server := ws.New(ws.NewConfig(":3000", ws.DefaultRateLimitConfig(), ws.AllOrigins(), onConnect, onDisconnect))
//
//	server.RegisterHandler(ctx, rockrelay.CmdPlayerUpdate, func(client Client, payload []byte) {
//	    room.Deliver(client.ID(), rockrelay.CmdPlayerUpdate, payload)
//	})
//
//	server.Start(ctx)
type WebsocketServer interface {
	// Start starts the WebSocket server and begins listening for connections.
	// The server will continue running until Stop is called or the context is cancelled.
	//
	// Returns an error if the server is already running or if there's a problem
	// binding to the network address.
	Start(ctx context.Context) error

	// Stop gracefully stops the WebSocket server and closes all client connections.
	Stop(ctx context.Context) error

	// RegisterHandler registers a handler function for a specific command ID.
	//
	// Handlers run on the connection's read goroutine, one message at a time,
	// so messages from a single connection reach the handler in the order
	// they were sent. A handler must not block; hand the payload off to an
	// event loop (such as a room inbox) instead.
	RegisterHandler(ctx context.Context, commandID uint32, handler func(client Client, payload []byte)) error
}

// Client represents a connected WebSocket client.
//
// Each client has a unique identifier and maintains its own connection state.
type Client interface {
	// ID returns a unique identifier for the connected client.
	//
	// The ID is generated when the client connects and doubles as the
	// player id for the lifetime of the connection.
	ID() string

	// RemoteAddr returns the client's remote network address.
	RemoteAddr() string

	// Param returns a query parameter captured from the upgrade request,
	// or "" when absent. The relay uses it to pick a room ("?room=abc").
	Param(name string) string

	// Send encodes the command and payload into a frame and queues it for
	// delivery. The send operation is non-blocking unless the queue is full.
	//
	// Returns an error if the connection is closed or the context is cancelled.
	Send(ctx context.Context, command uint32, payload []byte) error

	// Close closes the client connection gracefully.
	//
	// This is equivalent to calling CloseWithCode with websocket.CloseNormalClosure.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close code and optional reason.
	//
	// Common close codes:
	//   - 1000 (websocket.CloseNormalClosure): Normal closure
	//   - 1008 (websocket.ClosePolicyViolation): Rate limit exceeded
	//   - 1013 (websocket.CloseTryAgainLater): Room full
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true if the connection is still active.
	IsAlive() bool
}
