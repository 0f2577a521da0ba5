package relay

import "context"

// Conn is the slice of a transport connection a room needs.
// rockrelay.Client satisfies it.
type Conn interface {
	ID() string
	Send(ctx context.Context, command uint32, payload []byte) error
	CloseWithCode(ctx context.Context, code int, reason string) error
}

// Join asks a room to admit a connection. Reply, if set, receives the outcome.
type Join struct {
	Conn  Conn
	Reply chan<- JoinResult
}

type JoinResult struct {
	PlayerID string
	Err      error
}

// Leave removes a connection from the roster. Unknown ids are ignored, which
// is what happens for connections that were turned away as room_full.
type Leave struct {
	PlayerID string
}

// Message is one inbound client command, already stripped of its frame header.
type Message struct {
	PlayerID string
	Command  uint32
	Payload  []byte
}
