// Package rockrelay is a two-player relay for an asteroids-style arcade game.
//
// Two browser or headless clients each simulate the game locally and share it
// through a thin WebSocket relay. Every client is the source of truth for its
// own ship; asteroids are shared and any client may damage them, but only the
// first destruction report the server receives for an asteroid is fanned out.
//
// # Architecture
//
// The repository is split along the path a message takes:
//
//   - internal/entity: Ship, Asteroid, Bullet and Particle with their snapshots
//   - internal/sim: the per-frame update pass (physics, collisions, timers)
//   - internal/netsync: the client session that turns local events into
//     messages and applies inbound messages to mirrored entities
//   - internal/relay: the room actor that admits at most two players, keeps
//     scores and the roster, and rebroadcasts events
//   - internal/websocket and ws: the WebSocket transport on both ends
//
// # Protocol Format
//
// Every message is a binary frame:
//
//	[4 bytes: CommandID (uint32, big-endian)][N bytes: Payload]
//
// The payload is JSON by default, or MessagePack when both ends are configured
// with the msgpack codec. Command IDs are listed in commands.go.
//
// Maximum payload: 10MB. Zero-copy decode.
//
// # Rate Limiting
//
// Each connection has an inbound token bucket (default 100 messages/second,
// burst 200). Clients cap their own player_update sends at one per 16ms.
// When the server-side limit is exceeded the connection is closed with
// code 1008 (Policy Violation).
//
// # Trust Boundary
//
// The relay does not run physics. A client that reports an asteroid or ship
// destroyed is believed; the server only makes sure a given destruction is
// broadcast once per round. This is acceptable for a casual two-player room
// and is a known limitation.
package rockrelay
