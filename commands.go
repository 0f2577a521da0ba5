package rockrelay

import "fmt"

// Command IDs of the room-scoped message protocol.
const (
	// Server -> client: connection refused, the server closes it right after.
	CmdRoomFull uint32 = 0x0101
	// Server -> client: the joining player's id plus the current roster.
	CmdPlayerAssigned uint32 = 0x0102
	// Server -> others: a player record was added to the roster.
	CmdPlayerJoined uint32 = 0x0103
	// Client -> server -> others: ship state snapshot, ~60 Hz.
	CmdPlayerUpdate uint32 = 0x0104
	// Client -> server -> others: bullet spawn parameters.
	CmdPlayerShoot uint32 = 0x0105
	// Client -> server -> all: first arrival per asteroid id and round wins.
	CmdAsteroidDestroyed uint32 = 0x0106
	// Client -> server -> all: a ship lost a life.
	CmdShipDestroyed uint32 = 0x0107
	// Server -> all: a player left the room.
	CmdPlayerDisconnected uint32 = 0x0108
	// Client -> server: mark the sender ready for the next round.
	CmdRequestRestart uint32 = 0x0109
	// Server -> all: every connected player was ready.
	CmdGameRestart uint32 = 0x010A
	// Server -> all: run/pause state and roster.
	CmdGameStateUpdate uint32 = 0x010B
	// Client -> server -> others: the round host's asteroid field.
	CmdAsteroidsSpawned uint32 = 0x010C
)

// CommandName returns the protocol name of a command, used in logs.
func CommandName(cmd uint32) string {
	switch cmd {
	case CmdRoomFull:
		return "room_full"
	case CmdPlayerAssigned:
		return "player_assigned"
	case CmdPlayerJoined:
		return "player_joined"
	case CmdPlayerUpdate:
		return "player_update"
	case CmdPlayerShoot:
		return "player_shoot"
	case CmdAsteroidDestroyed:
		return "asteroid_destroyed"
	case CmdShipDestroyed:
		return "ship_destroyed"
	case CmdPlayerDisconnected:
		return "player_disconnected"
	case CmdRequestRestart:
		return "request_restart"
	case CmdGameRestart:
		return "game_restart"
	case CmdGameStateUpdate:
		return "game_state_update"
	case CmdAsteroidsSpawned:
		return "asteroids_spawned"
	}
	return fmt.Sprintf("unknown(%#x)", cmd)
}

// Standard error messages
const (
	// Protocol errors
	ErrInvalidMessageFormat = "Invalid message format"
	ErrUnknownCommand       = "unknown command"
	ErrRoomFull             = "room full"

	// Connection errors
	ErrConnectionClosed     = "client connection is closed"
	ErrContextCancelled     = "client context cancelled"
	ErrFailedToEncode       = "failed to encode message"
	ErrServerAlreadyRunning = "server already running"
)
