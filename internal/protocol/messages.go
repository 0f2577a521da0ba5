package protocol

import "github.com/luciancaetano/rockrelay/internal/entity"

// PlayerRecord is the server's view of a player in the roster.
type PlayerRecord struct {
	ID    string               `json:"id"`
	X     float64              `json:"x"`
	Y     float64              `json:"y"`
	Score int                  `json:"score"`
	Ready bool                 `json:"ready"`
	Color string               `json:"color"`
	Ship  *entity.ShipSnapshot `json:"ship,omitempty"`
}

// PlayerAssigned bootstraps a newly admitted client.
type PlayerAssigned struct {
	PlayerID string         `json:"playerId"`
	Round    int            `json:"round"`
	Running  bool           `json:"running"`
	Players  []PlayerRecord `json:"players"`
}

// RoomFull tells a rejected client why it is being closed.
type RoomFull struct {
	Capacity int `json:"capacity"`
}

// AsteroidDestroyed is sent by a client with only AsteroidID (and optionally
// the destroyer); the server fills in the rest before broadcasting.
type AsteroidDestroyed struct {
	AsteroidID string `json:"asteroidId"`
	PlayerID   string `json:"playerId,omitempty"`
	Score      int    `json:"score,omitempty"`
	Round      int    `json:"round,omitempty"`
}

// ShipDestroyed reports a ship losing a life. VictimID defaults to the sender.
type ShipDestroyed struct {
	VictimID    string `json:"victimId,omitempty"`
	KillerID    string `json:"killerId,omitempty"`
	LivesLeft   int    `json:"livesLeft"`
	KillerScore int    `json:"killerScore,omitempty"`
	Round       int    `json:"round,omitempty"`
}

type PlayerDisconnected struct {
	PlayerID string `json:"playerId"`
}

type RequestRestart struct{}

type GameRestart struct {
	Round int `json:"round"`
}

type GameStateUpdate struct {
	Running bool           `json:"running"`
	Round   int            `json:"round"`
	Players []PlayerRecord `json:"players"`
}

// AsteroidsSpawned carries the round host's asteroid field.
type AsteroidsSpawned struct {
	PlayerID  string                    `json:"playerId,omitempty"`
	Round     int                       `json:"round"`
	Asteroids []entity.AsteroidSnapshot `json:"asteroids"`
}
