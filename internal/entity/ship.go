package entity

import (
	"fmt"
	"math"
)

// Ship is a player's vessel. Exactly one client owns it (Local == true on
// that client); every other client holds a mirror that only changes
// through ApplySnapshot.
type Ship struct {
	PlayerID string
	X, Y     float64
	Angle    float64
	VX, VY   float64
	Thrust   bool
	Alive    bool
	Lives    int
	Score    int
	Color    string

	Invulnerable bool
	// InvulnerableUntil is in simulation-clock seconds and never leaves the
	// owning client.
	InvulnerableUntil float64

	Local bool
	// Generation is bumped whenever the ship is respawned or reset, so
	// deferred tasks scheduled against an older incarnation can tell.
	Generation uint64
}

// ShipSnapshot is the wire form of a ship.
type ShipSnapshot struct {
	PlayerID     string  `json:"playerId"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Angle        float64 `json:"angle"`
	VX           float64 `json:"speedX"`
	VY           float64 `json:"speedY"`
	Thrust       bool    `json:"thrust"`
	Alive        bool    `json:"alive"`
	Lives        int     `json:"lives"`
	Score        int     `json:"score"`
	Invulnerable bool    `json:"isInvulnerable"`
	Color        string  `json:"color,omitempty"`
}

// NewShip creates a ship at (x, y) pointing up with a full set of lives.
func NewShip(playerID string, x, y float64, color string, local bool) *Ship {
	return &Ship{
		PlayerID: playerID,
		X:        x,
		Y:        y,
		Angle:    ShipSpawnAngle,
		Alive:    true,
		Lives:    InitialLives,
		Color:    color,
		Local:    local,
	}
}

// Radius is the collision radius.
func (s *Ship) Radius() float64 {
	return ShipSize
}

// Rotate turns the ship by one rotation step; dir is -1 for left, +1 for right.
func (s *Ship) Rotate(dir float64) {
	s.Angle += dir * ShipRotationSpeed
}

// Update advances the ship by dt seconds. Friction is applied once per call
// regardless of dt while thrust is scaled by dt, so two clients stepping with
// the same dt sequence produce the same trajectory.
func (s *Ship) Update(dt float64) {
	if !s.Alive {
		return
	}

	s.VX *= ShipFriction
	s.VY *= ShipFriction

	if s.Thrust {
		s.VX += math.Sin(s.Angle) * ShipAcceleration * dt
		s.VY -= math.Cos(s.Angle) * ShipAcceleration * dt
	}

	s.X += s.VX
	s.Y += s.VY

	s.X = wrapWithMargin(s.X, ScreenWidth, ShipSize)
	s.Y = wrapWithMargin(s.Y, ScreenHeight, ShipSize)
}

// Snapshot returns the fields a remote client needs to reconstruct the ship.
func (s *Ship) Snapshot() ShipSnapshot {
	return ShipSnapshot{
		PlayerID:     s.PlayerID,
		X:            s.X,
		Y:            s.Y,
		Angle:        s.Angle,
		VX:           s.VX,
		VY:           s.VY,
		Thrust:       s.Thrust,
		Alive:        s.Alive,
		Lives:        s.Lives,
		Score:        s.Score,
		Invulnerable: s.Invulnerable,
		Color:        s.Color,
	}
}

// ApplySnapshot overwrites the mirror with a remote snapshot. Applying the
// same snapshot twice has the same effect as applying it once.
func (s *Ship) ApplySnapshot(snap ShipSnapshot) error {
	if s.Local {
		return fmt.Errorf("ship %s: %w", s.PlayerID, ErrOwnedEntity)
	}
	s.PlayerID = snap.PlayerID
	s.X = snap.X
	s.Y = snap.Y
	s.Angle = snap.Angle
	s.VX = snap.VX
	s.VY = snap.VY
	s.Thrust = snap.Thrust
	s.Alive = snap.Alive
	s.Lives = snap.Lives
	s.Score = snap.Score
	s.Invulnerable = snap.Invulnerable
	if snap.Color != "" {
		s.Color = snap.Color
	}
	return nil
}
