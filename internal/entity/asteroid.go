package entity

import (
	"math"
	"math/rand/v2"
)

// Point is a polygon vertex relative to the asteroid's center.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Asteroid is shared by both clients. Any client may damage its copy, but
// DestroyedBy is written at most once.
type Asteroid struct {
	ID            string
	X, Y          float64
	VX, VY        float64
	Size          float64
	Rotation      float64
	RotationSpeed float64
	Health        int
	DestroyedBy   string
	// DestroyedAt is the simulation-clock time the local copy crossed the
	// health threshold; it is local bookkeeping only.
	DestroyedAt float64

	base   []Point
	points []Point
}

// AsteroidSnapshot is the wire form of an asteroid.
type AsteroidSnapshot struct {
	ID            string  `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	VX            float64 `json:"speedX"`
	VY            float64 `json:"speedY"`
	Size          float64 `json:"size"`
	Rotation      float64 `json:"rotation"`
	RotationSpeed float64 `json:"rotationSpeed"`
	Health        int     `json:"health"`
	DestroyedBy   string  `json:"destroyedBy,omitempty"`
	Base          []Point `json:"points"`
}

// NewAsteroid creates an asteroid at (x, y) with a random size, heading,
// spin and outline drawn from rng.
func NewAsteroid(id string, x, y float64, rng *rand.Rand) *Asteroid {
	size := rng.Float64()*(AsteroidMaxSize-AsteroidMinSize) + AsteroidMinSize
	heading := rng.Float64() * math.Pi * 2

	a := &Asteroid{
		ID:            id,
		X:             x,
		Y:             y,
		VX:            math.Cos(heading) * AsteroidSpeed,
		VY:            math.Sin(heading) * AsteroidSpeed,
		Size:          size,
		RotationSpeed: (rng.Float64() - 0.5) * 0.02,
		Health:        AsteroidMaxHealth,
		base:          outline(size, rng),
	}
	a.rotatePoints()
	return a
}

func outline(size float64, rng *rand.Rand) []Point {
	pts := make([]Point, AsteroidVertices)
	for i := range pts {
		angle := float64(i) / AsteroidVertices * math.Pi * 2
		variance := rng.Float64()*0.4 + 0.8
		pts[i] = Point{
			X: math.Cos(angle) * size * variance,
			Y: math.Sin(angle) * size * variance,
		}
	}
	return pts
}

// Radius is the collision radius.
func (a *Asteroid) Radius() float64 {
	return a.Size
}

// Destroyed reports whether some player has already been credited.
func (a *Asteroid) Destroyed() bool {
	return a.DestroyedBy != ""
}

// Points returns the current outline, the base outline rotated by Rotation.
func (a *Asteroid) Points() []Point {
	return a.points
}

// Update drifts the asteroid by dt seconds and spins it one step.
func (a *Asteroid) Update(dt float64) {
	a.X += a.VX * dt
	a.Y += a.VY * dt

	a.Rotation += a.RotationSpeed
	a.rotatePoints()

	a.X = wrapWithMargin(a.X, ScreenWidth, a.Size)
	a.Y = wrapWithMargin(a.Y, ScreenHeight, a.Size)
}

// rotatePoints derives the outline from the base points with a rotation
// matrix so the shape never drifts from repeated rotation.
func (a *Asteroid) rotatePoints() {
	if len(a.points) != len(a.base) {
		a.points = make([]Point, len(a.base))
	}
	sin, cos := math.Sincos(a.Rotation)
	for i, p := range a.base {
		a.points[i] = Point{
			X: p.X*cos - p.Y*sin,
			Y: p.X*sin + p.Y*cos,
		}
	}
}

// Damage subtracts amount from the asteroid's health and returns true only
// for the hit that destroys it. Damage to an already destroyed asteroid is
// ignored.
func (a *Asteroid) Damage(amount int, playerID string) bool {
	if a.Destroyed() {
		return false
	}
	a.Health -= amount
	if a.Health > 0 {
		return false
	}
	a.Health = 0
	a.DestroyedBy = playerID
	return true
}

// Snapshot returns the fields a remote client needs to reconstruct the asteroid.
func (a *Asteroid) Snapshot() AsteroidSnapshot {
	base := make([]Point, len(a.base))
	copy(base, a.base)
	return AsteroidSnapshot{
		ID:            a.ID,
		X:             a.X,
		Y:             a.Y,
		VX:            a.VX,
		VY:            a.VY,
		Size:          a.Size,
		Rotation:      a.Rotation,
		RotationSpeed: a.RotationSpeed,
		Health:        a.Health,
		DestroyedBy:   a.DestroyedBy,
		Base:          base,
	}
}

// ApplySnapshot overwrites the asteroid from a remote snapshot. A destroyer
// that is already recorded locally is kept.
func (a *Asteroid) ApplySnapshot(snap AsteroidSnapshot) {
	a.ID = snap.ID
	a.X = snap.X
	a.Y = snap.Y
	a.VX = snap.VX
	a.VY = snap.VY
	a.Size = snap.Size
	a.Rotation = snap.Rotation
	a.RotationSpeed = snap.RotationSpeed
	a.Health = snap.Health
	if !a.Destroyed() {
		a.DestroyedBy = snap.DestroyedBy
	}
	a.base = make([]Point, len(snap.Base))
	copy(a.base, snap.Base)
	a.rotatePoints()
}

// AsteroidFromSnapshot builds a mirrored asteroid.
func AsteroidFromSnapshot(snap AsteroidSnapshot) *Asteroid {
	a := &Asteroid{}
	a.ApplySnapshot(snap)
	return a
}
