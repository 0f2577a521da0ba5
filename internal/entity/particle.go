package entity

import (
	"math"
	"math/rand/v2"
)

// ParticleKind selects a particle's speed, decay and fade.
type ParticleKind string

const (
	ParticleExplosion ParticleKind = "explosion"
	ParticleThrust    ParticleKind = "thrust"
	ParticleImpact    ParticleKind = "impact"
)

// Particle is visual feedback only and is never sent over the network by
// the simulation.
type Particle struct {
	Kind          ParticleKind
	X, Y          float64
	VX, VY        float64
	Color         string
	Size          float64
	Life          float64
	Decay         float64
	Alpha         float64
	Scale         float64
	Rotation      float64
	RotationSpeed float64
}

type ParticleSnapshot struct {
	Kind          ParticleKind `json:"type"`
	X             float64      `json:"x"`
	Y             float64      `json:"y"`
	VX            float64      `json:"speedX"`
	VY            float64      `json:"speedY"`
	Color         string       `json:"color"`
	Size          float64      `json:"size"`
	Life          float64      `json:"life"`
	Decay         float64      `json:"decay"`
	Alpha         float64      `json:"alpha"`
	Scale         float64      `json:"scale"`
	Rotation      float64      `json:"rotation"`
	RotationSpeed float64      `json:"rotationSpeed"`
}

// NewParticle spawns a particle at (x, y) flying in a random direction.
func NewParticle(x, y float64, color string, kind ParticleKind, rng *rand.Rand) *Particle {
	if color == "" {
		color = "#ffffff"
	}
	angle := rng.Float64() * math.Pi * 2
	speed := initialSpeed(kind, rng)
	return &Particle{
		Kind:          kind,
		X:             x,
		Y:             y,
		VX:            math.Cos(angle) * speed,
		VY:            math.Sin(angle) * speed,
		Color:         color,
		Size:          rng.Float64()*3 + 1,
		Life:          1,
		Decay:         decayRate(kind, rng),
		Alpha:         1,
		Scale:         1,
		Rotation:      rng.Float64() * math.Pi * 2,
		RotationSpeed: (rng.Float64() - 0.5) * 0.1,
	}
}

func initialSpeed(kind ParticleKind, rng *rand.Rand) float64 {
	switch kind {
	case ParticleThrust:
		return rng.Float64()*2 + 1
	case ParticleImpact:
		return rng.Float64()*3 + 1
	default:
		return rng.Float64()*5 + 2
	}
}

func decayRate(kind ParticleKind, rng *rand.Rand) float64 {
	switch kind {
	case ParticleThrust:
		return rng.Float64()*0.1 + 0.05
	case ParticleImpact:
		return rng.Float64()*0.05 + 0.03
	default:
		return rng.Float64()*0.02 + 0.02
	}
}

// Update advances the particle by dt seconds.
func (p *Particle) Update(dt float64) {
	p.X += p.VX * dt
	p.Y += p.VY * dt
	p.Rotation += p.RotationSpeed * dt

	switch p.Kind {
	case ParticleExplosion:
		p.Scale -= 0.01
		p.Alpha = p.Life
	case ParticleThrust:
		p.Scale -= 0.03
		p.Alpha = p.Life * 0.7
	case ParticleImpact:
		p.Scale += 0.02
		p.Alpha = p.Life * 0.5
	}

	p.Life -= p.Decay * dt
}

// Dead reports whether the particle has faded out.
func (p *Particle) Dead() bool {
	return p.Life <= 0
}

func (p *Particle) Snapshot() ParticleSnapshot {
	return ParticleSnapshot{
		Kind:          p.Kind,
		X:             p.X,
		Y:             p.Y,
		VX:            p.VX,
		VY:            p.VY,
		Color:         p.Color,
		Size:          p.Size,
		Life:          p.Life,
		Decay:         p.Decay,
		Alpha:         p.Alpha,
		Scale:         p.Scale,
		Rotation:      p.Rotation,
		RotationSpeed: p.RotationSpeed,
	}
}

func (p *Particle) ApplySnapshot(snap ParticleSnapshot) {
	p.Kind = snap.Kind
	p.X = snap.X
	p.Y = snap.Y
	p.VX = snap.VX
	p.VY = snap.VY
	p.Color = snap.Color
	p.Size = snap.Size
	p.Life = snap.Life
	p.Decay = snap.Decay
	p.Alpha = snap.Alpha
	p.Scale = snap.Scale
	p.Rotation = snap.Rotation
	p.RotationSpeed = snap.RotationSpeed
}
