package entity

import "math"

// Bullet is owned by the player who fired it. It loses one tick of lifetime
// per update and never hurts its owner's ship.
type Bullet struct {
	ID       string
	X, Y     float64
	VX, VY   float64
	Lifetime int
	OwnerID  string
	Damage   int
}

// BulletSnapshot is the wire form of a bullet: its spawn parameters.
type BulletSnapshot struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"speedX"`
	VY       float64 `json:"speedY"`
	Lifetime int     `json:"lifetime"`
	OwnerID  string  `json:"playerId"`
	Damage   int     `json:"damage"`
}

// NewBullet fires a bullet from (x, y) along angle.
func NewBullet(id, ownerID string, x, y, angle float64) *Bullet {
	return &Bullet{
		ID:       id,
		X:        x,
		Y:        y,
		VX:       math.Sin(angle) * BulletSpeed,
		VY:       -math.Cos(angle) * BulletSpeed,
		Lifetime: BulletLifetime,
		OwnerID:  ownerID,
		Damage:   BulletDamage,
	}
}

// Radius is the collision radius.
func (b *Bullet) Radius() float64 {
	return BulletSize
}

// Update moves the bullet one tick and reports whether it is still alive.
func (b *Bullet) Update() bool {
	b.X += b.VX
	b.Y += b.VY

	if b.X > ScreenWidth {
		b.X = 0
	}
	if b.X < 0 {
		b.X = ScreenWidth
	}
	if b.Y > ScreenHeight {
		b.Y = 0
	}
	if b.Y < 0 {
		b.Y = ScreenHeight
	}

	b.Lifetime--
	return b.Lifetime > 0
}

func (b *Bullet) Snapshot() BulletSnapshot {
	return BulletSnapshot{
		ID:       b.ID,
		X:        b.X,
		Y:        b.Y,
		VX:       b.VX,
		VY:       b.VY,
		Lifetime: b.Lifetime,
		OwnerID:  b.OwnerID,
		Damage:   b.Damage,
	}
}

func (b *Bullet) ApplySnapshot(snap BulletSnapshot) {
	b.ID = snap.ID
	b.X = snap.X
	b.Y = snap.Y
	b.VX = snap.VX
	b.VY = snap.VY
	b.Lifetime = snap.Lifetime
	b.OwnerID = snap.OwnerID
	b.Damage = snap.Damage
}

// BulletFromSnapshot builds a remote bullet. Missing lifetime or damage fall
// back to the defaults so older senders still produce a working bullet.
func BulletFromSnapshot(snap BulletSnapshot) *Bullet {
	b := &Bullet{}
	b.ApplySnapshot(snap)
	if b.Lifetime <= 0 {
		b.Lifetime = BulletLifetime
	}
	if b.Damage <= 0 {
		b.Damage = BulletDamage
	}
	return b
}
