package sim

import (
	"math"
	"math/rand/v2"

	"github.com/luciancaetano/rockrelay/internal/entity"
)

const (
	colorExplosion = "#ffaa00"
	colorShipHit   = "#ff0000"
	colorImpact    = "#ffffff"
)

// Intent is a local input event.
type Intent int

const (
	RotateLeft Intent = iota
	RotateRight
	ThrustOn
	ThrustOff
	Fire
)

// Engine advances a State one frame at a time. It owns the deferred tasks
// and the random source; the State itself is passed in on every call.
type Engine struct {
	tuning Tuning
	rng    *rand.Rand
	sched  Scheduler
	events []Event
}

func NewEngine(tuning Tuning, rng *rand.Rand) *Engine {
	return &Engine{tuning: tuning, rng: rng}
}

// Tuning returns the engine's tuning parameters.
func (e *Engine) Tuning() Tuning {
	return e.tuning
}

// Scheduler exposes the deferred tasks, mainly for tests.
func (e *Engine) Scheduler() *Scheduler {
	return &e.sched
}

// Drain returns and clears the events produced since the last call.
func (e *Engine) Drain() []Event {
	out := e.events
	e.events = nil
	return out
}

func (e *Engine) emit(ev Event) {
	e.events = append(e.events, ev)
}

// Step runs one update pass of dt seconds: timers, the local ship, asteroids,
// bullets with their collisions, the local ship against asteroids, and
// particles. Mirrored ships are never moved here; only snapshots move them.
func (e *Engine) Step(s *State, dt float64) {
	s.Clock += dt
	e.sched.Run(s, s.Clock)

	if s.Running {
		if ship := s.LocalShip(); ship != nil {
			ship.Update(dt)
		}
		for _, a := range s.Asteroids {
			a.Update(dt)
		}
		e.stepBullets(s)
		e.collideLocalShip(s)
		e.expirePending(s)
		e.checkRoundOver(s)
	}

	e.stepParticles(s, dt)
}

// stepBullets moves every bullet and resolves its first collision. Asteroids
// are checked before ships so a bullet can only ever score once.
func (e *Engine) stepBullets(s *State) {
	shipIDs := s.ShipIDs()
	kept := s.Bullets[:0]

	for _, b := range s.Bullets {
		if !b.Update() {
			continue
		}
		if e.bulletHitsAsteroid(s, b) {
			continue
		}
		if e.bulletHitsShip(s, b, shipIDs) {
			continue
		}
		kept = append(kept, b)
	}

	for i := len(kept); i < len(s.Bullets); i++ {
		s.Bullets[i] = nil
	}
	s.Bullets = kept
}

func (e *Engine) bulletHitsAsteroid(s *State, b *entity.Bullet) bool {
	for _, a := range s.Asteroids {
		if a.Destroyed() {
			continue
		}
		if !entity.CirclesOverlap(b.X, b.Y, b.Radius(), a.X, a.Y, a.Radius()) {
			continue
		}
		e.burst(s, b.X, b.Y, colorImpact, entity.ParticleImpact, 3)
		if a.Damage(b.Damage, b.OwnerID) {
			a.DestroyedAt = s.Clock
			e.burst(s, a.X, a.Y, colorExplosion, entity.ParticleExplosion, e.tuning.ExplosionParticles)
			e.emit(Sound{Name: SoundExplosion})
			e.emit(AsteroidDestroyed{AsteroidID: a.ID, DestroyerID: b.OwnerID})
		}
		return true
	}
	return false
}

func (e *Engine) bulletHitsShip(s *State, b *entity.Bullet, shipIDs []string) bool {
	for _, id := range shipIDs {
		ship := s.Ships[id]
		if !ship.Alive || ship.Invulnerable || ship.PlayerID == b.OwnerID {
			continue
		}
		if !entity.CirclesOverlap(b.X, b.Y, b.Radius(), ship.X, ship.Y, ship.Radius()) {
			continue
		}
		if ship.Local {
			e.HitLocalShip(s, b.OwnerID)
		} else {
			// The owner decides whether its ship was hit; here the bullet
			// just disappears.
			e.burst(s, b.X, b.Y, colorImpact, entity.ParticleImpact, 3)
		}
		return true
	}
	return false
}

func (e *Engine) collideLocalShip(s *State) {
	ship := s.LocalShip()
	if ship == nil || !ship.Alive || ship.Invulnerable {
		return
	}
	for _, a := range s.Asteroids {
		if a.Destroyed() {
			continue
		}
		if entity.CirclesOverlap(ship.X, ship.Y, ship.Radius(), a.X, a.Y, a.Radius()) {
			e.HitLocalShip(s, "")
			return
		}
	}
}

// expirePending drops asteroids destroyed locally whose broadcast never came.
func (e *Engine) expirePending(s *State) {
	kept := s.Asteroids[:0]
	for _, a := range s.Asteroids {
		if a.Destroyed() && s.Clock-a.DestroyedAt > e.tuning.DestroyGrace {
			continue
		}
		kept = append(kept, a)
	}
	s.Asteroids = kept
}

func (e *Engine) checkRoundOver(s *State) {
	if s.RoundOver {
		return
	}
	if s.FieldReady && s.AsteroidsLeft() == 0 {
		s.RoundOver = true
		e.emit(RoundOver{Cleared: true})
		return
	}
	if ship := s.LocalShip(); ship != nil && ship.Lives <= 0 {
		s.RoundOver = true
		e.emit(RoundOver{})
	}
}

func (e *Engine) stepParticles(s *State, dt float64) {
	kept := s.Particles[:0]
	for _, p := range s.Particles {
		p.Update(dt)
		if !p.Dead() {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(s.Particles); i++ {
		s.Particles[i] = nil
	}
	s.Particles = kept
}

func (e *Engine) burst(s *State, x, y float64, color string, kind entity.ParticleKind, n int) {
	for i := 0; i < n; i++ {
		s.Particles = append(s.Particles, entity.NewParticle(x, y, color, kind, e.rng))
	}
}

// ApplyIntent applies one local input event to the owned ship.
func (e *Engine) ApplyIntent(s *State, in Intent) {
	ship := s.LocalShip()
	if ship == nil {
		return
	}
	if in == ThrustOff {
		ship.Thrust = false
		return
	}
	if !s.Running || !ship.Alive {
		return
	}
	switch in {
	case RotateLeft:
		ship.Rotate(-1)
	case RotateRight:
		ship.Rotate(1)
	case ThrustOn:
		ship.Thrust = true
	case Fire:
		e.fire(s, ship)
	}
}

func (e *Engine) fire(s *State, ship *entity.Ship) {
	b := entity.NewBullet(entity.NewID(), ship.PlayerID, ship.X, ship.Y, ship.Angle)
	s.Bullets = append(s.Bullets, b)
	e.emit(BulletFired{Bullet: b})
	e.emit(Sound{Name: SoundShoot})
}

// AddRemoteBullet spawns a bullet fired by another player.
func (e *Engine) AddRemoteBullet(s *State, snap entity.BulletSnapshot) *entity.Bullet {
	b := entity.BulletFromSnapshot(snap)
	s.Bullets = append(s.Bullets, b)
	return b
}

// HitLocalShip takes a life from the owned ship. With lives left the ship
// drops out and respawns after RespawnDelay; with none left it stays dead
// until the next round.
func (e *Engine) HitLocalShip(s *State, killerID string) {
	ship := s.LocalShip()
	if ship == nil || !ship.Alive {
		return
	}

	ship.Lives--
	ship.Alive = false
	ship.Thrust = false
	e.burst(s, ship.X, ship.Y, colorShipHit, entity.ParticleExplosion, e.tuning.HitParticles)
	e.emit(Sound{Name: SoundExplosion})
	e.emit(ShipDestroyed{VictimID: ship.PlayerID, KillerID: killerID, LivesLeft: ship.Lives})

	if ship.Lives <= 0 {
		ship.Lives = 0
		return
	}
	e.sched.After(s.Clock, e.tuning.RespawnDelay, RefOf(ship), func(ship *entity.Ship) {
		e.Respawn(s, ship)
	})
}

// MirrorShipHit plays a remote ship's loss of a life on its mirror.
func (e *Engine) MirrorShipHit(s *State, victimID string, livesLeft int) bool {
	ship, ok := s.Ships[victimID]
	if !ok || ship.Local {
		return false
	}
	if ship.Alive {
		e.burst(s, ship.X, ship.Y, colorShipHit, entity.ParticleExplosion, e.tuning.HitParticles)
		e.emit(Sound{Name: SoundExplosion})
	}
	ship.Lives = livesLeft
	ship.Alive = false
	ship.Thrust = false
	return true
}

// ConfirmAsteroidDestroyed applies a destruction broadcast: the asteroid
// leaves the field whether or not it was already destroyed locally. Effects
// play only for an asteroid this client had not destroyed itself. It reports
// whether the asteroid was still present.
func (e *Engine) ConfirmAsteroidDestroyed(s *State, id, destroyerID string) bool {
	a := s.Asteroid(id)
	if a == nil {
		return false
	}
	if !a.Destroyed() {
		a.Damage(a.Health, destroyerID)
		e.burst(s, a.X, a.Y, colorExplosion, entity.ParticleExplosion, e.tuning.ExplosionParticles)
		e.emit(Sound{Name: SoundExplosion})
	}
	return s.RemoveAsteroid(id)
}

// Respawn puts a ship back in play at a safe position with zero velocity and
// a fresh invulnerability window.
func (e *Engine) Respawn(s *State, ship *entity.Ship) {
	x, y, _ := e.SafeSpawnPosition(s, ship.PlayerID)

	ship.Generation++
	ship.X, ship.Y = x, y
	ship.VX, ship.VY = 0, 0
	ship.Angle = entity.ShipSpawnAngle
	ship.Thrust = false
	ship.Alive = true
	ship.Invulnerable = true
	ship.InvulnerableUntil = s.Clock + e.tuning.InvulnerabilityDuration

	e.sched.After(s.Clock, e.tuning.InvulnerabilityDuration, RefOf(ship), func(ship *entity.Ship) {
		ship.Invulnerable = false
		ship.InvulnerableUntil = 0
	})
}

// SafeSpawnPosition samples positions inside the spawn margin until one is
// at least SafeSpawnDistance from every asteroid and every ship other than
// exclude. After MaxSpawnAttempts it settles for the sample with the most
// clearance and reports ok == false.
func (e *Engine) SafeSpawnPosition(s *State, exclude string) (x, y float64, ok bool) {
	margin := e.tuning.SpawnMargin
	bestClearance := -1.0

	for i := 0; i < max(1, e.tuning.MaxSpawnAttempts); i++ {
		cx := e.rng.Float64()*(entity.ScreenWidth-2*margin) + margin
		cy := e.rng.Float64()*(entity.ScreenHeight-2*margin) + margin

		c := clearance(s, cx, cy, exclude)
		if c >= e.tuning.SafeSpawnDistance {
			return cx, cy, true
		}
		if c > bestClearance {
			bestClearance, x, y = c, cx, cy
		}
	}
	return x, y, false
}

// clearance is the distance from (x, y) to the nearest asteroid or ship.
func clearance(s *State, x, y float64, exclude string) float64 {
	nearest := math.Inf(1)
	for _, a := range s.Asteroids {
		nearest = math.Min(nearest, entity.Distance(x, y, a.X, a.Y))
	}
	for id, ship := range s.Ships {
		if id == exclude {
			continue
		}
		nearest = math.Min(nearest, entity.Distance(x, y, ship.X, ship.Y))
	}
	return nearest
}

// SpawnAsteroidField replaces the field with a fresh set of asteroids, each
// kept MinAsteroidDistance from every ship and SafeSpawnDistance from the
// asteroids placed before it.
func (e *Engine) SpawnAsteroidField(s *State) []*entity.Asteroid {
	s.Asteroids = s.Asteroids[:0]
	for i := 0; i < e.tuning.AsteroidCount; i++ {
		x, y := e.asteroidPosition(s)
		s.Asteroids = append(s.Asteroids, entity.NewAsteroid(entity.NewID(), x, y, e.rng))
	}
	s.FieldReady = true
	return s.Asteroids
}

func (e *Engine) asteroidPosition(s *State) (float64, float64) {
	var bestX, bestY float64
	bestScore := math.Inf(-1)

	for i := 0; i < max(1, e.tuning.MaxSpawnAttempts); i++ {
		x := e.rng.Float64() * entity.ScreenWidth
		y := e.rng.Float64() * entity.ScreenHeight

		shipGap, rockGap := math.Inf(1), math.Inf(1)
		for _, ship := range s.Ships {
			shipGap = math.Min(shipGap, entity.Distance(x, y, ship.X, ship.Y))
		}
		for _, a := range s.Asteroids {
			rockGap = math.Min(rockGap, entity.Distance(x, y, a.X, a.Y))
		}
		if shipGap >= e.tuning.MinAsteroidDistance && rockGap >= e.tuning.SafeSpawnDistance {
			return x, y
		}
		// Shortfall against both limits; the least-bad sample wins.
		score := math.Min(shipGap-e.tuning.MinAsteroidDistance, rockGap-e.tuning.SafeSpawnDistance)
		if score > bestScore {
			bestScore, bestX, bestY = score, x, y
		}
	}
	return bestX, bestY
}

// MirrorAsteroidField replaces the field with the round host's asteroids.
// The host placed them around the owned ship's last known position, so the
// ship is moved if the field landed within SafeSpawnDistance of it.
func (e *Engine) MirrorAsteroidField(s *State, snaps []entity.AsteroidSnapshot) {
	s.Asteroids = s.Asteroids[:0]
	for _, snap := range snaps {
		s.Asteroids = append(s.Asteroids, entity.AsteroidFromSnapshot(snap))
	}
	s.FieldReady = true

	ship := s.LocalShip()
	if ship == nil || !ship.Alive || clearance(s, ship.X, ship.Y, ship.PlayerID) >= e.tuning.SafeSpawnDistance {
		return
	}
	ship.X, ship.Y, _ = e.SafeSpawnPosition(s, ship.PlayerID)
	ship.VX, ship.VY = 0, 0
}

// ResetRound clears the field for a new round and puts the owned ship back
// with full lives.
func (e *Engine) ResetRound(s *State, round int) {
	e.sched.Clear()

	s.Round = round
	s.RoundOver = false
	s.FieldReady = false
	s.Asteroids = nil
	s.Bullets = nil
	s.Particles = nil
	for id := range s.Scores {
		s.Scores[id] = 0
	}

	for _, ship := range s.Ships {
		ship.Lives = entity.InitialLives
		ship.Score = 0
		if !ship.Local {
			ship.Alive = true
			continue
		}
		e.Respawn(s, ship)
	}
}
