package sim

import "github.com/luciancaetano/rockrelay/internal/entity"

// Sound names understood by the sound sink.
const (
	SoundShoot     = "shoot"
	SoundExplosion = "explosion"
)

// Event is something the engine did that someone outside it cares about:
// the sync layer turns some of them into messages, the sound sink plays others.
type Event interface {
	event()
}

// BulletFired is emitted when the local ship fires.
type BulletFired struct {
	Bullet *entity.Bullet
}

// AsteroidDestroyed is emitted when the local copy of an asteroid crosses
// the health threshold. DestroyerID is the owner of the bullet.
type AsteroidDestroyed struct {
	AsteroidID  string
	DestroyerID string
}

// ShipDestroyed is emitted when the locally owned ship loses a life.
type ShipDestroyed struct {
	VictimID  string
	KillerID  string
	LivesLeft int
}

// Sound asks the sound sink to play a named effect.
type Sound struct {
	Name string
}

// RoundOver is emitted once when the local round ends.
type RoundOver struct {
	Cleared bool // every asteroid destroyed, as opposed to lives exhausted
}

func (BulletFired) event()       {}
func (AsteroidDestroyed) event() {}
func (ShipDestroyed) event()     {}
func (Sound) event()             {}
func (RoundOver) event()         {}
