package sim

import (
	"sort"

	"github.com/luciancaetano/rockrelay/internal/entity"
)

// State is everything one client simulates: its own ship, mirrors of remote
// ships, the shared asteroid field, bullets and particles.
type State struct {
	LocalID   string
	Ships     map[string]*entity.Ship
	Asteroids []*entity.Asteroid
	Bullets   []*entity.Bullet
	Particles []*entity.Particle
	Scores    map[string]int

	Running bool
	Round   int
	// FieldReady is set once the round's asteroid field exists locally,
	// either generated here or mirrored from the round host.
	FieldReady bool
	RoundOver  bool

	// Clock is the simulation time in seconds.
	Clock float64
}

func NewState(localID string) *State {
	return &State{
		LocalID: localID,
		Ships:   make(map[string]*entity.Ship),
		Scores:  make(map[string]int),
	}
}

// LocalShip returns the ship this client owns, or nil before assignment.
func (s *State) LocalShip() *entity.Ship {
	if s.LocalID == "" {
		return nil
	}
	return s.Ships[s.LocalID]
}

// ShipIDs returns ship ids in a stable order.
func (s *State) ShipIDs() []string {
	ids := make([]string, 0, len(s.Ships))
	for id := range s.Ships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Asteroid looks up an asteroid by id.
func (s *State) Asteroid(id string) *entity.Asteroid {
	for _, a := range s.Asteroids {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// RemoveAsteroid drops an asteroid from the field and reports whether it was present.
func (s *State) RemoveAsteroid(id string) bool {
	for i, a := range s.Asteroids {
		if a.ID == id {
			s.Asteroids = append(s.Asteroids[:i], s.Asteroids[i+1:]...)
			return true
		}
	}
	return false
}

// AsteroidsLeft counts asteroids nobody has destroyed yet.
func (s *State) AsteroidsLeft() int {
	n := 0
	for _, a := range s.Asteroids {
		if !a.Destroyed() {
			n++
		}
	}
	return n
}

// Frame is what a renderer needs to draw one frame.
type Frame struct {
	LocalID       string
	Running       bool
	RoundOver     bool
	Round         int
	AsteroidsLeft int
	Ships         []entity.ShipSnapshot
	Asteroids     []entity.AsteroidSnapshot
	Bullets       []entity.BulletSnapshot
	Particles     []entity.ParticleSnapshot
	Scores        map[string]int
}

// Frame snapshots the drawable state. Dead ships and asteroids pending a
// destruction broadcast are left out.
func (s *State) Frame() Frame {
	f := Frame{
		LocalID:       s.LocalID,
		Running:       s.Running,
		RoundOver:     s.RoundOver,
		Round:         s.Round,
		AsteroidsLeft: s.AsteroidsLeft(),
		Scores:        make(map[string]int, len(s.Scores)),
	}
	for _, id := range s.ShipIDs() {
		if ship := s.Ships[id]; ship.Alive {
			f.Ships = append(f.Ships, ship.Snapshot())
		}
	}
	for _, a := range s.Asteroids {
		if !a.Destroyed() {
			f.Asteroids = append(f.Asteroids, a.Snapshot())
		}
	}
	for _, b := range s.Bullets {
		f.Bullets = append(f.Bullets, b.Snapshot())
	}
	for _, p := range s.Particles {
		f.Particles = append(f.Particles, p.Snapshot())
	}
	for id, score := range s.Scores {
		f.Scores[id] = score
	}
	return f
}
