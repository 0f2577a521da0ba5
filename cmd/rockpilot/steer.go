package main

import (
	"math"

	"github.com/luciancaetano/rockrelay/internal/entity"
	"github.com/luciancaetano/rockrelay/internal/sim"
)

// steer returns -1, 0 or 1: the rotation that points the local ship at the
// nearest live asteroid.
func steer(s *sim.State) int {
	ship := s.LocalShip()
	if ship == nil {
		return 0
	}

	var target *entity.Asteroid
	best := math.Inf(1)
	for _, a := range s.Asteroids {
		if a.Destroyed() {
			continue
		}
		if d := entity.Distance(ship.X, ship.Y, a.X, a.Y); d < best {
			best, target = d, a
		}
	}
	if target == nil {
		return 0
	}

	// Angle 0 points up, matching how bullets are fired.
	want := math.Atan2(target.X-ship.X, -(target.Y - ship.Y))
	diff := math.Remainder(want-ship.Angle, 2*math.Pi)
	if math.Abs(diff) < entity.ShipRotationSpeed {
		return 0
	}
	if diff < 0 {
		return -1
	}
	return 1
}
