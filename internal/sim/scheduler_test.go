package sim

import (
	"testing"

	"github.com/luciancaetano/rockrelay/internal/entity"
)

// TestSchedulerRunsDueTasksInOrder tests ordering and due-time filtering
func TestSchedulerRunsDueTasksInOrder(t *testing.T) {
	t.Parallel()

	s := NewState("me")
	ship := entity.NewShip("me", 0, 0, "", true)
	s.Ships["me"] = ship

	var sc Scheduler
	var order []int
	sc.After(0, 2, RefOf(ship), func(*entity.Ship) { order = append(order, 2) })
	sc.After(0, 1, RefOf(ship), func(*entity.Ship) { order = append(order, 1) })
	sc.After(0, 5, RefOf(ship), func(*entity.Ship) { order = append(order, 5) })

	if n := sc.Run(s, 3); n != 2 {
		t.Fatalf("Run fired %d tasks, want 2", n)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
	if sc.Len() != 1 {
		t.Errorf("Len = %d, want 1", sc.Len())
	}
}

// TestSchedulerDepartedShip tests that a timer for a ship that left fires harmlessly
func TestSchedulerDepartedShip(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	s := newRunningState("me")
	mirror := entity.NewShip("other", 300, 300, "", false)
	mirror.Invulnerable = true
	s.Ships["other"] = mirror

	touched := false
	e.Scheduler().After(s.Clock, 3, RefOf(mirror), func(ship *entity.Ship) {
		touched = true
		ship.Invulnerable = false
	})

	// The player disconnects mid-countdown.
	delete(s.Ships, "other")

	e.Step(s, 3.5)

	if touched {
		t.Error("timer mutated a departed ship")
	}
	if !mirror.Invulnerable {
		t.Error("departed ship's state changed")
	}
	if e.Scheduler().Len() != 0 {
		t.Error("stale task should be discarded")
	}
}

// TestSchedulerSupersededGeneration tests that a task for an earlier incarnation is dropped
func TestSchedulerSupersededGeneration(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	s := newRunningState("me")
	ship := s.Ships["me"]

	// First respawn schedules an invulnerability clear for generation 1.
	e.Respawn(s, ship)
	e.Step(s, 2)
	// Second respawn supersedes it; the old clear must not cut the new window short.
	e.Respawn(s, ship)
	e.Step(s, 1.5)

	if !ship.Invulnerable {
		t.Error("stale timer cleared the new invulnerability window")
	}
	e.Step(s, 2)
	if ship.Invulnerable {
		t.Error("current timer did not clear invulnerability")
	}
}
