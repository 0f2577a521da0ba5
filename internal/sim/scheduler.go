package sim

import (
	"sort"

	"github.com/luciancaetano/rockrelay/internal/entity"
)

// Ref is a weak reference to a ship: its id plus the generation it had when
// the reference was taken.
type Ref struct {
	ID  string
	Gen uint64
}

// RefOf takes a reference to the ship's current incarnation.
func RefOf(ship *entity.Ship) Ref {
	return Ref{ID: ship.PlayerID, Gen: ship.Generation}
}

type task struct {
	at  float64
	seq uint64
	ref Ref
	fn  func(*entity.Ship)
}

// Scheduler runs one-shot deferred tasks against ships on the simulation
// clock. A task whose ship is gone or has been respawned since the task was
// scheduled is dropped without running.
type Scheduler struct {
	tasks []task
	seq   uint64
}

// After schedules fn to run delay seconds after now.
func (sc *Scheduler) After(now, delay float64, ref Ref, fn func(*entity.Ship)) {
	sc.seq++
	sc.tasks = append(sc.tasks, task{at: now + delay, seq: sc.seq, ref: ref, fn: fn})
}

// Len returns the number of pending tasks.
func (sc *Scheduler) Len() int {
	return len(sc.tasks)
}

// Clear drops every pending task.
func (sc *Scheduler) Clear() {
	sc.tasks = nil
}

// Run fires every task due at or before now, in due order, and returns how
// many actually touched a ship.
func (sc *Scheduler) Run(s *State, now float64) int {
	if len(sc.tasks) == 0 {
		return 0
	}

	var due, pending []task
	for _, t := range sc.tasks {
		if t.at <= now {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	sc.tasks = pending

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})

	fired := 0
	for _, t := range due {
		ship, ok := s.Ships[t.ref.ID]
		if !ok || ship.Generation != t.ref.Gen {
			continue
		}
		t.fn(ship)
		fired++
	}
	return fired
}
