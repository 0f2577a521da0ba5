package netsync

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/entity"
	"github.com/luciancaetano/rockrelay/internal/protocol"
	"github.com/luciancaetano/rockrelay/internal/sim"
)

type sentFrame struct {
	cmd     uint32
	payload []byte
}

type recorder struct {
	frames []sentFrame
}

func (r *recorder) Send(cmd uint32, payload []byte) error {
	r.frames = append(r.frames, sentFrame{cmd, payload})
	return nil
}

func (r *recorder) count(cmd uint32) int {
	n := 0
	for _, f := range r.frames {
		if f.cmd == cmd {
			n++
		}
	}
	return n
}

func lastSent[T any](t *testing.T, r *recorder, cmd uint32) T {
	t.Helper()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].cmd == cmd {
			v, err := protocol.DecodePayload[T](protocol.JSON, r.frames[i].payload)
			if err != nil {
				t.Fatalf("decode %s: %v", rockrelay.CommandName(cmd), err)
			}
			return v
		}
	}
	t.Fatalf("%s was never sent", rockrelay.CommandName(cmd))
	var zero T
	return zero
}

func newTestSession(t *testing.T) (*Session, *recorder, *[]string) {
	t.Helper()
	var sounds []string
	s := New(Options{
		Codec:  protocol.JSON,
		Rand:   rand.New(rand.NewPCG(5, 6)),
		Sounds: SoundFunc(func(name string) { sounds = append(sounds, name) }),
	})
	rec := &recorder{}
	s.Attach(rec)
	return s, rec, &sounds
}

func feed(t *testing.T, s *Session, cmd uint32, v any) {
	t.Helper()
	b, err := protocol.JSON.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := s.HandleMessage(cmd, b); err != nil {
		t.Fatalf("HandleMessage(%s) error = %v", rockrelay.CommandName(cmd), err)
	}
}

var (
	recA = protocol.PlayerRecord{ID: "a", X: 100, Y: 100, Color: "#00ffff"}
	recB = protocol.PlayerRecord{ID: "b", X: 700, Y: 500, Color: "#ff00ff"}
)

// startRunning assigns local as one of a/b and starts round 1.
func startRunning(t *testing.T, local string) (*Session, *recorder, *[]string) {
	t.Helper()
	s, rec, sounds := newTestSession(t)
	feed(t, s, rockrelay.CmdPlayerAssigned, protocol.PlayerAssigned{
		PlayerID: local,
		Players:  []protocol.PlayerRecord{recA, recB},
	})
	feed(t, s, rockrelay.CmdGameStateUpdate, protocol.GameStateUpdate{
		Running: true,
		Round:   1,
		Players: []protocol.PlayerRecord{recA, recB},
	})
	return s, rec, sounds
}

// TestAssignmentBuildsRoster tests bootstrapping from player_assigned
func TestAssignmentBuildsRoster(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t)
	if s.Status() != StatusConnecting {
		t.Fatalf("initial status = %v", s.Status())
	}

	feed(t, s, rockrelay.CmdPlayerAssigned, protocol.PlayerAssigned{
		PlayerID: "b",
		Players:  []protocol.PlayerRecord{recA, recB},
	})

	if s.LocalID() != "b" || s.Status() != StatusWaiting || s.IsHost() {
		t.Errorf("local=%q status=%v host=%v", s.LocalID(), s.Status(), s.IsHost())
	}
	local := s.State().LocalShip()
	if local == nil || !local.Local || local.X != 700 {
		t.Fatalf("local ship = %+v", local)
	}
	mirror := s.State().Ships["a"]
	if mirror == nil || mirror.Local || s.remotes["a"] != remoteMirrored {
		t.Fatalf("mirror for a = %+v", mirror)
	}
}

// TestHostSharesAsteroidField tests field generation on round start
func TestHostSharesAsteroidField(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "a")

	if !s.IsHost() || s.Status() != StatusRunning {
		t.Fatalf("host=%v status=%v", s.IsHost(), s.Status())
	}
	msg := lastSent[protocol.AsteroidsSpawned](t, rec, rockrelay.CmdAsteroidsSpawned)
	if msg.Round != 1 || len(msg.Asteroids) != sim.DefaultTuning().AsteroidCount {
		t.Errorf("spawned = round %d, %d asteroids", msg.Round, len(msg.Asteroids))
	}
	if !s.State().FieldReady || len(s.State().Asteroids) != len(msg.Asteroids) {
		t.Error("host should hold the field it shared")
	}

	// A stale echo of a field must not replace the host's own.
	feed(t, s, rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: 1})
	if len(s.State().Asteroids) != len(msg.Asteroids) {
		t.Error("host replaced its field")
	}
}

// TestGuestMirrorsField tests the non-host path for the asteroid field
func TestGuestMirrorsField(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "b")
	if rec.count(rockrelay.CmdAsteroidsSpawned) != 0 || s.State().FieldReady {
		t.Fatal("guest should wait for the host's field")
	}

	field := []entity.AsteroidSnapshot{{ID: "r1", X: 10, Y: 10, Size: 30, Health: 100}, {ID: "r2", X: 400, Y: 50, Size: 25, Health: 100}}
	feed(t, s, rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: 2, Asteroids: field[:1]})
	if s.State().FieldReady {
		t.Fatal("field for another round was applied")
	}

	feed(t, s, rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: 1, Asteroids: field})
	if len(s.State().Asteroids) != 2 || s.State().Asteroid("r2") == nil {
		t.Errorf("asteroids = %d", len(s.State().Asteroids))
	}
}

// TestGuestShipClearOfSharedField tests that the guest's ship starts a safe distance from the host's field
func TestGuestShipClearOfSharedField(t *testing.T) {
	t.Parallel()

	safe := sim.DefaultTuning().SafeSpawnDistance
	roster := []protocol.PlayerRecord{recA, recB}

	for seed := range uint64(100) {
		host := New(Options{Rand: rand.New(rand.NewPCG(seed, 1))})
		guest := New(Options{Rand: rand.New(rand.NewPCG(seed, 2))})
		hostRec, guestRec := &recorder{}, &recorder{}
		host.Attach(hostRec)
		guest.Attach(guestRec)

		for local, s := range map[string]*Session{"a": host, "b": guest} {
			feed(t, s, rockrelay.CmdPlayerAssigned, protocol.PlayerAssigned{PlayerID: local, Players: roster})
			feed(t, s, rockrelay.CmdGameStateUpdate, protocol.GameStateUpdate{Running: true, Round: 1, Players: roster})
		}
		feed(t, guest, rockrelay.CmdAsteroidsSpawned, lastSent[protocol.AsteroidsSpawned](t, hostRec, rockrelay.CmdAsteroidsSpawned))
		guest.Tick(time.Unix(1000, 0), 0)

		ship := guest.State().LocalShip()
		for _, a := range guest.State().Asteroids {
			if d := entity.Distance(ship.X, ship.Y, a.X, a.Y); d < safe {
				t.Errorf("seed %d: guest ship %.1fpx from asteroid %s", seed, d, a.ID)
			}
		}
		upd := lastSent[entity.ShipSnapshot](t, guestRec, rockrelay.CmdPlayerUpdate)
		if upd.X != ship.X || upd.Y != ship.Y {
			t.Errorf("seed %d: first update at %.1f,%.1f, ship at %.1f,%.1f", seed, upd.X, upd.Y, ship.X, ship.Y)
		}
	}
}

// TestRemotePlayerLifecycle tests Unknown, Mirrored and Departed transitions
func TestRemotePlayerLifecycle(t *testing.T) {
	t.Parallel()

	s, _, _ := startRunning(t, "b")

	feed(t, s, rockrelay.CmdPlayerUpdate, entity.ShipSnapshot{PlayerID: "c", X: 50, Y: 60, Alive: true, Lives: 3})
	if ship := s.State().Ships["c"]; ship == nil || ship.X != 50 || s.remotes["c"] != remoteMirrored {
		t.Fatal("update from an unknown player should create a mirror")
	}

	feed(t, s, rockrelay.CmdPlayerUpdate, entity.ShipSnapshot{PlayerID: "a", X: 321, Y: 123, Alive: true, Lives: 2, Score: 200})
	if a := s.State().Ships["a"]; a.X != 321 || a.Lives != 2 || s.State().Scores["a"] != 200 {
		t.Errorf("mirror not overwritten: %+v", a)
	}

	feed(t, s, rockrelay.CmdPlayerDisconnected, protocol.PlayerDisconnected{PlayerID: "a"})
	if _, ok := s.State().Ships["a"]; ok || s.remotes["a"] != remoteDeparted {
		t.Fatal("departed player should be removed")
	}

	// In-flight messages about a departed player are stale.
	feed(t, s, rockrelay.CmdPlayerUpdate, entity.ShipSnapshot{PlayerID: "a", X: 1, Y: 1, Alive: true})
	feed(t, s, rockrelay.CmdPlayerJoined, recA)
	feed(t, s, rockrelay.CmdPlayerShoot, entity.BulletSnapshot{ID: "x", OwnerID: "a", X: 5, Y: 5})
	feed(t, s, rockrelay.CmdShipDestroyed, protocol.ShipDestroyed{VictimID: "a", LivesLeft: 1, Round: 1})
	if _, ok := s.State().Ships["a"]; ok {
		t.Error("stale message resurrected a departed player")
	}
	if len(s.State().Bullets) != 0 {
		t.Error("stale bullet was spawned")
	}
}

// TestDepartedPlayerScoreDropped tests that in-flight score broadcasts for a departed player are ignored
func TestDepartedPlayerScoreDropped(t *testing.T) {
	t.Parallel()

	s, _, _ := startRunning(t, "b")
	feed(t, s, rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: 1, Asteroids: []entity.AsteroidSnapshot{
		{ID: "r1", X: 10, Y: 10, Size: 30, Health: 100},
	}})
	feed(t, s, rockrelay.CmdAsteroidDestroyed, protocol.AsteroidDestroyed{AsteroidID: "x", PlayerID: "a", Score: 400, Round: 1})
	if s.State().Scores["a"] != 400 {
		t.Fatalf("score for a = %d before departure", s.State().Scores["a"])
	}

	feed(t, s, rockrelay.CmdPlayerDisconnected, protocol.PlayerDisconnected{PlayerID: "a"})
	if _, ok := s.State().Scores["a"]; ok {
		t.Error("departed player's score was kept")
	}

	feed(t, s, rockrelay.CmdAsteroidDestroyed, protocol.AsteroidDestroyed{AsteroidID: "r1", PlayerID: "a", Score: 500, Round: 1})
	feed(t, s, rockrelay.CmdShipDestroyed, protocol.ShipDestroyed{VictimID: "b", KillerID: "a", LivesLeft: 0, KillerScore: 900, Round: 1})

	if _, ok := s.State().Scores["a"]; ok {
		t.Errorf("scores after a departed = %v", s.State().Scores)
	}
	if s.State().Asteroid("r1") != nil {
		t.Error("destruction broadcast should still remove the asteroid")
	}
	if _, ok := s.Frame().Scores["a"]; ok {
		t.Error("departed player's score is still drawn")
	}
}

// TestOwnEchoesIgnored tests that messages about the local player do not touch it
func TestOwnEchoesIgnored(t *testing.T) {
	t.Parallel()

	s, _, _ := startRunning(t, "b")
	local := s.State().LocalShip()
	x, lives := local.X, local.Lives

	feed(t, s, rockrelay.CmdPlayerUpdate, entity.ShipSnapshot{PlayerID: "b", X: x + 100, Alive: false})
	feed(t, s, rockrelay.CmdShipDestroyed, protocol.ShipDestroyed{VictimID: "b", LivesLeft: 0, Round: 1})
	feed(t, s, rockrelay.CmdPlayerShoot, entity.BulletSnapshot{ID: "own", OwnerID: "b"})

	if local.X != x || !local.Alive || local.Lives != lives {
		t.Errorf("local ship changed by its own echo: %+v", local)
	}
	if len(s.State().Bullets) != 0 {
		t.Error("own bullet echo was spawned twice")
	}
}

// TestPlayerUpdatesAreRateLimited tests the outbound cadence of ship updates
func TestPlayerUpdatesAreRateLimited(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "b")
	start := time.Unix(1000, 0)

	for i := range 100 {
		s.Tick(start.Add(time.Duration(i)*4*time.Millisecond), 1.0/60)
	}

	n := rec.count(rockrelay.CmdPlayerUpdate)
	if n < 18 || n > 26 {
		t.Errorf("sent %d updates over 400ms, want about 25", n)
	}
	snap := lastSent[entity.ShipSnapshot](t, rec, rockrelay.CmdPlayerUpdate)
	if snap.PlayerID != "b" {
		t.Errorf("update player id = %q", snap.PlayerID)
	}
}

// TestNoUpdatesWhileDeadOrWaiting tests that a dead or paused ship is not broadcast
func TestNoUpdatesWhileDeadOrWaiting(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "b")
	s.State().LocalShip().Alive = false
	s.Tick(time.Unix(1000, 0), 1.0/60)
	if rec.count(rockrelay.CmdPlayerUpdate) != 0 {
		t.Error("dead ship sent an update")
	}

	feed(t, s, rockrelay.CmdGameStateUpdate, protocol.GameStateUpdate{Running: false, Round: 1, Players: []protocol.PlayerRecord{recB}})
	s.State().LocalShip().Alive = true
	s.Tick(time.Unix(1001, 0), 1.0/60)
	if rec.count(rockrelay.CmdPlayerUpdate) != 0 || s.Status() != StatusWaiting {
		t.Error("paused round sent an update")
	}
}

// TestFireIsSentImmediately tests that a shot goes out without waiting for a tick
func TestFireIsSentImmediately(t *testing.T) {
	t.Parallel()

	s, rec, sounds := startRunning(t, "b")

	s.Input(sim.Fire)
	if rec.count(rockrelay.CmdPlayerShoot) != 1 {
		t.Fatal("shot not sent")
	}
	shot := lastSent[entity.BulletSnapshot](t, rec, rockrelay.CmdPlayerShoot)
	if shot.OwnerID != "b" || shot.Lifetime != entity.BulletLifetime {
		t.Errorf("shot = %+v", shot)
	}
	if len(*sounds) != 1 || (*sounds)[0] != sim.SoundShoot {
		t.Errorf("sounds = %v", *sounds)
	}
}

// TestAsteroidDestroyedIsIdempotent tests applying the same broadcast twice
func TestAsteroidDestroyedIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _, sounds := startRunning(t, "b")
	feed(t, s, rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: 1, Asteroids: []entity.AsteroidSnapshot{
		{ID: "r1", X: 10, Y: 10, Size: 30, Health: 100},
		{ID: "r2", X: 400, Y: 50, Size: 25, Health: 100},
	}})

	msg := protocol.AsteroidDestroyed{AsteroidID: "r1", PlayerID: "a", Score: 100, Round: 1}
	feed(t, s, rockrelay.CmdAsteroidDestroyed, msg)
	feed(t, s, rockrelay.CmdAsteroidDestroyed, msg)

	if s.State().Asteroid("r1") != nil || len(s.State().Asteroids) != 1 {
		t.Error("asteroid not removed")
	}
	if s.State().Scores["a"] != 100 || s.State().Ships["a"].Score != 100 {
		t.Error("destroyer score not applied")
	}
	if len(*sounds) != 1 {
		t.Errorf("explosion played %d times, want 1", len(*sounds))
	}

	feed(t, s, rockrelay.CmdAsteroidDestroyed, protocol.AsteroidDestroyed{AsteroidID: "r2", PlayerID: "a", Score: 200, Round: 7})
	if s.State().Asteroid("r2") == nil {
		t.Error("broadcast from another round was applied")
	}
}

// TestRemoteShipHitOnMirror tests ship_destroyed for a mirrored player
func TestRemoteShipHitOnMirror(t *testing.T) {
	t.Parallel()

	s, _, _ := startRunning(t, "b")

	feed(t, s, rockrelay.CmdShipDestroyed, protocol.ShipDestroyed{VictimID: "a", KillerID: "b", LivesLeft: 0, KillerScore: 500, Round: 1})

	a := s.State().Ships["a"]
	if a.Alive || a.Lives != 0 {
		t.Errorf("mirror after hit = %+v", a)
	}
	if s.State().Scores["b"] != 500 || s.State().LocalShip().Score != 500 {
		t.Error("killer score not applied")
	}
	if f := s.Frame(); len(f.Ships) != 1 || f.Ships[0].PlayerID != "b" {
		t.Errorf("dead mirror should not be drawn, frame ships = %+v", f.Ships)
	}
	if _, ok := s.State().Ships["a"]; !ok {
		t.Error("dead player should stay in the roster")
	}
}

// TestLocalHitIsReported tests that a remote bullet hitting the owned ship is reported once
func TestLocalHitIsReported(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "b")
	local := s.State().LocalShip()
	local.Invulnerable = false

	feed(t, s, rockrelay.CmdPlayerShoot, entity.BulletSnapshot{
		ID: "hit", OwnerID: "a", X: local.X, Y: local.Y + entity.BulletSpeed, VY: -entity.BulletSpeed,
		Lifetime: entity.BulletLifetime, Damage: entity.BulletDamage,
	})
	s.Tick(time.Unix(1000, 0), 1.0/60)
	s.Tick(time.Unix(1001, 0), 1.0/60)

	if rec.count(rockrelay.CmdShipDestroyed) != 1 {
		t.Fatalf("ship_destroyed sent %d times", rec.count(rockrelay.CmdShipDestroyed))
	}
	msg := lastSent[protocol.ShipDestroyed](t, rec, rockrelay.CmdShipDestroyed)
	if msg.VictimID != "b" || msg.KillerID != "a" || msg.LivesLeft != entity.InitialLives-1 {
		t.Errorf("report = %+v", msg)
	}
	if local.Alive {
		t.Error("local ship should be down until respawn")
	}
}

// TestRestartResetsRound tests game_restart handling
func TestRestartResetsRound(t *testing.T) {
	t.Parallel()

	s, rec, _ := startRunning(t, "a")
	local := s.State().LocalShip()
	local.Lives = 1
	s.State().Scores["a"] = 900

	if err := s.RequestRestart(); err != nil {
		t.Fatalf("RequestRestart() error = %v", err)
	}
	if rec.count(rockrelay.CmdRequestRestart) != 1 {
		t.Error("restart request not sent")
	}

	feed(t, s, rockrelay.CmdGameRestart, protocol.GameRestart{Round: 2})
	if s.State().Round != 2 || local.Lives != entity.InitialLives || s.State().Scores["a"] != 0 {
		t.Errorf("round=%d lives=%d score=%d", s.State().Round, local.Lives, s.State().Scores["a"])
	}
	if msg := lastSent[protocol.AsteroidsSpawned](t, rec, rockrelay.CmdAsteroidsSpawned); msg.Round != 2 {
		t.Errorf("host should share a new field for round 2, got round %d", msg.Round)
	}
}

// TestConnectionOutcomes tests status after room_full and transport closes
func TestConnectionOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		roomFull bool
		code     int
		want     Status
	}{
		{"room full notice then close", true, websocket.CloseTryAgainLater, StatusRejected},
		{"close 1013 alone", false, websocket.CloseTryAgainLater, StatusRejected},
		{"normal close", false, websocket.CloseNormalClosure, StatusDisconnected},
		{"abnormal close", false, websocket.CloseAbnormalClosure, StatusDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _, _ := newTestSession(t)
			if tt.roomFull {
				s.Deliver(rockrelay.CmdRoomFull, []byte(`{"capacity":2}`))
			}
			s.Disconnected(tt.code, nil)
			s.Tick(time.Unix(1000, 0), 1.0/60)

			if s.Status() != tt.want {
				t.Errorf("status = %v, want %v", s.Status(), tt.want)
			}
			if err := s.RequestRestart(); err != ErrNotConnected {
				t.Errorf("RequestRestart() after close error = %v, want ErrNotConnected", err)
			}
		})
	}
}

// TestUnknownCommand tests that unknown commands are reported
func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t)
	if err := s.HandleMessage(0xFFFF, nil); err == nil {
		t.Error("expected error for unknown command")
	}
}
