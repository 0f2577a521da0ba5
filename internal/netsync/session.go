package netsync

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/entity"
	"github.com/luciancaetano/rockrelay/internal/protocol"
	"github.com/luciancaetano/rockrelay/internal/sim"
)

// DefaultUpdateInterval caps owned-ship updates near 60 per second.
const DefaultUpdateInterval = 16 * time.Millisecond

// ErrNotConnected is returned when sending before a Sender is attached.
var ErrNotConnected = errors.New("not connected")

// Sender delivers a command to the relay. *websocket.Peer satisfies it.
type Sender interface {
	Send(command uint32, payload []byte) error
}

// SoundSink plays named sound effects.
type SoundSink interface {
	Play(name string)
}

// SoundFunc adapts a function to SoundSink.
type SoundFunc func(name string)

func (f SoundFunc) Play(name string) { f(name) }

type Options struct {
	Codec          protocol.Codec
	Tuning         sim.Tuning
	Rand           *rand.Rand
	Sounds         SoundSink
	Logger         *zerolog.Logger
	UpdateInterval time.Duration
}

type inbound struct {
	command uint32
	payload []byte
	// closed marks the end of the connection; code is the close code.
	closed bool
	code   int
}

// Session is one client's view of a room. It owns the local simulation and
// is driven from a single goroutine through Tick, Input and RequestRestart.
// Transport callbacks only queue frames with Deliver and Disconnected; the
// frames are applied at the start of the next Tick.
type Session struct {
	codec   protocol.Codec
	log     zerolog.Logger
	sounds  SoundSink
	engine  *sim.Engine
	state   *sim.State
	limiter *rate.Limiter
	sender  Sender

	inbox   chan inbound
	remotes map[string]remoteState
	roster  []string // current players in join order; roster[0] hosts the round
	status  Status

	handlers map[uint32]func(payload []byte) error
}

func New(opts Options) *Session {
	if opts.Codec == nil {
		opts.Codec = protocol.JSON
	}
	if opts.Tuning == (sim.Tuning{}) {
		opts.Tuning = sim.DefaultTuning()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	s := &Session{
		codec:   opts.Codec,
		log:     log.With().Str("component", "session").Logger(),
		sounds:  opts.Sounds,
		engine:  sim.NewEngine(opts.Tuning, opts.Rand),
		state:   sim.NewState(""),
		limiter: rate.NewLimiter(rate.Every(opts.UpdateInterval), 1),
		inbox:   make(chan inbound, 256),
		remotes: make(map[string]remoteState),
	}
	s.handlers = map[uint32]func([]byte) error{
		rockrelay.CmdRoomFull:           s.onRoomFull,
		rockrelay.CmdPlayerAssigned:     s.onPlayerAssigned,
		rockrelay.CmdPlayerJoined:       s.onPlayerJoined,
		rockrelay.CmdPlayerUpdate:       s.onPlayerUpdate,
		rockrelay.CmdPlayerShoot:        s.onPlayerShoot,
		rockrelay.CmdAsteroidDestroyed:  s.onAsteroidDestroyed,
		rockrelay.CmdShipDestroyed:      s.onShipDestroyed,
		rockrelay.CmdPlayerDisconnected: s.onPlayerDisconnected,
		rockrelay.CmdGameRestart:        s.onGameRestart,
		rockrelay.CmdGameStateUpdate:    s.onGameStateUpdate,
		rockrelay.CmdAsteroidsSpawned:   s.onAsteroidsSpawned,
	}
	return s
}

// Attach sets the connection used for outbound messages.
func (s *Session) Attach(sender Sender) {
	s.sender = sender
}

// Deliver queues an inbound frame. Safe to call from the transport goroutine.
func (s *Session) Deliver(command uint32, payload []byte) {
	s.inbox <- inbound{command: command, payload: payload}
}

// Disconnected queues the end of the connection.
func (s *Session) Disconnected(code int, _ error) {
	s.inbox <- inbound{closed: true, code: code}
}

// State returns the simulation state. Only the driving goroutine may use it.
func (s *Session) State() *sim.State {
	return s.state
}

// Frame returns what a renderer needs for the current frame.
func (s *Session) Frame() sim.Frame {
	return s.state.Frame()
}

func (s *Session) Status() Status {
	return s.status
}

// LocalID is the player id assigned by the relay, or "" before assignment.
func (s *Session) LocalID() string {
	return s.state.LocalID
}

// IsHost reports whether this client generates the round's asteroid field.
func (s *Session) IsHost() bool {
	return s.state.LocalID != "" && len(s.roster) > 0 && s.roster[0] == s.state.LocalID
}

// Tick applies queued frames, advances the simulation by dt seconds and
// sends whatever the frame produced. now drives the update rate limiter.
func (s *Session) Tick(now time.Time, dt float64) {
	s.drain()

	s.engine.Step(s.state, dt)
	s.flushEvents()

	ship := s.state.LocalShip()
	if ship == nil || !ship.Alive || !s.state.Running {
		return
	}
	if s.limiter.AllowN(now, 1) {
		s.send(rockrelay.CmdPlayerUpdate, ship.Snapshot())
	}
}

// Input applies a local intent. A shot goes out immediately.
func (s *Session) Input(in sim.Intent) {
	s.engine.ApplyIntent(s.state, in)
	s.flushEvents()
}

// RequestRestart tells the relay this player is ready for another round.
func (s *Session) RequestRestart() error {
	return s.send(rockrelay.CmdRequestRestart, protocol.RequestRestart{})
}

func (s *Session) drain() {
	for {
		select {
		case in := <-s.inbox:
			if in.closed {
				s.onClosed(in.code)
				continue
			}
			if err := s.HandleMessage(in.command, in.payload); err != nil {
				s.log.Debug().Err(err).Str("command", rockrelay.CommandName(in.command)).Msg("dropping message")
			}
		default:
			return
		}
	}
}

// HandleMessage applies one inbound command immediately.
func (s *Session) HandleMessage(command uint32, payload []byte) error {
	handler, ok := s.handlers[command]
	if !ok {
		return fmt.Errorf("%s: %s", rockrelay.ErrUnknownCommand, rockrelay.CommandName(command))
	}
	return handler(payload)
}

func (s *Session) flushEvents() {
	for _, ev := range s.engine.Drain() {
		switch e := ev.(type) {
		case sim.BulletFired:
			s.send(rockrelay.CmdPlayerShoot, e.Bullet.Snapshot())
		case sim.AsteroidDestroyed:
			s.send(rockrelay.CmdAsteroidDestroyed, protocol.AsteroidDestroyed{
				AsteroidID: e.AsteroidID,
				PlayerID:   e.DestroyerID,
			})
		case sim.ShipDestroyed:
			s.send(rockrelay.CmdShipDestroyed, protocol.ShipDestroyed{
				VictimID:  e.VictimID,
				KillerID:  e.KillerID,
				LivesLeft: e.LivesLeft,
			})
		case sim.Sound:
			if s.sounds != nil {
				s.sounds.Play(e.Name)
			}
		case sim.RoundOver:
			s.log.Info().Bool("cleared", e.Cleared).Int("round", s.state.Round).Msg("round over")
		}
	}
}

// send encodes and sends one message. Failures are logged and not retried.
func (s *Session) send(command uint32, v any) error {
	if s.sender == nil {
		return ErrNotConnected
	}
	b, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", rockrelay.ErrFailedToEncode, err)
	}
	if err := s.sender.Send(command, b); err != nil {
		s.log.Warn().Err(err).Str("command", rockrelay.CommandName(command)).Msg("send failed")
		return err
	}
	return nil
}

func (s *Session) onClosed(code int) {
	if code == websocket.CloseTryAgainLater {
		s.status = StatusRejected
	} else if s.status != StatusRejected {
		s.status = StatusDisconnected
	}
	s.state.Running = false
	s.sender = nil
	s.log.Info().Int("code", code).Str("status", s.status.String()).Msg("connection closed")
}

func (s *Session) onRoomFull(_ []byte) error {
	s.status = StatusRejected
	return nil
}

func (s *Session) onPlayerAssigned(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.PlayerAssigned](s.codec, payload)
	if err != nil {
		return err
	}
	s.state = sim.NewState(msg.PlayerID)
	s.state.Round = msg.Round
	s.remotes = make(map[string]remoteState)
	s.roster = s.roster[:0]

	for _, rec := range msg.Players {
		s.roster = append(s.roster, rec.ID)
		s.state.Scores[rec.ID] = rec.Score
		if rec.ID == msg.PlayerID {
			s.state.Ships[rec.ID] = entity.NewShip(rec.ID, rec.X, rec.Y, rec.Color, true)
			continue
		}
		s.mirror(rec)
	}
	s.log = s.log.With().Str("player_id", msg.PlayerID).Logger()
	s.log.Info().Int("players", len(msg.Players)).Msg("assigned")

	s.setRunning(msg.Running, msg.Round)
	return nil
}

func (s *Session) onPlayerJoined(payload []byte) error {
	rec, err := protocol.DecodePayload[protocol.PlayerRecord](s.codec, payload)
	if err != nil {
		return err
	}
	if rec.ID == s.state.LocalID || s.remotes[rec.ID] == remoteDeparted {
		return nil
	}
	if !slices.Contains(s.roster, rec.ID) {
		s.roster = append(s.roster, rec.ID)
	}
	s.state.Scores[rec.ID] = rec.Score
	s.mirror(rec)
	return nil
}

// mirror moves a remote player from Unknown to Mirrored, creating its ship.
// Records for departed players are ignored.
func (s *Session) mirror(rec protocol.PlayerRecord) *entity.Ship {
	switch s.remotes[rec.ID] {
	case remoteDeparted:
		return nil
	case remoteMirrored:
		return s.state.Ships[rec.ID]
	}
	ship := entity.NewShip(rec.ID, rec.X, rec.Y, rec.Color, false)
	if rec.Ship != nil {
		ship.ApplySnapshot(*rec.Ship)
	}
	s.state.Ships[rec.ID] = ship
	s.remotes[rec.ID] = remoteMirrored
	return ship
}

func (s *Session) onPlayerUpdate(payload []byte) error {
	snap, err := protocol.DecodePayload[entity.ShipSnapshot](s.codec, payload)
	if err != nil {
		return err
	}
	if snap.PlayerID == "" || snap.PlayerID == s.state.LocalID {
		return nil
	}
	ship := s.mirror(protocol.PlayerRecord{ID: snap.PlayerID, X: snap.X, Y: snap.Y, Color: snap.Color})
	if ship == nil {
		return nil
	}
	if err := ship.ApplySnapshot(snap); err != nil {
		return err
	}
	s.state.Scores[snap.PlayerID] = snap.Score
	return nil
}

func (s *Session) onPlayerShoot(payload []byte) error {
	snap, err := protocol.DecodePayload[entity.BulletSnapshot](s.codec, payload)
	if err != nil {
		return err
	}
	if snap.OwnerID == s.state.LocalID || s.remotes[snap.OwnerID] == remoteDeparted || !s.state.Running {
		return nil
	}
	s.engine.AddRemoteBullet(s.state, snap)
	if s.sounds != nil {
		s.sounds.Play(sim.SoundShoot)
	}
	return nil
}

// onAsteroidDestroyed applies the relay's verdict. It is idempotent: the
// claimant's own broadcast arrives here too.
func (s *Session) onAsteroidDestroyed(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.AsteroidDestroyed](s.codec, payload)
	if err != nil {
		return err
	}
	if msg.Round != 0 && msg.Round != s.state.Round {
		return nil
	}
	s.engine.ConfirmAsteroidDestroyed(s.state, msg.AsteroidID, msg.PlayerID)
	s.setScore(msg.PlayerID, msg.Score)
	s.flushEvents()
	return nil
}

func (s *Session) onShipDestroyed(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.ShipDestroyed](s.codec, payload)
	if err != nil {
		return err
	}
	if msg.Round != 0 && msg.Round != s.state.Round {
		return nil
	}
	if msg.KillerID != "" && msg.KillerScore > 0 {
		s.setScore(msg.KillerID, msg.KillerScore)
	}
	// The owner already played its own loss locally.
	if msg.VictimID == s.state.LocalID || s.remotes[msg.VictimID] != remoteMirrored {
		return nil
	}
	s.engine.MirrorShipHit(s.state, msg.VictimID, msg.LivesLeft)
	s.flushEvents()
	return nil
}

func (s *Session) onPlayerDisconnected(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.PlayerDisconnected](s.codec, payload)
	if err != nil {
		return err
	}
	if msg.PlayerID == "" || msg.PlayerID == s.state.LocalID {
		return nil
	}
	s.remotes[msg.PlayerID] = remoteDeparted
	delete(s.state.Ships, msg.PlayerID)
	delete(s.state.Scores, msg.PlayerID)
	s.roster = slices.DeleteFunc(s.roster, func(id string) bool { return id == msg.PlayerID })
	s.log.Info().Str("departed", msg.PlayerID).Msg("player left")
	return nil
}

func (s *Session) onGameRestart(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.GameRestart](s.codec, payload)
	if err != nil {
		return err
	}
	s.startRound(msg.Round)
	return nil
}

func (s *Session) onGameStateUpdate(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.GameStateUpdate](s.codec, payload)
	if err != nil {
		return err
	}
	s.roster = s.roster[:0]
	for _, rec := range msg.Players {
		s.roster = append(s.roster, rec.ID)
		s.state.Scores[rec.ID] = rec.Score
		if rec.ID != s.state.LocalID {
			s.mirror(rec)
		}
	}
	s.setRunning(msg.Running, msg.Round)
	return nil
}

func (s *Session) onAsteroidsSpawned(payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.AsteroidsSpawned](s.codec, payload)
	if err != nil {
		return err
	}
	if msg.Round != s.state.Round || s.IsHost() {
		return nil
	}
	s.engine.MirrorAsteroidField(s.state, msg.Asteroids)
	return nil
}

// setRunning applies a run flag and round from the relay. A new running
// round resets the local simulation.
func (s *Session) setRunning(running bool, round int) {
	wasRunning := s.state.Running
	if running && (!wasRunning || round != s.state.Round) {
		s.state.Running = true
		s.startRound(round)
	}
	s.state.Running = running
	s.state.Round = round
	if running {
		s.status = StatusRunning
	} else {
		s.status = StatusWaiting
	}
}

// startRound resets the simulation; the round host then creates and shares
// the asteroid field.
func (s *Session) startRound(round int) {
	s.engine.ResetRound(s.state, round)
	if !s.state.Running || !s.IsHost() {
		return
	}
	field := s.engine.SpawnAsteroidField(s.state)
	snaps := make([]entity.AsteroidSnapshot, 0, len(field))
	for _, a := range field {
		snaps = append(snaps, a.Snapshot())
	}
	s.send(rockrelay.CmdAsteroidsSpawned, protocol.AsteroidsSpawned{Round: round, Asteroids: snaps})
}

// setScore applies a score from a relay broadcast. Broadcasts still in
// flight for a departed player are dropped.
func (s *Session) setScore(playerID string, score int) {
	if playerID == "" || s.remotes[playerID] == remoteDeparted {
		return
	}
	s.state.Scores[playerID] = score
	if ship, ok := s.state.Ships[playerID]; ok {
		ship.Score = score
	}
}
