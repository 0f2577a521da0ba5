package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/entity"
	"github.com/luciancaetano/rockrelay/internal/protocol"
)

const (
	// Capacity is the number of players a room admits.
	Capacity = 2

	AsteroidScore   = 100
	PlayerKillScore = 500
)

// ErrRoomFull is reported to a Join whose room is at capacity.
var ErrRoomFull = errors.New(rockrelay.ErrRoomFull)

// ErrRoomClosed is reported when a room stops before answering a Join.
var ErrRoomClosed = errors.New("room closed")

var palette = []string{"#00ffff", "#ff00ff"}

type player struct {
	conn   Conn
	record protocol.PlayerRecord
}

type shipClaim struct {
	victim    string
	livesLeft int
}

// Room is a single game room. All state is owned by the Run goroutine and
// changed only in response to commands read from Inbox, one at a time.
//
// The room runs no physics. Destruction claims are trusted as sent: the first
// claim for an asteroid or a ship life in a round wins and later duplicates
// are dropped, but no claim is checked against positions.
type Room struct {
	Inbox chan any
	Code  string

	codec protocol.Codec
	log   zerolog.Logger
	rng   *rand.Rand

	players map[string]*player
	order   []string // join order; order[0] hosts the round
	round   int
	running bool

	asteroidClaims map[string]struct{}
	shipClaims     map[shipClaim]struct{}

	quit chan struct{}
	done chan struct{}
}

// NewRoom creates a room. Positions for new players are drawn from rng.
func NewRoom(code string, codec protocol.Codec, rng *rand.Rand, log zerolog.Logger) *Room {
	return &Room{
		Inbox:          make(chan any, 256),
		Code:           code,
		codec:          codec,
		log:            log.With().Str("room", code).Logger(),
		rng:            rng,
		players:        make(map[string]*player),
		asteroidClaims: make(map[string]struct{}),
		shipClaims:     make(map[shipClaim]struct{}),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Run handles commands until Stop is called.
func (r *Room) Run() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
		}
	}
}

// Stop ends Run and waits for it to return.
func (r *Room) Stop() {
	close(r.quit)
	<-r.done
}

// Post queues a command. It returns false if the room has stopped.
func (r *Room) Post(cmd any) bool {
	select {
	case r.Inbox <- cmd:
		return true
	case <-r.quit:
		return false
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		res := r.handleJoin(c.Conn)
		if c.Reply != nil {
			c.Reply <- res
		}
	case Leave:
		r.handleLeave(c.PlayerID)
	case Message:
		r.handleMessage(c)
	default:
		r.log.Warn().Str("type", fmt.Sprintf("%T", cmd)).Msg("unknown room command")
	}
}

func (r *Room) handleJoin(conn Conn) JoinResult {
	id := conn.ID()
	if len(r.players) >= Capacity {
		r.log.Info().Str("player_id", id).Msg("room full, rejecting")
		r.sendTo(conn, rockrelay.CmdRoomFull, protocol.RoomFull{Capacity: Capacity})
		conn.CloseWithCode(context.Background(), websocket.CloseTryAgainLater, rockrelay.ErrRoomFull)
		return JoinResult{PlayerID: id, Err: ErrRoomFull}
	}

	p := &player{
		conn: conn,
		record: protocol.PlayerRecord{
			ID:    id,
			X:     r.rng.Float64() * entity.ScreenWidth,
			Y:     r.rng.Float64() * entity.ScreenHeight,
			Color: r.freeColor(),
		},
	}
	r.players[id] = p
	r.order = append(r.order, id)
	r.log.Info().Str("player_id", id).Int("players", len(r.players)).Msg("player joined")

	r.sendTo(conn, rockrelay.CmdPlayerAssigned, protocol.PlayerAssigned{
		PlayerID: id,
		Round:    r.round,
		Running:  r.running,
		Players:  r.roster(),
	})
	r.broadcast(rockrelay.CmdPlayerJoined, p.record, id)

	if len(r.players) == Capacity {
		r.newRound()
		r.running = true
		r.broadcast(rockrelay.CmdGameStateUpdate, r.stateUpdate(), "")
	}
	return JoinResult{PlayerID: id}
}

func (r *Room) handleLeave(id string) {
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.log.Info().Str("player_id", id).Int("players", len(r.players)).Msg("player left")

	r.broadcast(rockrelay.CmdPlayerDisconnected, protocol.PlayerDisconnected{PlayerID: id}, "")
	if len(r.players) < Capacity {
		r.running = false
		r.broadcast(rockrelay.CmdGameStateUpdate, r.stateUpdate(), "")
	}
}

func (r *Room) handleMessage(m Message) {
	p, ok := r.players[m.PlayerID]
	if !ok {
		// Sender already left or was never admitted.
		return
	}
	log := r.log.With().Str("player_id", m.PlayerID).Str("command", rockrelay.CommandName(m.Command)).Logger()

	var err error
	switch m.Command {
	case rockrelay.CmdPlayerUpdate:
		err = r.onPlayerUpdate(p, m.Payload)
	case rockrelay.CmdPlayerShoot:
		err = r.onPlayerShoot(p, m.Payload)
	case rockrelay.CmdAsteroidDestroyed:
		err = r.onAsteroidDestroyed(p, m.Payload)
	case rockrelay.CmdShipDestroyed:
		err = r.onShipDestroyed(p, m.Payload)
	case rockrelay.CmdRequestRestart:
		r.onRequestRestart(p)
	case rockrelay.CmdAsteroidsSpawned:
		err = r.onAsteroidsSpawned(p, m.Payload)
	default:
		log.Debug().Msg(rockrelay.ErrUnknownCommand)
		return
	}
	if err != nil {
		log.Debug().Err(err).Msg("dropping message")
	}
}

// onPlayerUpdate merges the sender's ship onto its roster record and relays
// it. The record's score stays server-owned.
func (r *Room) onPlayerUpdate(p *player, payload []byte) error {
	snap, err := protocol.DecodePayload[entity.ShipSnapshot](r.codec, payload)
	if err != nil {
		return err
	}
	snap.PlayerID = p.record.ID
	snap.Score = p.record.Score
	p.record.X, p.record.Y = snap.X, snap.Y
	p.record.Ship = &snap
	r.broadcast(rockrelay.CmdPlayerUpdate, snap, p.record.ID)
	return nil
}

func (r *Room) onPlayerShoot(p *player, payload []byte) error {
	snap, err := protocol.DecodePayload[entity.BulletSnapshot](r.codec, payload)
	if err != nil {
		return err
	}
	snap.OwnerID = p.record.ID
	r.broadcast(rockrelay.CmdPlayerShoot, snap, p.record.ID)
	return nil
}

// onAsteroidDestroyed credits the first claim for an asteroid in the current
// round and broadcasts it to everyone, the claimant included.
func (r *Room) onAsteroidDestroyed(p *player, payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.AsteroidDestroyed](r.codec, payload)
	if err != nil {
		return err
	}
	if msg.AsteroidID == "" {
		return errors.New("missing asteroid id")
	}
	if _, dup := r.asteroidClaims[msg.AsteroidID]; dup {
		return nil
	}
	r.asteroidClaims[msg.AsteroidID] = struct{}{}

	// Credit the reported destroyer if they are in the room, else the sender.
	credited := p
	if other, ok := r.players[msg.PlayerID]; ok {
		credited = other
	}
	credited.record.Score += AsteroidScore

	r.broadcast(rockrelay.CmdAsteroidDestroyed, protocol.AsteroidDestroyed{
		AsteroidID: msg.AsteroidID,
		PlayerID:   credited.record.ID,
		Score:      credited.record.Score,
		Round:      r.round,
	}, "")
	return nil
}

// onShipDestroyed fans out the first report of a given life lost. A report
// with no lives left credits the killer.
func (r *Room) onShipDestroyed(p *player, payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.ShipDestroyed](r.codec, payload)
	if err != nil {
		return err
	}
	if msg.VictimID == "" {
		msg.VictimID = p.record.ID
	}
	if _, ok := r.players[msg.VictimID]; !ok {
		return fmt.Errorf("unknown victim %s", msg.VictimID)
	}

	claim := shipClaim{victim: msg.VictimID, livesLeft: msg.LivesLeft}
	if _, dup := r.shipClaims[claim]; dup {
		return nil
	}
	r.shipClaims[claim] = struct{}{}

	msg.Round = r.round
	msg.KillerScore = 0
	if killer, ok := r.players[msg.KillerID]; ok && msg.KillerID != msg.VictimID && msg.LivesLeft <= 0 {
		killer.record.Score += PlayerKillScore
		msg.KillerScore = killer.record.Score
	}
	r.broadcast(rockrelay.CmdShipDestroyed, msg, "")
	return nil
}

// onRequestRestart marks the sender ready. Once every player in the room is
// ready a single game_restart goes out and all ready flags are cleared.
func (r *Room) onRequestRestart(p *player) {
	p.record.Score = 0
	p.record.Ready = true

	for _, other := range r.players {
		if !other.record.Ready {
			return
		}
	}

	r.newRound()
	for _, other := range r.players {
		other.record.Ready = false
	}
	r.log.Info().Int("round", r.round).Msg("round restarted")
	r.broadcast(rockrelay.CmdGameRestart, protocol.GameRestart{Round: r.round}, "")
}

func (r *Room) onAsteroidsSpawned(p *player, payload []byte) error {
	msg, err := protocol.DecodePayload[protocol.AsteroidsSpawned](r.codec, payload)
	if err != nil {
		return err
	}
	msg.PlayerID = p.record.ID
	msg.Round = r.round
	r.broadcast(rockrelay.CmdAsteroidsSpawned, msg, p.record.ID)
	return nil
}

// newRound advances the round counter, which scopes destruction claims.
func (r *Room) newRound() {
	r.round++
	clear(r.asteroidClaims)
	clear(r.shipClaims)
}

func (r *Room) freeColor() string {
	for _, c := range palette {
		taken := false
		for _, p := range r.players {
			if p.record.Color == c {
				taken = true
				break
			}
		}
		if !taken {
			return c
		}
	}
	return "#ffffff"
}

// roster lists players in join order.
func (r *Room) roster() []protocol.PlayerRecord {
	out := make([]protocol.PlayerRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].record)
	}
	return out
}

func (r *Room) stateUpdate() protocol.GameStateUpdate {
	return protocol.GameStateUpdate{Running: r.running, Round: r.round, Players: r.roster()}
}

func (r *Room) sendTo(conn Conn, cmd uint32, v any) {
	b, err := r.codec.Marshal(v)
	if err != nil {
		r.log.Error().Err(err).Str("command", rockrelay.CommandName(cmd)).Msg(rockrelay.ErrFailedToEncode)
		return
	}
	if err := conn.Send(context.Background(), cmd, b); err != nil {
		r.log.Debug().Err(err).Str("player_id", conn.ID()).Str("command", rockrelay.CommandName(cmd)).Msg("send failed")
	}
}

// broadcast encodes v once and sends it to every player except skip.
func (r *Room) broadcast(cmd uint32, v any, skip string) {
	b, err := r.codec.Marshal(v)
	if err != nil {
		r.log.Error().Err(err).Str("command", rockrelay.CommandName(cmd)).Msg(rockrelay.ErrFailedToEncode)
		return
	}
	for _, id := range r.order {
		if id == skip {
			continue
		}
		if err := r.players[id].conn.Send(context.Background(), cmd, b); err != nil {
			r.log.Debug().Err(err).Str("player_id", id).Str("command", rockrelay.CommandName(cmd)).Msg("send failed")
		}
	}
}
