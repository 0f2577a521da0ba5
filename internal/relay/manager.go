package relay

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/rockrelay"
	"github.com/luciancaetano/rockrelay/internal/protocol"
)

// DefaultRoom is used when a connection does not ask for one.
const DefaultRoom = "main"

// RoomInfo describes an active room.
type RoomInfo struct {
	Code  string `json:"code"`
	Conns int    `json:"conns"`
}

type roomEntry struct {
	room  *Room
	conns int
}

// Manager routes connections to rooms by code. A room is started on first
// connect and stopped once its last connection is gone.
type Manager struct {
	codec protocol.Codec
	log   zerolog.Logger
	seed  uint64

	mu      sync.Mutex
	rooms   map[string]*roomEntry
	clients map[string]string // conn id -> room code
	created uint64
}

// NewManager creates a manager. A zero seed draws room seeds at random.
func NewManager(codec protocol.Codec, seed uint64, log zerolog.Logger) *Manager {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Manager{
		codec:   codec,
		log:     log,
		seed:    seed,
		rooms:   make(map[string]*roomEntry),
		clients: make(map[string]string),
	}
}

// Connect asks the room named code to admit conn and waits for the verdict.
// Only admitted connections are routed; a rejected one is forgotten. The
// pending join holds a reference so the room outlives the wait.
func (m *Manager) Connect(conn Conn, code string) error {
	if code == "" {
		code = DefaultRoom
	}

	m.mu.Lock()
	entry, ok := m.rooms[code]
	if !ok {
		m.created++
		rng := rand.New(rand.NewPCG(m.seed, m.created))
		entry = &roomEntry{room: NewRoom(code, m.codec, rng, m.log)}
		m.rooms[code] = entry
		go entry.room.Run()
		m.log.Debug().Str("room", code).Msg("room created")
	}
	entry.conns++
	m.mu.Unlock()

	reply := make(chan JoinResult, 1)
	res := JoinResult{PlayerID: conn.ID(), Err: ErrRoomClosed}
	if entry.room.Post(Join{Conn: conn, Reply: reply}) {
		select {
		case res = <-reply:
		case <-entry.room.done:
		}
	}

	m.mu.Lock()
	stop := false
	if res.Err == nil {
		m.clients[conn.ID()] = code
	} else {
		entry.conns--
		if entry.conns == 0 && m.rooms[code] == entry {
			delete(m.rooms, code)
			stop = true
		}
	}
	m.mu.Unlock()

	if stop {
		entry.room.Stop()
		m.log.Debug().Str("room", code).Msg("room removed")
	}
	return res.Err
}

// Deliver routes a client command to the sender's room.
func (m *Manager) Deliver(playerID string, command uint32, payload []byte) {
	room := m.roomOf(playerID)
	if room == nil {
		return
	}
	room.Post(Message{PlayerID: playerID, Command: command, Payload: payload})
}

// Disconnect posts a Leave and stops the room if it has no connections left.
func (m *Manager) Disconnect(playerID string) {
	m.mu.Lock()
	code, ok := m.clients[playerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, playerID)
	entry := m.rooms[code]
	entry.conns--
	empty := entry.conns == 0
	if empty {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if empty {
		entry.room.Stop()
		m.log.Debug().Str("room", code).Msg("room removed")
		return
	}
	entry.room.Post(Leave{PlayerID: playerID})
}

// Rooms lists active rooms sorted by code.
func (m *Manager) Rooms() []RoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for code, e := range m.rooms {
		out = append(out, RoomInfo{Code: code, Conns: e.conns})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Close stops every room.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := make([]*roomEntry, 0, len(m.rooms))
	for code, e := range m.rooms {
		entries = append(entries, e)
		delete(m.rooms, code)
	}
	clear(m.clients)
	m.mu.Unlock()

	for _, e := range entries {
		e.room.Stop()
	}
}

func (m *Manager) roomOf(playerID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.clients[playerID]
	if !ok {
		return nil
	}
	return m.rooms[code].room
}

// clientCommands are the commands a client may send.
var clientCommands = []uint32{
	rockrelay.CmdPlayerUpdate,
	rockrelay.CmdPlayerShoot,
	rockrelay.CmdAsteroidDestroyed,
	rockrelay.CmdShipDestroyed,
	rockrelay.CmdRequestRestart,
	rockrelay.CmdAsteroidsSpawned,
}

// Bind registers the manager's handlers on a server. Connect and Disconnect
// still have to be hooked into the server's connect callbacks.
func (m *Manager) Bind(ctx context.Context, srv rockrelay.WebsocketServer) error {
	for _, cmd := range clientCommands {
		err := srv.RegisterHandler(ctx, cmd, func(client rockrelay.Client, payload []byte) {
			m.Deliver(client.ID(), cmd, payload)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// OnConnect adapts Connect to the server callback, reading the room from
// the "room" query parameter.
func (m *Manager) OnConnect(client rockrelay.Client) {
	if err := m.Connect(client, client.Param("room")); err != nil {
		m.log.Debug().Err(err).Str("conn_id", client.ID()).Msg("join refused")
	}
}

// OnDisconnect adapts Disconnect to the server callback.
func (m *Manager) OnDisconnect(client rockrelay.Client, _ bool) {
	m.Disconnect(client.ID())
}
