package lobby

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/pkg/types"
)

const DefaultGameType = "card-game"

// Manager owns the room registry and routes lobby commands. It holds its
// registry lock only around map access, never while calling into a room, so
// the room -> registry lock order used by destroy callbacks cannot cycle.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	conns    *conn.Manager
	games    *game.Registry
	timeouts Timeouts
	maxRooms int
	log      *zap.Logger
}

func NewManager(conns *conn.Manager, games *game.Registry, timeouts Timeouts, maxRooms int, log *zap.Logger) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		conns:    conns,
		games:    games,
		timeouts: timeouts,
		maxRooms: maxRooms,
		log:      log,
	}
}

func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// CreateRoom makes a room for the given game type and seats the creator as
// host.
func (m *Manager) CreateRoom(c *conn.Connection, playerName, gameType string) {
	if c.Seated() {
		m.sendError(c, types.ErrInvalidAction, "Already in a room")
		return
	}
	if playerName == "" {
		m.sendError(c, types.ErrInvalidMessage, "Player name is required")
		return
	}
	if gameType == "" {
		gameType = DefaultGameType
	}
	adapter, ok := m.games.Get(gameType)
	if !ok {
		m.sendError(c, types.ErrInvalidMessage, "Unknown game type")
		return
	}

	m.mu.Lock()
	if len(m.rooms) >= m.maxRooms {
		m.mu.Unlock()
		m.sendError(c, types.ErrRoomFull, "Server room capacity reached")
		return
	}
	code, err := generateCode(func(code string) bool {
		_, taken := m.rooms[code]
		return taken
	})
	if err != nil {
		// 31^4 codes against <=100 rooms; reaching this means the RNG broke
		panic(err)
	}
	room := NewRoom(code, adapter, m.timeouts, m.log, m.onRoomDestroyed)
	m.rooms[code] = room
	m.mu.Unlock()

	playerID, err := room.AddPlayer(playerName, c.SessionID)
	if err != nil {
		room.Destroy("creator could not be seated")
		m.sendError(c, types.ErrInvalidAction, err.Error())
		return
	}
	c.SetSeat(code, playerID, playerName)

	m.log.Info("room created",
		zap.String("roomCode", code),
		zap.String("gameType", gameType),
		zap.String("sessionId", c.SessionID))
	m.conns.Deliver(c.SessionID, types.RoomCreated{
		Type: "ROOM_CREATED", RoomCode: code, PlayerID: playerID, GameType: gameType,
	})
}

// JoinRoom seats a player in an existing room by code.
func (m *Manager) JoinRoom(c *conn.Connection, playerName, roomCode string) {
	if c.Seated() {
		m.sendError(c, types.ErrInvalidAction, "Already in a room")
		return
	}
	if playerName == "" {
		m.sendError(c, types.ErrInvalidMessage, "Player name is required")
		return
	}
	room := m.room(roomCode)
	if room == nil {
		m.sendError(c, types.ErrRoomNotFound, "Room not found")
		return
	}

	playerID, err := room.AddPlayer(playerName, c.SessionID)
	switch {
	case errors.Is(err, ErrRoomFull):
		m.sendError(c, types.ErrRoomFull, "Room is full")
		return
	case errors.Is(err, ErrNameTaken):
		m.sendError(c, types.ErrNameTaken, "Name already taken in this room")
		return
	case errors.Is(err, ErrAlreadyStarted):
		m.sendError(c, types.ErrInvalidAction, "Game already in progress")
		return
	case errors.Is(err, ErrRoomClosed):
		m.sendError(c, types.ErrRoomNotFound, "Room not found")
		return
	case err != nil:
		m.sendError(c, types.ErrInvalidAction, err.Error())
		return
	}
	c.SetSeat(room.Code(), playerID, playerName)

	players := room.Players()
	m.broadcastExcept(room, c.SessionID, types.PlayerJoined{
		Type: "PLAYER_JOINED",
		Player: types.LobbyPlayer{ID: playerID, Name: playerName, Connected: true},
	})
	m.conns.Deliver(c.SessionID, types.RoomJoined{
		Type: "ROOM_JOINED", RoomCode: room.Code(), PlayerID: playerID,
		Players: players, GameType: room.GameType(),
	})
}

// LeaveRoom unseats the player. Mid-game this plays like a disconnect: the
// seat is gone but the game keeps running with auto-play.
func (m *Manager) LeaveRoom(c *conn.Connection) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		m.sendError(c, types.ErrNotInRoom, "Not in a room")
		return
	}

	if inst, started := room.Instance(); started {
		inst.HandlePlayerDisconnect(playerID)
	}
	if err := room.RemovePlayer(playerID); err != nil {
		c.ClearSeat()
		m.sendError(c, types.ErrNotInRoom, "Not in a room")
		return
	}
	c.ClearSeat()

	m.broadcast(room, types.PlayerLeft{Type: "PLAYER_LEFT", PlayerID: playerID})
	m.conns.Deliver(c.SessionID, types.PlayerLeft{Type: "PLAYER_LEFT", PlayerID: playerID})
}

// SetReady toggles the player's ready flag.
func (m *Manager) SetReady(c *conn.Connection, ready bool) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		m.sendError(c, types.ErrNotInRoom, "Not in a room")
		return
	}
	if err := room.SetReady(playerID, ready); err != nil {
		m.sendError(c, types.ErrInvalidAction, "Cannot change readiness now")
		return
	}
	m.broadcast(room, types.PlayerReady{Type: "PLAYER_READY", PlayerID: playerID, Ready: ready})
}

// StartGame starts the room's game. Host only.
func (m *Manager) StartGame(c *conn.Connection) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		m.sendError(c, types.ErrNotInRoom, "Not in a room")
		return
	}
	if hostID, ok := room.HostID(); !ok || hostID != playerID {
		m.sendError(c, types.ErrNotHost, "Only the host can start the game")
		return
	}

	inst, err := room.StartGame(m.callbacksFor(room))
	switch {
	case errors.Is(err, ErrNotEnoughPlayers):
		m.sendError(c, types.ErrNotEnoughPlayers, "Not enough players")
		return
	case errors.Is(err, ErrPlayersNotReady):
		m.sendError(c, types.ErrPlayersNotReady, "All players must be ready")
		return
	case errors.Is(err, ErrAlreadyStarted):
		m.sendError(c, types.ErrInvalidAction, "Game already started")
		return
	case err != nil:
		m.sendError(c, types.ErrInvalidAction, err.Error())
		return
	}
	inst.BroadcastGameStarted()
}

// HandleGameAction validates a raw payload against the room's variant and
// hands it to the live instance.
func (m *Manager) HandleGameAction(c *conn.Connection, raw json.RawMessage) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		m.sendError(c, types.ErrNotInRoom, "Not in a room")
		return
	}
	inst, started := room.Instance()
	if !started {
		m.sendError(c, types.ErrGameNotStarted, "Game has not started")
		return
	}
	adapter, ok := m.games.Get(room.GameType())
	if !ok {
		m.sendError(c, types.ErrInvalidAction, "Unknown game type")
		return
	}

	action, err := adapter.ValidateAction(raw)
	if err != nil {
		var unknown *game.UnknownActionError
		if errors.As(err, &unknown) {
			m.sendError(c, types.ErrInvalidMessage, unknown.Error())
			return
		}
		m.sendError(c, types.ErrInvalidAction, err.Error())
		return
	}
	inst.HandleAction(playerID, c.SessionID, action)
}

// HandleDisconnect marks the seat disconnected. The seat survives so the
// player can reconnect with the same id; the room's empty timer handles the
// case where nobody comes back.
func (m *Manager) HandleDisconnect(c *conn.Connection) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		return
	}
	if err := room.SetConnected(playerID, false, ""); err != nil {
		return
	}
	if inst, started := room.Instance(); started {
		inst.HandlePlayerDisconnect(playerID)
	}
	m.broadcast(room, types.PlayerDisconnected{Type: "PLAYER_DISCONNECTED", PlayerID: playerID})
}

// HandleReconnect reattaches a session that already holds a seat. The caller
// admits the transport first, so the session id is unchanged.
func (m *Manager) HandleReconnect(c *conn.Connection) {
	room, playerID, ok := m.seatOf(c)
	if !ok {
		return
	}
	if room.Closed() {
		c.ClearSeat()
		m.conns.Deliver(c.SessionID, types.RoomClosed{Type: "ROOM_CLOSED", Reason: "room no longer exists"})
		return
	}
	if err := room.SetConnected(playerID, true, c.SessionID); err != nil {
		c.ClearSeat()
		m.conns.Deliver(c.SessionID, types.RoomClosed{Type: "ROOM_CLOSED", Reason: "room no longer exists"})
		return
	}

	m.broadcast(room, types.PlayerReconnected{Type: "PLAYER_RECONNECTED", PlayerID: playerID})
	if inst, started := room.Instance(); started {
		inst.HandlePlayerReconnect(playerID, c.SessionID)
	} else {
		m.conns.Deliver(c.SessionID, types.RoomJoined{
			Type: "ROOM_JOINED", RoomCode: room.Code(), PlayerID: playerID,
			Players: room.Players(), GameType: room.GameType(),
		})
	}
	m.log.Info("player reconnected",
		zap.String("roomCode", room.Code()),
		zap.Int("playerId", playerID))
}

// internals

func (m *Manager) room(code string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[code]
}

// seatOf resolves a connection's room and seat.
func (m *Manager) seatOf(c *conn.Connection) (*Room, int, bool) {
	code := c.RoomCode()
	if code == "" {
		return nil, 0, false
	}
	room := m.room(code)
	if room == nil {
		return nil, 0, false
	}
	return room, c.PlayerID(), true
}

// callbacksFor builds the game callback set for one room. The closures run
// with the room mutex held, so they use the room's Locked accessors and only
// take downstream locks (registry, connections).
func (m *Manager) callbacksFor(room *Room) game.Callbacks {
	return game.Callbacks{
		Broadcast: func(sessionIDs []string, msg any) {
			for _, id := range sessionIDs {
				m.conns.Deliver(id, msg)
			}
		},
		SendToPlayer: func(sessionID string, msg any) {
			m.conns.Deliver(sessionID, msg)
		},
		ConnectedSessionIDs: room.ConnectedSessionIDsLocked,
		SessionForPlayer:    room.SessionForPlayerLocked,
		AllSessionIDs:       room.AllSessionIDsLocked,
		OnGameOver:          room.ScheduleGameOverCleanupLocked,
	}
}

// onRoomDestroyed runs with the destroyed room's mutex held.
func (m *Manager) onRoomDestroyed(code, reason string, sessionIDs []string) {
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()

	for _, sessionID := range sessionIDs {
		m.conns.Deliver(sessionID, types.RoomClosed{Type: "ROOM_CLOSED", Reason: reason})
		c, ok := m.conns.Get(sessionID)
		if !ok {
			continue
		}
		c.ClearSeat()
		// sessions with no live socket have nothing left to wait for
		if t := c.Transport(); t == nil || !t.Open() {
			m.conns.Release(sessionID)
		}
	}
	m.log.Info("room removed from registry", zap.String("roomCode", code), zap.String("reason", reason))
}

func (m *Manager) broadcast(room *Room, msg any) {
	for _, sessionID := range room.SessionIDs() {
		m.conns.Deliver(sessionID, msg)
	}
}

func (m *Manager) broadcastExcept(room *Room, exceptSessionID string, msg any) {
	for _, sessionID := range room.SessionIDs() {
		if sessionID == exceptSessionID {
			continue
		}
		m.conns.Deliver(sessionID, msg)
	}
}

func (m *Manager) sendError(c *conn.Connection, code types.ErrorCode, msg string) {
	m.conns.Deliver(c.SessionID, types.NewError(code, msg))
}
