// Package lobby manages rooms: creation and join by code, readiness, game
// start, and the timer-driven teardown that keeps abandoned rooms from
// leaking.
package lobby

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/pkg/types"
)

var (
	ErrRoomClosed       = errors.New("lobby: room is closed")
	ErrRoomFull         = errors.New("lobby: room is full")
	ErrNameTaken        = errors.New("lobby: player name already taken")
	ErrAlreadyStarted   = errors.New("lobby: game already started")
	ErrNotEnoughPlayers = errors.New("lobby: not enough players")
	ErrPlayersNotReady  = errors.New("lobby: not all players are ready")
	ErrPlayerNotFound   = errors.New("lobby: player not in room")
	ErrGameNotStarted   = errors.New("lobby: game not started")
)

// Timeouts control room teardown. EmptyRoom applies while no player is
// seated or connected, PostGame after the game ends, HardCap regardless.
type Timeouts struct {
	EmptyRoom time.Duration
	PostGame  time.Duration
	HardCap   time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		EmptyRoom: 5 * time.Minute,
		PostGame:  30 * time.Minute,
		HardCap:   2 * time.Hour,
	}
}

type seat struct {
	playerID  int
	name      string
	sessionID string
	ready     bool
	connected bool
}

// Room is one lobby room. Its mutex also serializes the game instance once a
// game starts, so lobby operations, player actions and game timers never
// interleave. Lock order: Room.mu may be held when the onDestroy callback or
// game callbacks take downstream locks, never the reverse.
//
// A room destroys itself three ways: a soft timer when it has been empty of
// connected players for Timeouts.EmptyRoom, a soft timer Timeouts.PostGame
// after the game ends, and a hard cap at Timeouts.HardCap from creation.
type Room struct {
	mu *sync.Mutex

	code      string
	gameType  string
	adapter   game.Adapter
	createdAt time.Time
	timeouts  Timeouts
	log       *zap.Logger

	seats         []*seat
	nextPlayerID  int
	hostSessionID string
	instance      game.Instance
	started       bool
	closed        bool

	destroyGen int
	softTimer  *time.Timer
	hardTimer  *time.Timer

	// onDestroy is invoked with the room mutex held; it receives the session
	// ids seated at teardown so the caller can notify and unseat them.
	onDestroy func(code, reason string, sessionIDs []string)
}

func NewRoom(code string, adapter game.Adapter, timeouts Timeouts, log *zap.Logger, onDestroy func(code, reason string, sessionIDs []string)) *Room {
	r := &Room{
		mu:        new(sync.Mutex),
		code:      code,
		gameType:  adapter.GameType(),
		adapter:   adapter,
		createdAt: time.Now(),
		timeouts:  timeouts,
		log:       log,
		onDestroy: onDestroy,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a freshly created room that nobody joins must not live forever
	r.scheduleDestroyLocked(timeouts.EmptyRoom, "room expired while empty")
	r.hardTimer = time.AfterFunc(timeouts.HardCap, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.destroyLocked("room lifetime exceeded")
	})
	return r
}

func (r *Room) Code() string     { return r.code }
func (r *Room) GameType() string { return r.gameType }

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// HostID returns the seat of the room's creator. Host status is pinned to
// the creating session for the room's whole life; if the creator leaves, the
// room has no host and nobody can start the game.
func (r *Room) HostID() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seats {
		if s.sessionID == r.hostSessionID {
			return s.playerID, true
		}
	}
	return 0, false
}

// AddPlayer seats a new player and returns their id. Player ids are
// monotonic per room and never reused, so a reconnecting player can be
// recognized by id for the room's whole life.
func (r *Room) AddPlayer(name, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomClosed
	}
	if r.started {
		return 0, ErrAlreadyStarted
	}
	if len(r.seats) >= r.adapter.MaxPlayers() {
		return 0, ErrRoomFull
	}
	for _, s := range r.seats {
		if s.name == name {
			return 0, ErrNameTaken
		}
	}

	id := r.nextPlayerID
	r.nextPlayerID++
	r.seats = append(r.seats, &seat{playerID: id, name: name, sessionID: sessionID, connected: true})
	// the first session ever seated is the creator and stays host forever
	if r.hostSessionID == "" {
		r.hostSessionID = sessionID
	}

	r.cancelDestroyLocked()
	return id, nil
}

// RemovePlayer unseats a player. Removing the last player arms the empty-room
// timer rather than destroying immediately, so a brief everyone-left moment
// is survivable.
func (r *Room) RemovePlayer(playerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	idx := -1
	for i, s := range r.seats {
		if s.playerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrPlayerNotFound
	}
	r.seats = append(r.seats[:idx], r.seats[idx+1:]...)

	if len(r.seats) == 0 {
		r.scheduleDestroyLocked(r.timeouts.EmptyRoom, "room expired while empty")
	}
	return nil
}

// SetConnected flips a player's connection flag. sessionID replaces the
// stored one on reconnect so deliveries reach the live socket. When the last
// connected player drops, the empty-room timer arms; any reconnect disarms
// it.
func (r *Room) SetConnected(playerID int, connected bool, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	s := r.seatLocked(playerID)
	if s == nil {
		return ErrPlayerNotFound
	}
	s.connected = connected
	if connected && sessionID != "" {
		s.sessionID = sessionID
	}

	if connected {
		r.cancelDestroyLocked()
	} else if r.connectedCountLocked() == 0 {
		r.scheduleDestroyLocked(r.timeouts.EmptyRoom, "all players disconnected")
	}
	return nil
}

func (r *Room) SetReady(playerID int, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}
	s := r.seatLocked(playerID)
	if s == nil {
		return ErrPlayerNotFound
	}
	s.ready = ready
	return nil
}

// Players snapshots the seats for lobby events.
func (r *Room) Players() []types.LobbyPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playersLocked()
}

func (r *Room) playersLocked() []types.LobbyPlayer {
	out := make([]types.LobbyPlayer, len(r.seats))
	for i, s := range r.seats {
		out[i] = types.LobbyPlayer{ID: s.playerID, Name: s.name, Ready: s.ready, Connected: s.connected}
	}
	return out
}

// SessionIDs snapshots every seat's session id.
func (r *Room) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.AllSessionIDsLocked()
}

// PlayerBySession maps a session id back to its seat.
func (r *Room) PlayerBySession(sessionID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seats {
		if s.sessionID == sessionID {
			return s.playerID, true
		}
	}
	return 0, false
}

// PlayerName returns the stored name for a seat.
func (r *Room) PlayerName(playerID int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seatLocked(playerID)
	if s == nil {
		return "", false
	}
	return s.name, true
}

// StartGame validates readiness, materializes the game instance on the
// room's own mutex, and wires the supplied callbacks. Starting is one-way.
func (r *Room) StartGame(cb game.Callbacks) (game.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.started {
		return nil, ErrAlreadyStarted
	}
	if len(r.seats) < r.adapter.MinPlayers() {
		return nil, ErrNotEnoughPlayers
	}
	for _, s := range r.seats {
		if !s.ready {
			return nil, ErrPlayersNotReady
		}
	}

	players := make([]game.PlayerInfo, len(r.seats))
	for i, s := range r.seats {
		players[i] = game.PlayerInfo{ID: s.playerID, Name: s.name}
	}

	// The instance is constructed with its callbacks in place, so by the time
	// r.instance is visible to a concurrent action it is fully wired.
	inst := r.adapter.NewInstance(players, r.mu, cb)
	r.instance = inst
	r.started = true
	r.cancelDestroyLocked()

	r.log.Info("game started",
		zap.String("roomCode", r.code),
		zap.String("gameType", r.gameType),
		zap.Int("players", len(players)))
	return inst, nil
}

// Instance returns the live game, if started.
func (r *Room) Instance() (game.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.instance == nil {
		return nil, false
	}
	return r.instance, true
}

// Destroy tears the room down now, with the given reason.
func (r *Room) Destroy(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyLocked(reason)
}

// Locked helpers below are for the game callback closures, which run with
// r.mu already held.

// ScheduleGameOverCleanupLocked arms the post-game teardown timer.
func (r *Room) ScheduleGameOverCleanupLocked() {
	r.scheduleDestroyLocked(r.timeouts.PostGame, "game finished")
}

// ConnectedSessionIDsLocked lists the sessions of connected seats.
func (r *Room) ConnectedSessionIDsLocked() []string {
	out := make([]string, 0, len(r.seats))
	for _, s := range r.seats {
		if s.connected {
			out = append(out, s.sessionID)
		}
	}
	return out
}

// AllSessionIDsLocked lists every seat's session, connected or not.
func (r *Room) AllSessionIDsLocked() []string {
	out := make([]string, 0, len(r.seats))
	for _, s := range r.seats {
		out = append(out, s.sessionID)
	}
	return out
}

// SessionForPlayerLocked maps a seat to its current session.
func (r *Room) SessionForPlayerLocked(playerID int) (string, bool) {
	for _, s := range r.seats {
		if s.playerID == playerID {
			return s.sessionID, true
		}
	}
	return "", false
}

// internals (mutex held)

func (r *Room) seatLocked(playerID int) *seat {
	for _, s := range r.seats {
		if s.playerID == playerID {
			return s
		}
	}
	return nil
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, s := range r.seats {
		if s.connected {
			n++
		}
	}
	return n
}

// scheduleDestroyLocked arms the soft teardown timer, replacing any pending
// one. The generation counter makes a stale timer that raced a cancel fire as
// a no-op.
func (r *Room) scheduleDestroyLocked(delay time.Duration, reason string) {
	r.destroyGen++
	gen := r.destroyGen
	if r.softTimer != nil {
		r.softTimer.Stop()
	}
	r.softTimer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.destroyGen {
			return
		}
		r.destroyLocked(reason)
	})
}

func (r *Room) cancelDestroyLocked() {
	r.destroyGen++
	if r.softTimer != nil {
		r.softTimer.Stop()
		r.softTimer = nil
	}
}

func (r *Room) destroyLocked(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	r.destroyGen++
	if r.softTimer != nil {
		r.softTimer.Stop()
		r.softTimer = nil
	}
	if r.hardTimer != nil {
		r.hardTimer.Stop()
		r.hardTimer = nil
	}
	if r.instance != nil {
		r.instance.Cleanup()
		r.instance = nil
	}

	sessionIDs := r.AllSessionIDsLocked()
	r.seats = nil

	r.log.Info("room destroyed",
		zap.String("roomCode", r.code),
		zap.String("reason", reason),
		zap.Int("players", len(sessionIDs)))

	if r.onDestroy != nil {
		r.onDestroy(r.code, reason, sessionIDs)
	}
}
