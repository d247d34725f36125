// Package game defines the contract between the room/lobby layer and the
// per-variant game implementations, plus the shared phase-clock machinery.
//
// A variant supplies an Adapter (factory + action validation + player
// bounds); the lobby resolves adapters through an instance-owned Registry so
// the core never hardwires a specific game.
package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// PlayerInfo is the (id, name) pair a room hands to a variant at start.
type PlayerInfo struct {
	ID   int
	Name string
}

// Action is a validated, variant-specific game action. Concrete types live in
// the variant packages; instances type-switch on them.
type Action interface {
	ActionType() string
}

// Callbacks are supplied by the lobby when a game starts. They are invoked
// while the instance holds its room's lock, so implementations must not call
// back into the instance.
type Callbacks struct {
	Broadcast           func(sessionIDs []string, msg any)
	SendToPlayer        func(sessionID string, msg any)
	ConnectedSessionIDs func() []string
	SessionForPlayer    func(playerID int) (string, bool)
	AllSessionIDs       func() []string
	OnGameOver          func()
}

// Instance is one room's live game. All methods serialize on the owning
// room's mutex; Cleanup is the exception and is invoked with that mutex
// already held (during room destruction).
type Instance interface {
	BroadcastGameStarted()
	HandleAction(playerID int, sessionID string, action Action)
	SendStateToPlayer(playerID int, sessionID string)
	HandlePlayerDisconnect(playerID int)
	HandlePlayerReconnect(playerID int, sessionID string)
	Cleanup()
}

// Adapter describes one game variant to the lobby.
type Adapter interface {
	GameType() string
	MinPlayers() int
	MaxPlayers() int
	// NewInstance materializes the live game. mu is the owning room's mutex;
	// the instance uses it for its timer-driven turns so no two turns for the
	// room ever interleave. cb must be fully wired before the instance is
	// reachable by other goroutines, so it is part of construction.
	NewInstance(players []PlayerInfo, mu *sync.Mutex, cb Callbacks) Instance
	// ValidateAction parses and bounds-checks a raw client payload.
	ValidateAction(raw json.RawMessage) (Action, error)
}

// Registry maps game-type tags to adapters. It is constructed at startup and
// injected; there is no process-wide registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.GameType()] = a
}

func (r *Registry) Get(gameType string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[gameType]
	return a, ok
}

// Types lists registered game types in stable order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UnknownActionError reports a payload whose type no variant action matches.
type UnknownActionError struct {
	Type string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown game action %q", e.Type)
}
