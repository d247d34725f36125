// Package conn tracks live client sessions and the transport currently
// attached to each one. A session outlives individual websocket connections:
// a client that reconnects with its session id gets its seat and rate-limiter
// state back while the stale transport is closed.
package conn

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/ratelimit"
)

// ErrTooManyConnections is returned by Admit when the origin address has
// reached its connection quota.
var ErrTooManyConnections = errors.New("too many connections from origin")

// Close status forwarded to a transport that is replaced by a reconnect.
const (
	CloseReplaced    = 1000
	CloseRateLimited = 1008
	CloseServerBusy  = 1013
)

// Transport abstracts the write side of a websocket so the session layer can
// be tested without real sockets.
type Transport interface {
	WriteJSON(v any) error
	Close(code int, reason string) error
	Open() bool
}

// Connection is one player's reconnect-stable identity. The transport handle
// is swapped on reconnect; everything else survives.
type Connection struct {
	SessionID   string
	Limiter     *ratelimit.Limiter
	ConnectedAt time.Time

	mu         sync.Mutex
	transport  Transport
	origin     string
	roomCode   string
	playerID   int
	playerName string
}

func (c *Connection) Transport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// TransportIs reports whether t is still the connection's current transport.
// Read loops use it to avoid reporting a disconnect for a transport that has
// already been replaced by a reconnect.
func (c *Connection) TransportIs(t Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == t
}

func (c *Connection) Origin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin
}

// RoomCode returns the code of the room this session is seated in, or "".
func (c *Connection) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

// PlayerID returns the stable in-room player id, or -1 when unseated.
func (c *Connection) PlayerID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Connection) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

func (c *Connection) Seated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode != ""
}

// SetSeat records the room membership established by a create/join.
func (c *Connection) SetSeat(roomCode string, playerID int, playerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.playerID = playerID
	c.playerName = playerName
}

// ClearSeat detaches the session from its room.
func (c *Connection) ClearSeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = ""
	c.playerID = -1
	c.playerName = ""
}

// Manager owns the session registry and the per-origin admission quota.
type Manager struct {
	mu           sync.Mutex
	conns        map[string]*Connection
	originCounts map[string]int
	maxPerOrigin int
	log          *zap.Logger
}

func NewManager(maxPerOrigin int, log *zap.Logger) *Manager {
	return &Manager{
		conns:        make(map[string]*Connection),
		originCounts: make(map[string]int),
		maxPerOrigin: maxPerOrigin,
		log:          log,
	}
}

// Admit attaches a transport to a session. If sessionID names an existing
// session this is a reconnection: the stale transport is closed with a
// "replaced" reason and every other field is preserved. Otherwise a fresh
// session id is minted. The origin quota is enforced before either path.
func (m *Manager) Admit(t Transport, origin string, sessionID string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.originCounts[origin] >= m.maxPerOrigin {
		m.log.Warn("max connections per origin reached", zap.String("origin", origin))
		return nil, ErrTooManyConnections
	}

	if sessionID != "" {
		if existing, ok := m.conns[sessionID]; ok {
			existing.mu.Lock()
			old := existing.transport
			oldOrigin := existing.origin
			existing.transport = t
			existing.origin = origin
			existing.mu.Unlock()

			if old != nil && old.Open() {
				_ = old.Close(CloseReplaced, "Replaced by new connection")
			}
			if m.originCounts[oldOrigin] > 0 {
				m.originCounts[oldOrigin]--
				if m.originCounts[oldOrigin] == 0 {
					delete(m.originCounts, oldOrigin)
				}
			}
			m.originCounts[origin]++
			existing.ConnectedAt = time.Now()

			m.log.Info("connection reconnected",
				zap.String("sessionId", sessionID), zap.String("origin", origin))
			return existing, nil
		}
	}

	c := &Connection{
		SessionID:   uuid.NewString(),
		Limiter:     ratelimit.New(),
		ConnectedAt: time.Now(),
		transport:   t,
		origin:      origin,
		playerID:    -1,
	}
	m.conns[c.SessionID] = c
	m.originCounts[origin]++

	m.log.Info("new connection",
		zap.String("sessionId", c.SessionID), zap.String("origin", origin))
	return c, nil
}

// Release drops the session and decrements its origin counter.
func (m *Manager) Release(sessionID string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[sessionID]
	if !ok {
		return nil
	}
	delete(m.conns, sessionID)

	origin := c.Origin()
	if m.originCounts[origin] > 0 {
		m.originCounts[origin]--
	}
	if m.originCounts[origin] <= 0 {
		delete(m.originCounts, origin)
	}

	m.log.Info("connection removed", zap.String("sessionId", sessionID))
	return c
}

// Get returns the connection for a session id, if any.
func (m *Manager) Get(sessionID string) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[sessionID]
	return c, ok
}

// Deliver writes a message to the session's transport, best effort. Absent
// sessions and closed transports are silently skipped.
func (m *Manager) Deliver(sessionID string, v any) {
	m.mu.Lock()
	c, ok := m.conns[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}

	t := c.Transport()
	if t == nil || !t.Open() {
		return
	}
	if err := t.WriteJSON(v); err != nil {
		m.log.Debug("deliver failed",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
