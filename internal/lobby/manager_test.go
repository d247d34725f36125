package lobby

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/pkg/types"
)

type fakeTransport struct {
	mu     sync.Mutex
	writes []any
	open   bool
}

func newFakeTransport() *fakeTransport { return &fakeTransport{open: true} }

func (f *fakeTransport) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeTransport) Close(int, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeTransport) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) typesSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.writes))
	for _, w := range f.writes {
		switch m := w.(type) {
		case types.RoomCreated:
			out = append(out, m.Type)
		case types.RoomJoined:
			out = append(out, m.Type)
		case types.PlayerJoined:
			out = append(out, m.Type)
		case types.PlayerLeft:
			out = append(out, m.Type)
		case types.PlayerReady:
			out = append(out, m.Type)
		case types.PlayerDisconnected:
			out = append(out, m.Type)
		case types.PlayerReconnected:
			out = append(out, m.Type)
		case types.RoomClosed:
			out = append(out, m.Type)
		case types.ErrorMessage:
			out = append(out, m.Type)
		}
	}
	return out
}

func (f *fakeTransport) lastError() (types.ErrorMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.writes) - 1; i >= 0; i-- {
		if e, ok := f.writes[i].(types.ErrorMessage); ok {
			return e, true
		}
	}
	return types.ErrorMessage{}, false
}

type managerFixture struct {
	conns   *conn.Manager
	games   *game.Registry
	lobby   *Manager
	adapter *stubAdapter
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	log := zap.NewNop()
	conns := conn.NewManager(20, log)
	games := game.NewRegistry()
	adapter := newStubAdapter()
	games.Register(adapter)

	return &managerFixture{
		conns:   conns,
		games:   games,
		adapter: adapter,
		lobby:   NewManager(conns, games, DefaultTimeouts(), 100, log),
	}
}

func (fx *managerFixture) connect(t *testing.T) (*conn.Connection, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c, err := fx.conns.Admit(tr, "10.0.0.1", "")
	require.NoError(t, err)
	return c, tr
}

func (fx *managerFixture) createRoom(t *testing.T, c *conn.Connection, name string) string {
	t.Helper()
	fx.lobby.CreateRoom(c, name, "stub")
	code := c.RoomCode()
	require.NotEmpty(t, code)
	return code
}

func TestCreateRoomSeatsHost(t *testing.T) {
	fx := newManagerFixture(t)
	c, tr := fx.connect(t)

	code := fx.createRoom(t, c, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	require.Equal(t, 1, fx.lobby.RoomCount())
	require.Equal(t, 0, c.PlayerID())
	require.Contains(t, tr.typesSent(), "ROOM_CREATED")
}

func TestCreateRoomRequiresName(t *testing.T) {
	fx := newManagerFixture(t)
	c, tr := fx.connect(t)

	fx.lobby.CreateRoom(c, "", "stub")
	require.Zero(t, fx.lobby.RoomCount())
	e, ok := tr.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrInvalidMessage, e.Code)
}

func TestCreateRoomUnknownGameType(t *testing.T) {
	fx := newManagerFixture(t)
	c, tr := fx.connect(t)

	fx.lobby.CreateRoom(c, "alice", "no-such-game")
	require.Zero(t, fx.lobby.RoomCount())
	e, ok := tr.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrInvalidMessage, e.Code)
}

func TestOneRoomPerSession(t *testing.T) {
	fx := newManagerFixture(t)
	c, tr := fx.connect(t)

	code := fx.createRoom(t, c, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	fx.lobby.CreateRoom(c, "alice", "stub")
	require.Equal(t, 1, fx.lobby.RoomCount())
	e, ok := tr.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrInvalidAction, e.Code)
}

func TestMaxRoomsEnforced(t *testing.T) {
	fx := newManagerFixture(t)
	fx.lobby.maxRooms = 1

	c1, _ := fx.connect(t)
	code := fx.createRoom(t, c1, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	c2, tr2 := fx.connect(t)
	fx.lobby.CreateRoom(c2, "bob", "stub")
	require.Equal(t, 1, fx.lobby.RoomCount())
	e, ok := tr2.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrRoomFull, e.Code)
}

func TestJoinRoomFlow(t *testing.T) {
	fx := newManagerFixture(t)
	host, hostTr := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	joiner, joinerTr := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)

	require.Equal(t, code, joiner.RoomCode())
	require.Equal(t, 1, joiner.PlayerID())
	require.Contains(t, hostTr.typesSent(), "PLAYER_JOINED")
	require.Contains(t, joinerTr.typesSent(), "ROOM_JOINED")
}

func TestJoinRoomErrors(t *testing.T) {
	fx := newManagerFixture(t)
	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	c, tr := fx.connect(t)
	fx.lobby.JoinRoom(c, "bob", "ZZZZ")
	e, _ := tr.lastError()
	require.Equal(t, types.ErrRoomNotFound, e.Code)

	fx.lobby.JoinRoom(c, "alice", code)
	e, _ = tr.lastError()
	require.Equal(t, types.ErrNameTaken, e.Code)
}

func TestStartGameHostOnly(t *testing.T) {
	fx := newManagerFixture(t)
	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	joiner, joinerTr := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	fx.lobby.SetReady(host, true)
	fx.lobby.SetReady(joiner, true)

	fx.lobby.StartGame(joiner)
	e, ok := joinerTr.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrNotHost, e.Code)
	require.False(t, fx.lobby.room(code).Started())

	fx.lobby.StartGame(host)
	require.True(t, fx.lobby.room(code).Started())
	require.Equal(t, 1, fx.adapter.inst.started)
}

func TestStartGameRefusedAfterCreatorLeaves(t *testing.T) {
	fx := newManagerFixture(t)
	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	joiner, joinerTr := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	third, _ := fx.connect(t)
	fx.lobby.JoinRoom(third, "carol", code)

	fx.lobby.LeaveRoom(host)
	fx.lobby.SetReady(joiner, true)
	fx.lobby.SetReady(third, true)

	// host status died with the creator's seat; the remaining players cannot
	// start the game
	fx.lobby.StartGame(joiner)
	e, ok := joinerTr.lastError()
	require.True(t, ok)
	require.Equal(t, types.ErrNotHost, e.Code)
	require.False(t, fx.lobby.room(code).Started())
}

func TestStartGameReadinessErrors(t *testing.T) {
	fx := newManagerFixture(t)
	host, hostTr := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	fx.lobby.StartGame(host)
	e, _ := hostTr.lastError()
	require.Equal(t, types.ErrNotEnoughPlayers, e.Code)

	joiner, _ := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	fx.lobby.StartGame(host)
	e, _ = hostTr.lastError()
	require.Equal(t, types.ErrPlayersNotReady, e.Code)
}

func TestGameActionRouting(t *testing.T) {
	fx := newManagerFixture(t)
	host, hostTr := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	raw := json.RawMessage(`{"type":"DO_THING"}`)
	fx.lobby.HandleGameAction(host, raw)
	e, _ := hostTr.lastError()
	require.Equal(t, types.ErrGameNotStarted, e.Code)

	joiner, _ := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	fx.lobby.SetReady(host, true)
	fx.lobby.SetReady(joiner, true)
	fx.lobby.StartGame(host)

	fx.lobby.HandleGameAction(joiner, raw)
	fx.adapter.inst.mu.Lock()
	require.Len(t, fx.adapter.inst.actions, 1)
	require.Equal(t, "DO_THING", fx.adapter.inst.actions[0].ActionType())
	require.Equal(t, []int{1}, fx.adapter.inst.actionPlayers)
	fx.adapter.inst.mu.Unlock()
}

func TestDisconnectReconnectKeepsSeat(t *testing.T) {
	fx := newManagerFixture(t)
	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer func() {
		if r := fx.lobby.room(code); r != nil {
			r.Destroy("test done")
		}
	}()

	joiner, _ := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	joinerID := joiner.PlayerID()

	fx.lobby.HandleDisconnect(joiner)
	players := fx.lobby.room(code).Players()
	require.False(t, players[1].Connected)

	// same session comes back on a new socket
	tr2 := newFakeTransport()
	c2, err := fx.conns.Admit(tr2, "10.0.0.1", joiner.SessionID)
	require.NoError(t, err)
	require.Same(t, joiner, c2)

	fx.lobby.HandleReconnect(c2)
	require.Equal(t, joinerID, c2.PlayerID())
	players = fx.lobby.room(code).Players()
	require.True(t, players[1].Connected)
	require.Contains(t, tr2.typesSent(), "ROOM_JOINED")
}

func TestReconnectDuringGameReachesInstance(t *testing.T) {
	fx := newManagerFixture(t)
	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	joiner, _ := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)
	fx.lobby.SetReady(host, true)
	fx.lobby.SetReady(joiner, true)
	fx.lobby.StartGame(host)

	fx.lobby.HandleDisconnect(joiner)
	fx.lobby.HandleReconnect(joiner)

	fx.adapter.inst.mu.Lock()
	require.Equal(t, []int{1}, fx.adapter.inst.disconnects)
	require.Equal(t, []int{1}, fx.adapter.inst.reconnects)
	fx.adapter.inst.mu.Unlock()
}

func TestLeaveRoomBroadcasts(t *testing.T) {
	fx := newManagerFixture(t)
	host, hostTr := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	defer fx.lobby.room(code).Destroy("test done")

	joiner, _ := fx.connect(t)
	fx.lobby.JoinRoom(joiner, "bob", code)

	fx.lobby.LeaveRoom(joiner)
	require.False(t, joiner.Seated())
	require.Contains(t, hostTr.typesSent(), "PLAYER_LEFT")
	require.Len(t, fx.lobby.room(code).Players(), 1)
}

func TestRoomDestroyNotifiesAndUnseats(t *testing.T) {
	fx := newManagerFixture(t)
	host, hostTr := fx.connect(t)
	code := fx.createRoom(t, host, "alice")

	fx.lobby.room(code).Destroy("shutting down")

	require.Zero(t, fx.lobby.RoomCount())
	require.False(t, host.Seated())
	require.Contains(t, hostTr.typesSent(), "ROOM_CLOSED")
}

func TestEmptyRoomReapedThroughManager(t *testing.T) {
	fx := newManagerFixture(t)
	fx.lobby.timeouts = Timeouts{EmptyRoom: 20 * time.Millisecond, PostGame: time.Hour, HardCap: time.Hour}

	host, _ := fx.connect(t)
	code := fx.createRoom(t, host, "alice")
	fx.lobby.HandleDisconnect(host)

	waitFor(t, func() bool { return fx.lobby.RoomCount() == 0 }, "room should be reaped")
	require.Nil(t, fx.lobby.room(code))
	require.False(t, host.Seated())
}
