package cardgame

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
)

// harness wires a room to recording callbacks. sent holds per-session
// deliveries, broadcasts holds fan-out messages; both are guarded by mu
// because timer callbacks fire from other goroutines.
type harness struct {
	mu         sync.Mutex
	room       *room
	sent       map[string][]any
	broadcasts []any
	gameOver   int
}

func sessionFor(playerID int) string {
	return "sess-" + string(rune('a'+playerID))
}

func newHarness(t *testing.T, playerCount int) *harness {
	t.Helper()
	players := make([]game.PlayerInfo, playerCount)
	for i := range players {
		players[i] = game.PlayerInfo{ID: i, Name: "player" + string(rune('A'+i))}
	}

	h := &harness{sent: make(map[string][]any)}
	cb := game.Callbacks{
		Broadcast: func(sessionIDs []string, msg any) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.broadcasts = append(h.broadcasts, msg)
		},
		SendToPlayer: func(sessionID string, msg any) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent[sessionID] = append(h.sent[sessionID], msg)
		},
		ConnectedSessionIDs: func() []string {
			ids := make([]string, 0, playerCount)
			for i := 0; i < playerCount; i++ {
				ids = append(ids, sessionFor(i))
			}
			return ids
		},
		SessionForPlayer: func(playerID int) (string, bool) {
			return sessionFor(playerID), true
		},
		AllSessionIDs: func() []string { return nil },
		OnGameOver: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.gameOver++
		},
	}

	var roomMu sync.Mutex
	h.room = newRoom(players, &roomMu, cb, zap.NewNop())
	return h
}

func (h *harness) broadcastTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.broadcasts))
	for _, msg := range h.broadcasts {
		switch m := msg.(type) {
		case game.EventMsg:
			out = append(out, m.Type)
		case game.PlayerEventMsg:
			out = append(out, m.Type)
		case game.TimerTickMsg:
			out = append(out, m.Type)
		}
	}
	return out
}

func (h *harness) phase() Phase {
	h.room.mu.Lock()
	defer h.room.mu.Unlock()
	return h.room.state.Phase
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRoundFlow(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room
	r.resolveDelay = 5 * time.Millisecond

	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})
	require.Equal(t, PhaseSelect, h.phase())

	r.HandleAction(1, sessionFor(1), SelectPairAction{Cards: [2]int{2, 7}})
	require.Equal(t, PhaseReveal, h.phase())
	require.Contains(t, h.broadcastTypes(), "ALL_PAIRS_SELECTED")

	// host skips the reveal countdown
	r.HandleAction(0, sessionFor(0), SkipTimerAction{})
	require.Equal(t, PhaseChoose, h.phase())
	require.Contains(t, h.broadcastTypes(), "TIMER_EXPIRED")

	r.HandleAction(0, sessionFor(0), ChooseCardAction{Card: 3})
	r.HandleAction(1, sessionFor(1), ChooseCardAction{Card: 2})
	require.Equal(t, PhaseResolve, h.phase())

	// lowest unique card was the 2
	r.mu.Lock()
	require.Equal(t, 2, r.state.Players[1].Score)
	require.Zero(t, r.state.Players[0].Score)
	r.mu.Unlock()

	waitFor(t, func() bool { return h.phase() == PhaseSelect }, "next round should start")
	r.mu.Lock()
	require.Equal(t, 2, r.state.CurrentRound)
	r.mu.Unlock()

	r.mu.Lock()
	r.Cleanup()
	r.mu.Unlock()
}

func TestRejectsActionsOutOfPhase(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room

	r.HandleAction(0, sessionFor(0), ChooseCardAction{Card: 3})

	h.mu.Lock()
	msgs := h.sent[sessionFor(0)]
	h.mu.Unlock()
	require.Len(t, msgs, 1)

	r.mu.Lock()
	require.Nil(t, r.state.Players[0].ChosenCard)
	r.Cleanup()
	r.mu.Unlock()
}

func TestDoubleSelectRejected(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room

	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})
	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{1, 2}})

	r.mu.Lock()
	require.Equal(t, [2]int{3, 5}, *r.state.Players[0].SelectedPair)
	r.Cleanup()
	r.mu.Unlock()
}

func TestSkipTimerHostOnly(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room

	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})
	r.HandleAction(1, sessionFor(1), SelectPairAction{Cards: [2]int{2, 7}})
	require.Equal(t, PhaseReveal, h.phase())

	r.HandleAction(1, sessionFor(1), SkipTimerAction{})
	require.Equal(t, PhaseReveal, h.phase(), "non-host skip must not advance")

	r.HandleAction(0, sessionFor(0), SkipTimerAction{})
	require.Equal(t, PhaseChoose, h.phase())

	r.mu.Lock()
	r.Cleanup()
	r.mu.Unlock()
}

func TestAutoPlayForDisconnectedPlayer(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room
	r.autoPlayDelay = 5 * time.Millisecond

	r.HandlePlayerDisconnect(1)
	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})

	// auto-play selects player 1's two lowest cards and, as the last actor,
	// advances the phase
	waitFor(t, func() bool { return h.phase() == PhaseReveal }, "auto-play should advance to reveal")

	r.mu.Lock()
	require.Equal(t, [2]int{1, 2}, *r.state.Players[1].SelectedPair)
	r.Cleanup()
	r.mu.Unlock()
}

func TestReconnectCancelsAutoPlay(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room
	r.autoPlayDelay = 20 * time.Millisecond

	r.HandlePlayerDisconnect(1)
	r.HandlePlayerReconnect(1, sessionFor(1))

	time.Sleep(40 * time.Millisecond)
	r.mu.Lock()
	require.Nil(t, r.state.Players[1].SelectedPair)
	require.True(t, r.connected[1])
	r.Cleanup()
	r.mu.Unlock()
}

func TestStaleRevealExpiryIgnored(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room

	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})
	r.HandleAction(1, sessionFor(1), SelectPairAction{Cards: [2]int{2, 7}})
	require.Equal(t, PhaseReveal, h.phase())

	r.mu.Lock()
	round := r.state.CurrentRound
	r.mu.Unlock()

	// an expiry carrying another round's number must not advance the phase
	r.revealExpired(round + 1)
	require.Equal(t, PhaseReveal, h.phase())

	r.revealTick(round+1, 5)
	require.NotContains(t, h.broadcastTypes(), "TIMER_TICK")

	r.revealExpired(round)
	require.Equal(t, PhaseChoose, h.phase())

	r.mu.Lock()
	r.Cleanup()
	r.mu.Unlock()
}

func TestGameOverFiresOnce(t *testing.T) {
	h := newHarness(t, 2)
	r := h.room

	r.mu.Lock()
	r.state.TotalRounds = 1
	r.mu.Unlock()

	r.HandleAction(0, sessionFor(0), SelectPairAction{Cards: [2]int{3, 5}})
	r.HandleAction(1, sessionFor(1), SelectPairAction{Cards: [2]int{2, 7}})
	r.HandleAction(0, sessionFor(0), SkipTimerAction{})
	r.HandleAction(0, sessionFor(0), ChooseCardAction{Card: 3})
	r.HandleAction(1, sessionFor(1), ChooseCardAction{Card: 2})

	require.Equal(t, PhaseGameOver, h.phase())
	h.mu.Lock()
	require.Equal(t, 1, h.gameOver)
	h.mu.Unlock()

	// a stale trigger for the already-passed boundary is a no-op
	r.HandleAction(1, sessionFor(1), ChooseCardAction{Card: 7})
	h.mu.Lock()
	require.Equal(t, 1, h.gameOver)
	h.mu.Unlock()

	r.mu.Lock()
	r.Cleanup()
	r.mu.Unlock()
}
