package cardgame

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/pkg/types"
)

const (
	autoPlayDelay = 30 * time.Second
	resolveDelay  = 3 * time.Second
)

type FinalScore struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// room drives the select -> reveal -> choose -> resolve phase machine for one
// game. It shares its owning Room's mutex, so player actions, clock expiry
// and auto-play callbacks never interleave; every phase-advancing path
// re-checks the engine predicate under the lock, which makes repeated or
// stale triggers for an already-passed boundary no-ops.
type room struct {
	mu        *sync.Mutex
	state     State
	cb        game.Callbacks
	clock     *game.TimerManager
	autoPlay  map[int]*time.Timer
	nextRound *time.Timer
	connected map[int]bool
	players   []game.PlayerInfo
	hostID    int
	closed    bool
	log       *zap.Logger

	autoPlayDelay time.Duration
	resolveDelay  time.Duration
}

func newRoom(players []game.PlayerInfo, mu *sync.Mutex, cb game.Callbacks, log *zap.Logger) *room {
	state := NewGame(len(players))
	for i := range state.Players {
		state.Players[i].Name = players[i].Name
		state.Players[i].ID = players[i].ID
	}

	connected := make(map[int]bool, len(players))
	for _, p := range players {
		connected[p.ID] = true
	}

	return &room{
		mu:            mu,
		state:         state,
		cb:            cb,
		clock:         game.NewTimerManager(),
		autoPlay:      make(map[int]*time.Timer),
		connected:     connected,
		players:       players,
		hostID:        players[0].ID,
		log:           log,
		autoPlayDelay: autoPlayDelay,
		resolveDelay:  resolveDelay,
	}
}

func (r *room) BroadcastGameStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendToEachLocked(func(view ClientState) any {
		return game.StateMsg{Type: "GAME_STARTED", State: view}
	})
}

func (r *room) HandleAction(playerID int, sessionID string, action game.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	switch a := action.(type) {
	case SelectPairAction:
		r.handleSelectPairLocked(playerID, sessionID, a.Cards)
	case ChooseCardAction:
		r.handleChooseCardLocked(playerID, sessionID, a.Card)
	case RequestStateAction:
		r.sendStateLocked(playerID, sessionID)
	case SkipTimerAction:
		r.handleSkipTimerLocked(playerID, sessionID)
	default:
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Unsupported action")
	}
}

func (r *room) SendStateToPlayer(playerID int, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendStateLocked(playerID, sessionID)
}

func (r *room) HandlePlayerDisconnect(playerID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	delete(r.connected, playerID)
	r.armAutoPlayLocked(playerID)
	r.log.Info("player disconnected during game", zap.Int("playerId", playerID))
}

func (r *room) HandlePlayerReconnect(playerID int, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.connected[playerID] = true
	if t, ok := r.autoPlay[playerID]; ok {
		t.Stop()
		delete(r.autoPlay, playerID)
	}
	r.sendStateLocked(playerID, sessionID)
	r.log.Info("player reconnected during game", zap.Int("playerId", playerID))
}

// Cleanup is called with the room mutex already held, during room
// destruction. It must not lock.
func (r *room) Cleanup() {
	r.closed = true
	r.clock.Stop()
	for _, t := range r.autoPlay {
		t.Stop()
	}
	r.autoPlay = make(map[int]*time.Timer)
	if r.nextRound != nil {
		r.nextRound.Stop()
		r.nextRound = nil
	}
}

// action handlers

func (r *room) handleSelectPairLocked(playerID int, sessionID string, cards [2]int) {
	if r.state.Phase != PhaseSelect {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Not in select phase")
		return
	}
	if p, ok := r.state.player(playerID); ok && p.SelectedPair != nil {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Already selected a pair")
		return
	}

	next, changed := SelectPair(r.state, playerID, cards)
	if !changed {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Invalid card selection")
		return
	}
	r.state = next

	r.broadcastLocked(game.PlayerEventMsg{Type: "PAIR_SELECTED", PlayerID: playerID})
	r.sendStateLocked(playerID, sessionID)

	if AllPairsSelected(r.state) {
		r.transitionToRevealLocked()
	}
}

func (r *room) handleChooseCardLocked(playerID int, sessionID string, card int) {
	if r.state.Phase != PhaseChoose {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Not in choose phase")
		return
	}
	if p, ok := r.state.player(playerID); ok && p.ChosenCard != nil {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Already chose a card")
		return
	}

	next, changed := ChooseCard(r.state, playerID, card)
	if !changed {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Invalid card choice")
		return
	}
	r.state = next

	r.broadcastLocked(game.PlayerEventMsg{Type: "CARD_CHOSEN", PlayerID: playerID})
	r.sendStateLocked(playerID, sessionID)

	if AllCardsChosen(r.state) {
		r.transitionToResolveLocked()
	}
}

func (r *room) handleSkipTimerLocked(playerID int, sessionID string) {
	if playerID != r.hostID {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Only the host can skip the timer")
		return
	}
	if r.state.Phase != PhaseReveal {
		return
	}
	r.clock.Stop()
	r.broadcastLocked(game.EventMsg{Type: "TIMER_EXPIRED"})
	r.transitionToChooseLocked()
}

// phase transitions — each re-checks via the engine reducer, so a stale
// trigger that lost the race simply finds changed == false and returns.

func (r *room) transitionToRevealLocked() {
	next, changed := StartReveal(r.state)
	if !changed {
		return
	}
	r.state = next

	r.broadcastLocked(game.EventMsg{Type: "ALL_PAIRS_SELECTED"})
	r.broadcastPhaseChangeLocked()

	// the round is captured so a clock goroutine that stalls across an entire
	// round cannot fire into the next round's reveal
	round := r.state.CurrentRound
	r.clock.Start(revealSeconds,
		func(remaining int) { r.revealTick(round, remaining) },
		func() { r.revealExpired(round) })
}

func (r *room) revealTick(round, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Phase != PhaseReveal || r.state.CurrentRound != round {
		return
	}
	r.state.Timer = remaining
	r.broadcastLocked(game.TimerTickMsg{Type: "TIMER_TICK", Timer: remaining})
}

func (r *room) revealExpired(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Phase != PhaseReveal || r.state.CurrentRound != round {
		return
	}
	r.broadcastLocked(game.EventMsg{Type: "TIMER_EXPIRED"})
	r.transitionToChooseLocked()
}

func (r *room) transitionToChooseLocked() {
	next, changed := StartChoose(r.state)
	if !changed {
		return
	}
	r.state = next

	r.broadcastPhaseChangeLocked()
	r.scheduleAutoPlayForDisconnectedLocked()
}

func (r *room) transitionToResolveLocked() {
	next, changed := ResolveRound(r.state)
	if !changed {
		return
	}
	r.broadcastLocked(game.EventMsg{Type: "ALL_CARDS_CHOSEN"})
	r.state = next

	last := r.state.RoundHistory[len(r.state.RoundHistory)-1]

	if r.state.Phase == PhaseGameOver {
		scores := make([]FinalScore, len(r.state.Players))
		for i, p := range r.state.Players {
			scores[i] = FinalScore{PlayerID: p.ID, Name: p.Name, Score: p.Score}
		}
		r.sendToEachLocked(func(view ClientState) any {
			return game.GameOverMsg{Type: "GAME_OVER", State: view, FinalScores: scores}
		})
		r.cb.OnGameOver()
		r.log.Info("game over", zap.Int("rounds", r.state.TotalRounds))
		return
	}

	r.sendToEachLocked(func(view ClientState) any {
		return game.RoundResultMsg{Type: "ROUND_RESULT", Result: last, State: view}
	})

	if r.nextRound != nil {
		r.nextRound.Stop()
	}
	round := r.state.CurrentRound
	r.nextRound = time.AfterFunc(r.resolveDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.state.Phase != PhaseResolve || r.state.CurrentRound != round {
			return
		}
		r.startNextRoundLocked()
	})
}

func (r *room) startNextRoundLocked() {
	next, changed := StartNextRound(r.state)
	if !changed {
		return
	}
	r.state = next

	r.broadcastPhaseChangeLocked()
	r.scheduleAutoPlayForDisconnectedLocked()
}

// auto-play

func (r *room) armAutoPlayLocked(playerID int) {
	if t, ok := r.autoPlay[playerID]; ok {
		t.Stop()
	}
	r.autoPlay[playerID] = time.AfterFunc(r.autoPlayDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return
		}
		r.autoPlayLocked(playerID)
	})
}

func (r *room) scheduleAutoPlayForDisconnectedLocked() {
	for _, p := range r.players {
		if !r.connected[p.ID] {
			r.armAutoPlayLocked(p.ID)
		}
	}
}

func (r *room) autoPlayLocked(playerID int) {
	delete(r.autoPlay, playerID)
	if r.connected[playerID] {
		return
	}

	switch r.state.Phase {
	case PhaseSelect:
		if p, ok := r.state.player(playerID); !ok || p.SelectedPair != nil {
			return
		}
		next, changed := AutoSelectPair(r.state, playerID)
		if !changed {
			return
		}
		r.state = next
		r.broadcastLocked(game.PlayerEventMsg{Type: "PAIR_SELECTED", PlayerID: playerID})
		if AllPairsSelected(r.state) {
			r.transitionToRevealLocked()
		}
	case PhaseChoose:
		if p, ok := r.state.player(playerID); !ok || p.ChosenCard != nil {
			return
		}
		next, changed := AutoChooseCard(r.state, playerID)
		if !changed {
			return
		}
		r.state = next
		r.broadcastLocked(game.PlayerEventMsg{Type: "CARD_CHOSEN", PlayerID: playerID})
		if AllCardsChosen(r.state) {
			r.transitionToResolveLocked()
		}
	}
}

// broadcast helpers

func (r *room) broadcastLocked(msg any) {
	r.cb.Broadcast(r.cb.ConnectedSessionIDs(), msg)
}

func (r *room) broadcastPhaseChangeLocked() {
	r.sendToEachLocked(func(view ClientState) any {
		return game.PhaseChangedMsg{Type: "PHASE_CHANGED", Phase: string(r.state.Phase), State: view}
	})
}

// sendToEachLocked re-projects the state once per seated player and sends
// only that player's view.
func (r *room) sendToEachLocked(build func(view ClientState) any) {
	for _, p := range r.players {
		sessionID, ok := r.cb.SessionForPlayer(p.ID)
		if !ok {
			continue
		}
		view := FilterStateForPlayer(r.state, p.ID, r.connected)
		r.cb.SendToPlayer(sessionID, build(view))
	}
}

func (r *room) sendStateLocked(playerID int, sessionID string) {
	view := FilterStateForPlayer(r.state, playerID, r.connected)
	r.cb.SendToPlayer(sessionID, game.StateMsg{Type: "STATE_UPDATE", State: view})
}

func (r *room) sendErrorLocked(sessionID string, code types.ErrorCode, msg string) {
	r.cb.SendToPlayer(sessionID, types.NewError(code, msg))
}
