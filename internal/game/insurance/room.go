package insurance

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/pkg/types"
)

const (
	biddingSeconds    = 30
	revealSeconds     = 8
	drawSecondsPerson = 3
	resultsSeconds    = 6

	autoPlayDelay = 30 * time.Second

	defaultHealthyBid = healthyCost
	defaultSickBid    = sickCost
)

type FinalScore struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
	Money    int    `json:"money"`
}

// room drives the bidding -> reveal -> drawing -> results phase machine for
// one game. Every phase after bidding runs on a countdown, so the clock is
// the primary driver and player actions mostly submit bids or skip ahead.
// It shares its owning Room's mutex; transitions re-check the engine
// predicate under the lock so stale timer callbacks are no-ops.
type room struct {
	mu        *sync.Mutex
	state     State
	cb        game.Callbacks
	clock     *game.TimerManager
	rng       *rand.Rand
	autoPlay  map[int]*time.Timer
	connected map[int]bool
	players   []game.PlayerInfo
	hostID    int
	closed    bool
	log       *zap.Logger

	autoPlayDelay time.Duration
}

func newRoom(players []game.PlayerInfo, mu *sync.Mutex, cb game.Callbacks, log *zap.Logger) *room {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	state := NewGame(len(players), rng)
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
		rng:           rng,
		autoPlay:      make(map[int]*time.Timer),
		connected:     connected,
		players:       players,
		hostID:        players[0].ID,
		log:           log,
		autoPlayDelay: autoPlayDelay,
	}
}

func (r *room) BroadcastGameStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendToEachLocked(func(view ClientState) any {
		return game.StateMsg{Type: "GAME_STARTED", State: view}
	})
	r.startBiddingClockLocked()
}

func (r *room) HandleAction(playerID int, sessionID string, action game.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	switch a := action.(type) {
	case SubmitBidAction:
		r.handleSubmitBidLocked(playerID, sessionID, a.HealthyPrice, a.SickPrice)
	case RequestStateAction:
		r.sendStateLocked(playerID, sessionID)
	case SkipTimerAction:
		r.handleSkipTimerLocked(playerID, sessionID)
	case TogglePauseAction:
		r.handleTogglePauseLocked(playerID, sessionID)
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
}

// action handlers

func (r *room) handleSubmitBidLocked(playerID int, sessionID string, healthy, sick int) {
	if r.state.Paused {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Game is paused")
		return
	}
	if r.state.Phase != PhaseBidding {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Not in bidding phase")
		return
	}
	if p, ok := r.state.player(playerID); ok && p.HealthyBid != nil {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Already submitted a bid")
		return
	}

	next, changed := SubmitBid(r.state, playerID, healthy, sick)
	if !changed {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Invalid bid")
		return
	}
	r.state = next

	r.broadcastLocked(game.PlayerEventMsg{Type: "BID_SUBMITTED", PlayerID: playerID})
	r.sendStateLocked(playerID, sessionID)

	if AllBidsSubmitted(r.state) {
		r.transitionToRevealLocked()
	}
}

func (r *room) handleSkipTimerLocked(playerID int, sessionID string) {
	if playerID != r.hostID {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Only the host can skip the timer")
		return
	}
	switch r.state.Phase {
	case PhaseReveal:
		r.clock.Stop()
		r.broadcastLocked(game.EventMsg{Type: "TIMER_EXPIRED"})
		r.transitionToDrawingLocked()
	case PhaseResults:
		r.clock.Stop()
		r.broadcastLocked(game.EventMsg{Type: "TIMER_EXPIRED"})
		r.startNextRoundLocked()
	default:
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Nothing to skip")
	}
}

func (r *room) handleTogglePauseLocked(playerID int, sessionID string) {
	if playerID != r.hostID {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Only the host can pause")
		return
	}
	if r.state.Phase == PhaseGameOver {
		r.sendErrorLocked(sessionID, types.ErrInvalidAction, "Game is over")
		return
	}

	if r.state.Paused {
		r.state.Paused = false
		r.clock.Resume()
		r.broadcastLocked(game.EventMsg{Type: "GAME_UNPAUSED"})
	} else {
		r.state.Paused = true
		r.clock.Pause()
		r.broadcastLocked(game.EventMsg{Type: "GAME_PAUSED"})
	}
	r.broadcastPhaseStateLocked()
}

// phase transitions

func (r *room) startBiddingClockLocked() {
	r.state.Timer = biddingSeconds
	round := r.state.CurrentRound
	r.clock.Start(biddingSeconds, r.tick(PhaseBidding, round), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.staleLocked(PhaseBidding, round) {
			return
		}
		r.autoFillBidsLocked()
		r.broadcastLocked(game.EventMsg{Type: "TIMER_EXPIRED"})
		r.transitionToRevealLocked()
	})
}

// staleLocked reports whether a timer callback no longer matches the live
// game: the round guard closes the window left by a callback that passed the
// clock's generation check and then stalled into a later round.
func (r *room) staleLocked(phase Phase, round int) bool {
	return r.closed || r.state.Phase != phase || r.state.CurrentRound != round
}

// autoFillBidsLocked submits the at-cost default bid for every player still
// missing one when the bidding clock runs out.
func (r *room) autoFillBidsLocked() {
	for _, p := range r.state.Players {
		if p.HealthyBid != nil {
			continue
		}
		next, changed := SubmitBid(r.state, p.ID, defaultHealthyBid, defaultSickBid)
		if !changed {
			continue
		}
		r.state = next
		r.broadcastLocked(game.PlayerEventMsg{Type: "BID_SUBMITTED", PlayerID: p.ID})
	}
}

func (r *room) transitionToRevealLocked() {
	next, changed := StartReveal(r.state)
	if !changed {
		return
	}
	r.state = next

	r.broadcastLocked(game.EventMsg{Type: "ALL_BIDS_SUBMITTED"})
	r.broadcastPhaseChangeLocked()

	r.state.Timer = revealSeconds
	round := r.state.CurrentRound
	r.clock.Start(revealSeconds, r.tick(PhaseReveal, round), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.staleLocked(PhaseReveal, round) {
			return
		}
		r.transitionToDrawingLocked()
	})
}

func (r *room) transitionToDrawingLocked() {
	next, changed := DrawAndAssign(r.state, r.rng)
	if !changed {
		return
	}
	r.state = next

	r.broadcastPhaseChangeLocked()

	seconds := drawSecondsPerson * len(r.state.People)
	r.state.Timer = seconds
	round := r.state.CurrentRound
	r.clock.Start(seconds, r.tick(PhaseDrawing, round), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.staleLocked(PhaseDrawing, round) {
			return
		}
		r.transitionToResultsLocked()
	})
}

func (r *room) transitionToResultsLocked() {
	next, changed := StartResults(r.state)
	if !changed {
		return
	}
	r.state = next

	last := r.state.RoundHistory[len(r.state.RoundHistory)-1]

	if r.state.Phase == PhaseGameOver {
		r.clock.Stop()
		scores := make([]FinalScore, len(r.state.Players))
		for i, p := range r.state.Players {
			scores[i] = FinalScore{PlayerID: p.ID, Name: p.Name, Money: p.Money}
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

	r.state.Timer = resultsSeconds
	round := r.state.CurrentRound
	r.clock.Start(resultsSeconds, r.tick(PhaseResults, round), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.staleLocked(PhaseResults, round) {
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
	r.startBiddingClockLocked()
	r.scheduleAutoPlayForDisconnectedLocked()
}

// tick builds the per-second tick callback for one phase's countdown.
func (r *room) tick(phase Phase, round int) func(remaining int) {
	return func(remaining int) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.staleLocked(phase, round) {
			return
		}
		r.state.Timer = remaining
		r.broadcastLocked(game.TimerTickMsg{Type: "TIMER_TICK", Timer: remaining})
	}
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
	if r.state.Phase != PhaseBidding || r.state.Paused {
		return
	}
	if p, ok := r.state.player(playerID); !ok || p.HealthyBid != nil {
		return
	}

	next, changed := SubmitBid(r.state, playerID, defaultHealthyBid, defaultSickBid)
	if !changed {
		return
	}
	r.state = next
	r.broadcastLocked(game.PlayerEventMsg{Type: "BID_SUBMITTED", PlayerID: playerID})
	if AllBidsSubmitted(r.state) {
		r.transitionToRevealLocked()
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

func (r *room) broadcastPhaseStateLocked() {
	r.sendToEachLocked(func(view ClientState) any {
		return game.StateMsg{Type: "STATE_UPDATE", State: view}
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
