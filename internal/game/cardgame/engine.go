// Package cardgame implements the lowest-unique-card variant: each round
// every player selects a pair from their hand, the pairs are revealed, each
// player commits one card of their pair, and the lowest card played by
// exactly one player scores its face value.
package cardgame

import "slices"

type Phase string

const (
	PhaseSelect   Phase = "select"
	PhaseReveal   Phase = "reveal"
	PhaseChoose   Phase = "choose"
	PhaseResolve  Phase = "resolve"
	PhaseGameOver Phase = "gameOver"
)

const (
	handSize           = 8
	defaultTotalRounds = 8
	revealSeconds      = 60
)

type Player struct {
	ID           int
	Name         string
	Hand         []int
	SelectedPair *[2]int
	ChosenCard   *int
	BenchedCards []int
	Score        int
}

type PlayedCard struct {
	PlayerID int `json:"playerId"`
	Card     int `json:"card"`
}

type RoundResult struct {
	Round       int          `json:"round"`
	PlayedCards []PlayedCard `json:"playedCards"`
	WinnerID    *int         `json:"winnerId"`
	Points      int          `json:"points"`
}

// State is the authoritative game value. Reducers never mutate their input:
// they return a fresh value on success and the input unchanged (changed ==
// false) on rejection.
type State struct {
	Players      []Player
	CurrentRound int
	TotalRounds  int
	Phase        Phase
	Timer        int
	RoundHistory []RoundResult
}

func NewGame(playerCount int) State {
	players := make([]Player, playerCount)
	for i := range players {
		players[i] = Player{
			ID:           i,
			Hand:         []int{1, 2, 3, 4, 5, 6, 7, 8},
			BenchedCards: []int{},
		}
	}
	return State{
		Players:      players,
		CurrentRound: 1,
		TotalRounds:  defaultTotalRounds,
		Phase:        PhaseSelect,
		RoundHistory: []RoundResult{},
	}
}

func (s State) player(playerID int) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

func clonePlayers(players []Player) []Player {
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

// SelectPair commits a player's pair for the round. Both cards must be in
// hand, not benched, and distinct.
func SelectPair(s State, playerID int, cards [2]int) (State, bool) {
	if s.Phase != PhaseSelect {
		return s, false
	}
	p, ok := s.player(playerID)
	if !ok || p.SelectedPair != nil {
		return s, false
	}
	for _, card := range cards {
		if !slices.Contains(p.Hand, card) || slices.Contains(p.BenchedCards, card) {
			return s, false
		}
	}
	if cards[0] == cards[1] {
		return s, false
	}

	next := s
	next.Players = clonePlayers(s.Players)
	for i := range next.Players {
		if next.Players[i].ID == playerID {
			pair := cards
			next.Players[i].SelectedPair = &pair
		}
	}
	return next, true
}

func AllPairsSelected(s State) bool {
	for _, p := range s.Players {
		if p.SelectedPair == nil {
			return false
		}
	}
	return true
}

// StartReveal advances select -> reveal once every pair is in.
func StartReveal(s State) (State, bool) {
	if s.Phase != PhaseSelect || !AllPairsSelected(s) {
		return s, false
	}
	next := s
	next.Phase = PhaseReveal
	next.Timer = revealSeconds
	return next, true
}

// StartChoose advances reveal -> choose; only the clock or a host skip
// triggers it.
func StartChoose(s State) (State, bool) {
	if s.Phase != PhaseReveal {
		return s, false
	}
	next := s
	next.Phase = PhaseChoose
	next.Timer = 0
	return next, true
}

// ChooseCard commits one card of the player's selected pair; the other card
// is benched and returns to hand after the next resolve.
func ChooseCard(s State, playerID int, card int) (State, bool) {
	if s.Phase != PhaseChoose {
		return s, false
	}
	p, ok := s.player(playerID)
	if !ok || p.SelectedPair == nil || p.ChosenCard != nil {
		return s, false
	}
	pair := *p.SelectedPair
	if card != pair[0] && card != pair[1] {
		return s, false
	}
	benched := pair[0]
	if benched == card {
		benched = pair[1]
	}

	next := s
	next.Players = clonePlayers(s.Players)
	for i := range next.Players {
		if next.Players[i].ID == playerID {
			chosen := card
			next.Players[i].ChosenCard = &chosen
			next.Players[i].BenchedCards = append(slices.Clone(p.BenchedCards), benched)
		}
	}
	return next, true
}

func AllCardsChosen(s State) bool {
	for _, p := range s.Players {
		if p.ChosenCard == nil {
			return false
		}
	}
	return true
}

// findLowestUnique returns the player who played the lowest card no one else
// played, and the points (the card value). ok is false when every card was
// duplicated.
func findLowestUnique(played []PlayedCard) (winnerID, points int, ok bool) {
	counts := make(map[int]int)
	for _, pc := range played {
		counts[pc.Card]++
	}
	lowest := 0
	for card, n := range counts {
		if n != 1 {
			continue
		}
		if lowest == 0 || card < lowest {
			lowest = card
		}
	}
	if lowest == 0 {
		return 0, 0, false
	}
	for _, pc := range played {
		if pc.Card == lowest {
			return pc.PlayerID, lowest, true
		}
	}
	return 0, 0, false
}

// ResolveRound scores the chosen cards, returns benched cards from previous
// rounds to hand, and advances to resolve or gameOver.
func ResolveRound(s State) (State, bool) {
	if s.Phase != PhaseChoose || !AllCardsChosen(s) {
		return s, false
	}

	played := make([]PlayedCard, len(s.Players))
	for i, p := range s.Players {
		played[i] = PlayedCard{PlayerID: p.ID, Card: *p.ChosenCard}
	}
	winnerID, points, won := findLowestUnique(played)

	result := RoundResult{
		Round:       s.CurrentRound,
		PlayedCards: played,
		Points:      points,
	}
	if won {
		id := winnerID
		result.WinnerID = &id
	}

	next := s
	next.Players = clonePlayers(s.Players)
	for i := range next.Players {
		p := next.Players[i]
		pair := *p.SelectedPair
		newlyBenched := pair[0]
		if newlyBenched == *p.ChosenCard {
			newlyBenched = pair[1]
		}

		hand := make([]int, 0, len(p.Hand))
		for _, c := range p.Hand {
			if c != pair[0] && c != pair[1] {
				hand = append(hand, c)
			}
		}
		// Cards benched in earlier rounds come back.
		for _, c := range p.BenchedCards {
			if c != newlyBenched {
				hand = append(hand, c)
			}
		}

		p.Hand = hand
		p.SelectedPair = nil
		p.ChosenCard = nil
		p.BenchedCards = []int{newlyBenched}
		if won && winnerID == p.ID {
			p.Score += points
		}
		next.Players[i] = p
	}

	next.CurrentRound = s.CurrentRound + 1
	next.Timer = 0
	next.RoundHistory = append(slices.Clone(s.RoundHistory), result)
	if next.CurrentRound > s.TotalRounds {
		next.Phase = PhaseGameOver
	} else {
		next.Phase = PhaseResolve
	}
	return next, true
}

// StartNextRound advances resolve -> select after the post-resolve delay.
func StartNextRound(s State) (State, bool) {
	if s.Phase != PhaseResolve {
		return s, false
	}
	next := s
	next.Phase = PhaseSelect
	return next, true
}

// AutoSelectPair is the disconnect default: the two lowest playable cards.
func AutoSelectPair(s State, playerID int) (State, bool) {
	p, ok := s.player(playerID)
	if !ok {
		return s, false
	}
	available := make([]int, 0, len(p.Hand))
	for _, c := range p.Hand {
		if !slices.Contains(p.BenchedCards, c) {
			available = append(available, c)
		}
	}
	if len(available) < 2 {
		return s, false
	}
	slices.Sort(available)
	return SelectPair(s, playerID, [2]int{available[0], available[1]})
}

// AutoChooseCard is the disconnect default: the lower card of the pair.
func AutoChooseCard(s State, playerID int) (State, bool) {
	p, ok := s.player(playerID)
	if !ok || p.SelectedPair == nil {
		return s, false
	}
	pair := *p.SelectedPair
	return ChooseCard(s, playerID, min(pair[0], pair[1]))
}
