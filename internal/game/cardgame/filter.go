package cardgame

import "fmt"

// Privacy rules by phase:
//
//	| Field        | Self   | Others (select) | Others (reveal/choose) | Others (resolve+) |
//	|--------------|--------|-----------------|------------------------|-------------------|
//	| hand         | always | never           | never                  | never             |
//	| selectedPair | always | never           | visible                | visible           |
//	| chosenCard   | always | never           | never                  | visible           |
//	| benchedCards | always | never           | never                  | never             |
//	| score        | always | always          | always                 | always            |

type ClientSelf struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	Hand         []int   `json:"hand"`
	SelectedPair *[2]int `json:"selectedPair"`
	ChosenCard   *int    `json:"chosenCard"`
	BenchedCards []int   `json:"benchedCards"`
}

type ClientPlayer struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	Score            int     `json:"score"`
	HasSelectedPair  bool    `json:"hasSelectedPair"`
	HasChosenCard    bool    `json:"hasChosenCard"`
	SelectedPair     *[2]int `json:"selectedPair"`
	ChosenCard       *int    `json:"chosenCard"`
	BenchedCardCount int     `json:"benchedCardCount"`
	Connected        bool    `json:"connected"`
}

type ClientState struct {
	Phase        Phase         `json:"phase"`
	CurrentRound int           `json:"currentRound"`
	TotalRounds  int           `json:"totalRounds"`
	Timer        int           `json:"timer"`
	RoundHistory []RoundResult `json:"roundHistory"`
	You          ClientSelf    `json:"you"`
	Players      []ClientPlayer `json:"players"`
}

func revealsSelectedPair(phase Phase) bool {
	switch phase {
	case PhaseReveal, PhaseChoose, PhaseResolve, PhaseGameOver:
		return true
	}
	return false
}

func revealsChosenCard(phase Phase) bool {
	return phase == PhaseResolve || phase == PhaseGameOver
}

// FilterStateForPlayer projects the authoritative state into the view for one
// player. Panics if playerID is not part of the game: that is a contract
// violation in the caller, not client misuse.
func FilterStateForPlayer(s State, playerID int, connected map[int]bool) ClientState {
	self, ok := s.player(playerID)
	if !ok {
		panic(fmt.Sprintf("cardgame: player %d not in game state", playerID))
	}

	players := make([]ClientPlayer, len(s.Players))
	for i, p := range s.Players {
		cp := ClientPlayer{
			ID:               p.ID,
			Name:             p.Name,
			Score:            p.Score,
			HasSelectedPair:  p.SelectedPair != nil,
			HasChosenCard:    p.ChosenCard != nil,
			BenchedCardCount: len(p.BenchedCards),
			Connected:        connected[p.ID],
		}
		if revealsSelectedPair(s.Phase) {
			cp.SelectedPair = p.SelectedPair
		}
		if revealsChosenCard(s.Phase) {
			cp.ChosenCard = p.ChosenCard
		}
		players[i] = cp
	}

	return ClientState{
		Phase:        s.Phase,
		CurrentRound: s.CurrentRound,
		TotalRounds:  s.TotalRounds,
		Timer:        s.Timer,
		RoundHistory: s.RoundHistory,
		You: ClientSelf{
			ID:           self.ID,
			Name:         self.Name,
			Score:        self.Score,
			Hand:         self.Hand,
			SelectedPair: self.SelectedPair,
			ChosenCard:   self.ChosenCard,
			BenchedCards: self.BenchedCards,
		},
		Players: players,
	}
}
