package insurance

import "fmt"

// Privacy rules: a player always sees their own bids; other players' bids stay
// hidden during bidding and become visible from reveal on. The deck is only
// exposed as aggregate counts and the price ceilings are never sent at all.

type ClientSelf struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Money      int    `json:"money"`
	HealthyBid *int   `json:"healthyBid"`
	SickBid    *int   `json:"sickBid"`
}

type ClientPlayer struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Money      int    `json:"money"`
	HasBid     bool   `json:"hasBid"`
	HealthyBid *int   `json:"healthyBid"`
	SickBid    *int   `json:"sickBid"`
	Connected  bool   `json:"connected"`
}

type DeckInfo struct {
	Remaining        int `json:"remaining"`
	HealthyRemaining int `json:"healthyRemaining"`
	SickRemaining    int `json:"sickRemaining"`
}

type ClientState struct {
	Phase        Phase          `json:"phase"`
	CurrentRound int            `json:"currentRound"`
	TotalRounds  int            `json:"totalRounds"`
	Timer        int            `json:"timer"`
	Paused       bool           `json:"paused"`
	People       []Person       `json:"people"`
	Draws        []DrawResult   `json:"draws"`
	DeckInfo     DeckInfo       `json:"deckInfo"`
	RoundHistory []RoundResult  `json:"roundHistory"`
	You          ClientSelf     `json:"you"`
	Players      []ClientPlayer `json:"players"`
}

func revealsBids(phase Phase) bool {
	return phase != PhaseBidding
}

// FilterStateForPlayer projects the authoritative state into the view for one
// player. Panics if playerID is not part of the game: that is a contract
// violation in the caller, not client misuse.
func FilterStateForPlayer(s State, playerID int, connected map[int]bool) ClientState {
	self, ok := s.player(playerID)
	if !ok {
		panic(fmt.Sprintf("insurance: player %d not in game state", playerID))
	}

	deck := DeckInfo{Remaining: len(s.Deck)}
	for _, c := range s.Deck {
		if c.Healthy {
			deck.HealthyRemaining++
		} else {
			deck.SickRemaining++
		}
	}

	players := make([]ClientPlayer, len(s.Players))
	for i, p := range s.Players {
		cp := ClientPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Money:     p.Money,
			HasBid:    p.HealthyBid != nil && p.SickBid != nil,
			Connected: connected[p.ID],
		}
		if revealsBids(s.Phase) {
			cp.HealthyBid = p.HealthyBid
			cp.SickBid = p.SickBid
		}
		players[i] = cp
	}

	return ClientState{
		Phase:        s.Phase,
		CurrentRound: s.CurrentRound,
		TotalRounds:  s.TotalRounds,
		Timer:        s.Timer,
		Paused:       s.Paused,
		People:       s.People,
		Draws:        s.Draws,
		DeckInfo:     deck,
		RoundHistory: s.RoundHistory,
		You: ClientSelf{
			ID:         self.ID,
			Name:       self.Name,
			Money:      self.Money,
			HealthyBid: self.HealthyBid,
			SickBid:    self.SickBid,
		},
		Players: players,
	}
}
