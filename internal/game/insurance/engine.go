// Package insurance implements the insurance-bidding variant: each round
// players post sealed prices for insuring healthy and sick people, one person
// is drawn per player from a shared deck, and the lowest eligible price wins
// each contract at a fixed cost.
package insurance

import (
	"math/rand"
	"slices"
)

type Phase string

const (
	PhaseBidding  Phase = "bidding"
	PhaseReveal   Phase = "reveal"
	PhaseDrawing  Phase = "drawing"
	PhaseResults  Phase = "results"
	PhaseGameOver Phase = "gameOver"
)

const (
	healthyCost        = 40
	sickCost           = 70
	defaultTotalRounds = 6

	minHealthyCeiling = 50
	maxHealthyCeiling = 80
	minSickCeiling    = 80
	maxSickCeiling    = 110
)

type Person struct {
	ID int `json:"id"`
}

type Contract struct {
	PlayerID int `json:"playerId"`
	Price    int `json:"price"`
	Cost     int `json:"cost"`
	Profit   int `json:"profit"`
}

type DrawResult struct {
	PersonID int       `json:"personId"`
	Card     Card      `json:"card"`
	Healthy  bool      `json:"isHealthy"`
	Contract *Contract `json:"contract"`
}

type Player struct {
	ID         int
	Name       string
	Money      int
	HealthyBid *int
	SickBid    *int
}

type PlayerProfit struct {
	PlayerID    int `json:"playerId"`
	RoundProfit int `json:"roundProfit"`
	TotalMoney  int `json:"totalMoney"`
}

type RoundResult struct {
	Round         int            `json:"round"`
	People        []Person       `json:"people"`
	Draws         []DrawResult   `json:"draws"`
	PlayerProfits []PlayerProfit `json:"playerProfits"`
}

// State is the authoritative game value; reducers return a fresh value on
// success and the input unchanged otherwise. The per-person ceilings are
// rolled once at game creation and never exposed to clients.
type State struct {
	Phase          Phase
	CurrentRound   int
	TotalRounds    int
	Timer          int
	HealthyCeiling int
	SickCeiling    int
	Paused         bool
	Players        []Player
	People         []Person
	Deck           []Card
	Draws          []DrawResult
	RoundHistory   []RoundResult
}

func randomInt(rng *rand.Rand, min, max int) int {
	return rng.Intn(max-min+1) + min
}

func NewGame(playerCount int, rng *rand.Rand) State {
	players := make([]Player, playerCount)
	for i := range players {
		players[i] = Player{ID: i}
	}

	s := State{
		Phase:          PhaseBidding,
		CurrentRound:   1,
		TotalRounds:    defaultTotalRounds,
		HealthyCeiling: randomInt(rng, minHealthyCeiling, maxHealthyCeiling),
		SickCeiling:    randomInt(rng, minSickCeiling, maxSickCeiling),
		Players:        players,
		Deck:           shuffleDeck(newDeck(), rng),
		RoundHistory:   []RoundResult{},
	}
	return setupRound(s)
}

// setupRound clears bids and deals one person per player.
func setupRound(s State) State {
	people := make([]Person, len(s.Players))
	for i := range people {
		people[i] = Person{ID: i}
	}

	players := clonePlayers(s.Players)
	for i := range players {
		players[i].HealthyBid = nil
		players[i].SickBid = nil
	}

	s.Phase = PhaseBidding
	s.People = people
	s.Players = players
	s.Draws = []DrawResult{}
	return s
}

func clonePlayers(players []Player) []Player {
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

func (s State) player(playerID int) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// SubmitBid records a player's sealed prices for the round. Bids are
// submitted as a pair and each must be at least 1.
func SubmitBid(s State, playerID, healthyBid, sickBid int) (State, bool) {
	if s.Phase != PhaseBidding {
		return s, false
	}
	p, ok := s.player(playerID)
	if !ok || p.HealthyBid != nil {
		return s, false
	}
	if healthyBid < 1 || sickBid < 1 {
		return s, false
	}

	next := s
	next.Players = clonePlayers(s.Players)
	for i := range next.Players {
		if next.Players[i].ID == playerID {
			h, sk := healthyBid, sickBid
			next.Players[i].HealthyBid = &h
			next.Players[i].SickBid = &sk
		}
	}
	return next, true
}

func AllBidsSubmitted(s State) bool {
	for _, p := range s.Players {
		if p.HealthyBid == nil || p.SickBid == nil {
			return false
		}
	}
	return true
}

// StartReveal advances bidding -> reveal once every bid is in.
func StartReveal(s State) (State, bool) {
	if s.Phase != PhaseBidding || !AllBidsSubmitted(s) {
		return s, false
	}
	next := s
	next.Phase = PhaseReveal
	return next, true
}

// DrawAndAssign draws one card per person and awards each contract to the
// lowest eligible bid. A bid is eligible while it is at or under the hidden
// ceiling and has not already won a contract of that type this round; ties at
// the lowest price are broken uniformly at random. The winner's bid for that
// type is voided for the rest of the round.
func DrawAndAssign(s State, rng *rand.Rand) (State, bool) {
	if s.Phase != PhaseReveal {
		return s, false
	}

	deck := slices.Clone(s.Deck)
	players := clonePlayers(s.Players)
	draws := make([]DrawResult, 0, len(s.People))

	for _, person := range s.People {
		if len(deck) == 0 {
			draws = append(draws, DrawResult{
				PersonID: person.ID,
				Card:     Card{Suit: SuitSpades, Rank: "X", Healthy: true},
				Healthy:  true,
			})
			continue
		}

		card := deck[0]
		deck = deck[1:]

		ceiling := s.SickCeiling
		cost := sickCost
		if card.Healthy {
			ceiling = s.HealthyCeiling
			cost = healthyCost
		}

		type eligibleBid struct {
			playerIdx int
			price     int
		}
		var eligible []eligibleBid
		for i := range players {
			bid := players[i].SickBid
			if card.Healthy {
				bid = players[i].HealthyBid
			}
			if bid != nil && *bid <= ceiling {
				eligible = append(eligible, eligibleBid{playerIdx: i, price: *bid})
			}
		}

		var contract *Contract
		if len(eligible) > 0 {
			lowest := eligible[0].price
			for _, e := range eligible[1:] {
				if e.price < lowest {
					lowest = e.price
				}
			}
			tied := eligible[:0:0]
			for _, e := range eligible {
				if e.price == lowest {
					tied = append(tied, e)
				}
			}
			winner := tied[0]
			if len(tied) > 1 {
				winner = tied[rng.Intn(len(tied))]
			}

			contract = &Contract{
				PlayerID: players[winner.playerIdx].ID,
				Price:    winner.price,
				Cost:     cost,
				Profit:   winner.price - cost,
			}
			players[winner.playerIdx].Money += contract.Profit
			if card.Healthy {
				players[winner.playerIdx].HealthyBid = nil
			} else {
				players[winner.playerIdx].SickBid = nil
			}
		}

		draws = append(draws, DrawResult{
			PersonID: person.ID,
			Card:     card,
			Healthy:  card.Healthy,
			Contract: contract,
		})
	}

	next := s
	next.Phase = PhaseDrawing
	next.Deck = deck
	next.Players = players
	next.Draws = draws
	return next, true
}

// StartResults folds the round's draws into history and advances to results,
// or to gameOver after the final round.
func StartResults(s State) (State, bool) {
	if s.Phase != PhaseDrawing {
		return s, false
	}

	profits := make([]PlayerProfit, len(s.Players))
	for i, p := range s.Players {
		round := 0
		for _, d := range s.Draws {
			if d.Contract != nil && d.Contract.PlayerID == p.ID {
				round += d.Contract.Profit
			}
		}
		profits[i] = PlayerProfit{PlayerID: p.ID, RoundProfit: round, TotalMoney: p.Money}
	}

	result := RoundResult{
		Round:         s.CurrentRound,
		People:        s.People,
		Draws:         s.Draws,
		PlayerProfits: profits,
	}

	next := s
	next.RoundHistory = append(slices.Clone(s.RoundHistory), result)
	if s.CurrentRound >= s.TotalRounds {
		next.Phase = PhaseGameOver
	} else {
		next.Phase = PhaseResults
	}
	return next, true
}

// StartNextRound advances results -> bidding.
func StartNextRound(s State) (State, bool) {
	if s.Phase != PhaseResults {
		return s, false
	}
	next := s
	next.CurrentRound = s.CurrentRound + 1
	return setupRound(next), true
}
