package insurance

import "math/rand"

type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// Card is one deck card. Black suits mean a healthy person, red suits a sick
// one.
type Card struct {
	Suit    Suit   `json:"suit"`
	Rank    string `json:"rank"`
	Healthy bool   `json:"isHealthy"`
}

var ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

func newDeck() []Card {
	cards := make([]Card, 0, 52)
	for _, suit := range []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades} {
		healthy := suit == SuitClubs || suit == SuitSpades
		for _, rank := range ranks {
			cards = append(cards, Card{Suit: suit, Rank: rank, Healthy: healthy})
		}
	}
	return cards
}

func shuffleDeck(deck []Card, rng *rand.Rand) []Card {
	shuffled := make([]Card, len(deck))
	copy(shuffled, deck)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
