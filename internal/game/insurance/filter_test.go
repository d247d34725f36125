package insurance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterHidesOtherBidsDuringBidding(t *testing.T) {
	s := NewGame(2, testRNG(1))
	s, _ = SubmitBid(s, 0, 45, 75)
	s, _ = SubmitBid(s, 1, 50, 80)

	view := FilterStateForPlayer(s, 0, map[int]bool{0: true, 1: true})

	require.Equal(t, 45, *view.You.HealthyBid)
	require.Equal(t, 75, *view.You.SickBid)

	other := view.Players[1]
	require.True(t, other.HasBid)
	require.Nil(t, other.HealthyBid)
	require.Nil(t, other.SickBid)
}

func TestFilterRevealsBidsAfterBidding(t *testing.T) {
	s := NewGame(2, testRNG(1))
	s, _ = SubmitBid(s, 0, 45, 75)
	s, _ = SubmitBid(s, 1, 50, 80)
	s, _ = StartReveal(s)

	view := FilterStateForPlayer(s, 0, map[int]bool{0: true, 1: true})

	other := view.Players[1]
	require.Equal(t, 50, *other.HealthyBid)
	require.Equal(t, 80, *other.SickBid)
}

func TestFilterNeverExposesCeilingsOrDeck(t *testing.T) {
	s := NewGame(3, testRNG(1))
	view := FilterStateForPlayer(s, 1, map[int]bool{0: true, 1: true, 2: true})

	require.Equal(t, 52, view.DeckInfo.Remaining)
	require.Equal(t, 26, view.DeckInfo.HealthyRemaining)
	require.Equal(t, 26, view.DeckInfo.SickRemaining)
	require.Equal(t, 1, view.You.ID)
	require.Len(t, view.Players, 3)
	require.Len(t, view.People, 3)
}

func TestFilterCarriesConnectionFlags(t *testing.T) {
	s := NewGame(2, testRNG(1))
	view := FilterStateForPlayer(s, 0, map[int]bool{0: true})

	require.True(t, view.Players[0].Connected)
	require.False(t, view.Players[1].Connected)
}

func TestFilterPanicsOnUnknownPlayer(t *testing.T) {
	s := NewGame(2, testRNG(1))
	require.Panics(t, func() {
		FilterStateForPlayer(s, 7, map[int]bool{})
	})
}
