package cardgame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func filterFixture(t *testing.T) State {
	t.Helper()
	s := NewGame(2)
	s = selectAll(t, s, map[int][2]int{0: {3, 5}, 1: {2, 7}})
	return s
}

func allConnected(n int) map[int]bool {
	m := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		m[i] = true
	}
	return m
}

func TestFilterSelfSeesEverything(t *testing.T) {
	s := filterFixture(t)
	view := FilterStateForPlayer(s, 0, allConnected(2))

	require.Equal(t, 0, view.You.ID)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, view.You.Hand)
	require.Equal(t, [2]int{3, 5}, *view.You.SelectedPair)
}

func TestFilterHidesPairsDuringSelect(t *testing.T) {
	s := filterFixture(t)
	view := FilterStateForPlayer(s, 0, allConnected(2))

	other := view.Players[1]
	require.True(t, other.HasSelectedPair)
	require.Nil(t, other.SelectedPair)
	require.Nil(t, other.ChosenCard)
}

func TestFilterRevealsPairsFromRevealOn(t *testing.T) {
	s := filterFixture(t)
	s, _ = StartReveal(s)

	view := FilterStateForPlayer(s, 0, allConnected(2))
	other := view.Players[1]
	require.Equal(t, [2]int{2, 7}, *other.SelectedPair)
	require.Nil(t, other.ChosenCard, "chosen card stays hidden until resolve")
}

func TestFilterHidesChosenCardUntilResolve(t *testing.T) {
	s := filterFixture(t)
	s, _ = StartReveal(s)
	s, _ = StartChoose(s)
	s = chooseAll(t, s, map[int]int{0: 3, 1: 2})

	view := FilterStateForPlayer(s, 0, allConnected(2))
	require.Nil(t, view.Players[1].ChosenCard)
	require.True(t, view.Players[1].HasChosenCard)
	require.Equal(t, 3, *view.You.ChosenCard)

	s, _ = ResolveRound(s)
	view = FilterStateForPlayer(s, 0, allConnected(2))
	// pairs and chosen cards from the just-resolved round are cleared by the
	// engine, so the history carries what was played
	require.Len(t, view.RoundHistory, 1)
}

func TestFilterBenchedCardsAsCountOnly(t *testing.T) {
	s := filterFixture(t)
	s, _ = StartReveal(s)
	s, _ = StartChoose(s)
	s = chooseAll(t, s, map[int]int{0: 3, 1: 2})
	s, _ = ResolveRound(s)

	view := FilterStateForPlayer(s, 0, allConnected(2))
	require.Equal(t, []int{5}, view.You.BenchedCards)
	require.Equal(t, 1, view.Players[1].BenchedCardCount)
}

func TestFilterConnectionFlags(t *testing.T) {
	s := filterFixture(t)
	view := FilterStateForPlayer(s, 0, map[int]bool{0: true})

	require.True(t, view.Players[0].Connected)
	require.False(t, view.Players[1].Connected)
}

func TestFilterPanicsOnUnknownPlayer(t *testing.T) {
	s := NewGame(2)
	require.Panics(t, func() {
		FilterStateForPlayer(s, 9, allConnected(2))
	})
}
