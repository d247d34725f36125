package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsLobbyCommand(t *testing.T) {
	for _, cmd := range []string{MsgCreateRoom, MsgJoinRoom, MsgLeaveRoom, MsgSetReady, MsgStartGame, MsgPing} {
		require.True(t, IsLobbyCommand(cmd), cmd)
	}

	// anything else is routed to the active game variant
	require.False(t, IsLobbyCommand("SELECT_PAIR"))
	require.False(t, IsLobbyCommand("SUBMIT_BID"))
	require.False(t, IsLobbyCommand(""))
}
