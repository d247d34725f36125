// Package types defines the wire messages exchanged with game clients.
package types

import "encoding/json"

// Client -> Server lobby commands. Game actions are not listed here: anything
// with an unrecognized type is treated as an opaque game action and handed to
// the active game variant's adapter for validation.

type ClientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName,omitempty"`
	GameType   string `json:"gameType,omitempty"`
	RoomCode   string `json:"roomCode,omitempty"`
	Ready      bool   `json:"ready,omitempty"`

	// Raw carries the full original payload so game actions can be re-parsed
	// by the variant adapter.
	Raw json.RawMessage `json:"-"`
}

const (
	MsgCreateRoom = "CREATE_ROOM"
	MsgJoinRoom   = "JOIN_ROOM"
	MsgLeaveRoom  = "LEAVE_ROOM"
	MsgSetReady   = "SET_READY"
	MsgStartGame  = "START_GAME"
	MsgPing       = "PING"
)

// IsLobbyCommand reports whether t names one of the fixed lobby commands.
func IsLobbyCommand(t string) bool {
	switch t {
	case MsgCreateRoom, MsgJoinRoom, MsgLeaveRoom, MsgSetReady, MsgStartGame, MsgPing:
		return true
	}
	return false
}

// Server -> Client events.

type LobbyPlayer struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

type SessionEstablished struct {
	Type      string `json:"type"` // "SESSION_ESTABLISHED"
	SessionID string `json:"sessionId"`
}

type RoomCreated struct {
	Type     string `json:"type"` // "ROOM_CREATED"
	RoomCode string `json:"roomCode"`
	PlayerID int    `json:"playerId"`
	GameType string `json:"gameType"`
}

type RoomJoined struct {
	Type     string        `json:"type"` // "ROOM_JOINED"
	RoomCode string        `json:"roomCode"`
	PlayerID int           `json:"playerId"`
	Players  []LobbyPlayer `json:"players"`
	GameType string        `json:"gameType"`
}

type PlayerJoined struct {
	Type   string      `json:"type"` // "PLAYER_JOINED"
	Player LobbyPlayer `json:"player"`
}

type PlayerLeft struct {
	Type     string `json:"type"` // "PLAYER_LEFT"
	PlayerID int    `json:"playerId"`
}

type PlayerDisconnected struct {
	Type     string `json:"type"` // "PLAYER_DISCONNECTED"
	PlayerID int    `json:"playerId"`
}

type PlayerReconnected struct {
	Type     string `json:"type"` // "PLAYER_RECONNECTED"
	PlayerID int    `json:"playerId"`
}

type PlayerReady struct {
	Type     string `json:"type"` // "PLAYER_READY"
	PlayerID int    `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type RoomClosed struct {
	Type   string `json:"type"` // "ROOM_CLOSED"
	Reason string `json:"reason"`
}

type Pong struct {
	Type string `json:"type"` // "PONG"
}

// ErrorCode classifies protocol errors reported to the acting connection.
type ErrorCode string

const (
	ErrInvalidMessage   ErrorCode = "INVALID_MESSAGE"
	ErrRoomNotFound     ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomFull         ErrorCode = "ROOM_FULL"
	ErrNotInRoom        ErrorCode = "NOT_IN_ROOM"
	ErrNotHost          ErrorCode = "NOT_HOST"
	ErrNotEnoughPlayers ErrorCode = "NOT_ENOUGH_PLAYERS"
	ErrPlayersNotReady  ErrorCode = "PLAYERS_NOT_READY"
	ErrInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrGameNotStarted   ErrorCode = "GAME_NOT_STARTED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrNameTaken        ErrorCode = "NAME_TAKEN"
)

type ErrorMessage struct {
	Type    string    `json:"type"` // "ERROR"
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) ErrorMessage {
	return ErrorMessage{Type: "ERROR", Code: code, Message: message}
}
