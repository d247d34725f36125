package game

// Server -> client game events shared by the variants. State payloads are the
// per-player filtered views, so these are always sent per player or to the
// connected set only.

type StateMsg struct {
	Type  string `json:"type"` // "GAME_STARTED" | "STATE_UPDATE"
	State any    `json:"state"`
}

type PhaseChangedMsg struct {
	Type  string `json:"type"` // "PHASE_CHANGED"
	Phase string `json:"phase"`
	State any    `json:"state"`
}

type TimerTickMsg struct {
	Type  string `json:"type"` // "TIMER_TICK"
	Timer int    `json:"timer"`
}

// EventMsg is a bare marker event such as TIMER_EXPIRED or ALL_PAIRS_SELECTED.
type EventMsg struct {
	Type string `json:"type"`
}

// PlayerEventMsg announces that a player acted without exposing what they did
// (PAIR_SELECTED, CARD_CHOSEN, BID_SUBMITTED).
type PlayerEventMsg struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
}

type RoundResultMsg struct {
	Type   string `json:"type"` // "ROUND_RESULT"
	Result any    `json:"result"`
	State  any    `json:"state"`
}

type GameOverMsg struct {
	Type        string `json:"type"` // "GAME_OVER"
	State       any    `json:"state"`
	FinalScores any    `json:"finalScores"`
}
