package insurance

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
)

const GameType = "insurance"

type SubmitBidAction struct {
	HealthyPrice int `json:"healthyPrice"`
	SickPrice    int `json:"sickPrice"`
}

type RequestStateAction struct{}

type SkipTimerAction struct{}

type TogglePauseAction struct{}

func (SubmitBidAction) ActionType() string    { return "SUBMIT_BID" }
func (RequestStateAction) ActionType() string { return "REQUEST_STATE" }
func (SkipTimerAction) ActionType() string    { return "SKIP_TIMER" }
func (TogglePauseAction) ActionType() string  { return "TOGGLE_PAUSE" }

type adapter struct {
	log *zap.Logger
}

// NewAdapter returns the lobby-facing descriptor for this variant.
func NewAdapter(log *zap.Logger) game.Adapter { return adapter{log: log} }

func (adapter) GameType() string { return GameType }
func (adapter) MinPlayers() int  { return 2 }
func (adapter) MaxPlayers() int  { return 8 }

func (a adapter) NewInstance(players []game.PlayerInfo, mu *sync.Mutex, cb game.Callbacks) game.Instance {
	return newRoom(players, mu, cb, a.log)
}

func (adapter) ValidateAction(raw json.RawMessage) (game.Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid game action: %w", err)
	}

	switch head.Type {
	case "SUBMIT_BID":
		var a SubmitBidAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid SUBMIT_BID: %w", err)
		}
		if a.HealthyPrice < 1 || a.HealthyPrice > 999 {
			return nil, fmt.Errorf("SUBMIT_BID: healthy price %d out of range", a.HealthyPrice)
		}
		if a.SickPrice < 1 || a.SickPrice > 999 {
			return nil, fmt.Errorf("SUBMIT_BID: sick price %d out of range", a.SickPrice)
		}
		return a, nil
	case "REQUEST_STATE":
		return RequestStateAction{}, nil
	case "SKIP_TIMER":
		return SkipTimerAction{}, nil
	case "TOGGLE_PAUSE":
		return TogglePauseAction{}, nil
	default:
		return nil, &game.UnknownActionError{Type: head.Type}
	}
}
