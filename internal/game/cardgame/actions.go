package cardgame

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/game"
)

const GameType = "card-game"

// Actions accepted during a game of this variant.

type SelectPairAction struct {
	Cards [2]int `json:"cards"`
}

type ChooseCardAction struct {
	Card int `json:"card"`
}

type RequestStateAction struct{}

type SkipTimerAction struct{}

func (SelectPairAction) ActionType() string   { return "SELECT_PAIR" }
func (ChooseCardAction) ActionType() string   { return "CHOOSE_CARD" }
func (RequestStateAction) ActionType() string { return "REQUEST_STATE" }
func (SkipTimerAction) ActionType() string    { return "SKIP_TIMER" }

type adapter struct {
	log *zap.Logger
}

// NewAdapter returns the lobby-facing descriptor for this variant.
func NewAdapter(log *zap.Logger) game.Adapter { return adapter{log: log} }

func (adapter) GameType() string { return GameType }
func (adapter) MinPlayers() int  { return 2 }
func (adapter) MaxPlayers() int  { return 4 }

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
	case "SELECT_PAIR":
		var a SelectPairAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid SELECT_PAIR: %w", err)
		}
		for _, c := range a.Cards {
			if c < 1 || c > handSize {
				return nil, fmt.Errorf("SELECT_PAIR: card %d out of range", c)
			}
		}
		return a, nil
	case "CHOOSE_CARD":
		var a ChooseCardAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid CHOOSE_CARD: %w", err)
		}
		if a.Card < 1 || a.Card > handSize {
			return nil, fmt.Errorf("CHOOSE_CARD: card %d out of range", a.Card)
		}
		return a, nil
	case "REQUEST_STATE":
		return RequestStateAction{}, nil
	case "SKIP_TIMER":
		return SkipTimerAction{}, nil
	default:
		return nil, &game.UnknownActionError{Type: head.Type}
	}
}
