package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/internal/lobby"
)

type healthResponse struct {
	Status      string   `json:"status"`
	Uptime      string   `json:"uptime"`
	Connections int      `json:"connections"`
	Rooms       int      `json:"rooms"`
	GameTypes   []string `json:"gameTypes"`
}

func Healthz(conns *conn.Manager, lobbies *lobby.Manager, games *game.Registry, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:      "ok",
			Uptime:      time.Since(startedAt).Round(time.Second).String(),
			Connections: conns.Count(),
			Rooms:       lobbies.RoomCount(),
			GameTypes:   games.Types(),
		})
	}
}
