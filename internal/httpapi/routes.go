// Package httpapi wires the HTTP surface: the health endpoint and the
// websocket upgrade path.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/internal/lobby"
	"github.com/lowball/card-game-backend/internal/ws"
)

func SetupRoutes(conns *conn.Manager, lobbies *lobby.Manager, games *game.Registry, originPatterns []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz(conns, lobbies, games, time.Now()))
	r.Get("/ws", ws.Handler(conns, lobbies, originPatterns, log))
	return r
}
