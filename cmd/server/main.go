package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lowball/card-game-backend/internal/config"
	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/game"
	"github.com/lowball/card-game-backend/internal/game/cardgame"
	"github.com/lowball/card-game-backend/internal/game/insurance"
	"github.com/lowball/card-game-backend/internal/httpapi"
	"github.com/lowball/card-game-backend/internal/lobby"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	cfg := config.Load()

	port := flag.String("port", "", "listen port (overrides PORT)")
	debug := flag.Bool("debug", false, "debug logging (overrides DEBUG)")
	flag.Parse()
	if *port != "" {
		cfg.Port = *port
	}
	if *debug {
		cfg.Debug = true
	}

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	games := game.NewRegistry()
	games.Register(cardgame.NewAdapter(log))
	games.Register(insurance.NewAdapter(log))

	conns := conn.NewManager(cfg.MaxConnectionsPerIP, log)
	lobbies := lobby.NewManager(conns, games, lobby.DefaultTimeouts(), cfg.MaxRooms, log)

	handler := httpapi.SetupRoutes(conns, lobbies, games, cfg.AllowedOrigins, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// no write timeout: websocket connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Port),
			zap.Strings("gameTypes", games.Types()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}
