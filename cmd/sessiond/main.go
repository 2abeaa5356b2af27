// Package main provides the session server binary. It wires configuration,
// the directory client, the room registry, and the WebSocket acceptor.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/config"
	"github.com/rolecall/rolecall/internal/directory"
	"github.com/rolecall/rolecall/internal/frontend/ws"
	"github.com/rolecall/rolecall/internal/game/room"
	"github.com/rolecall/rolecall/internal/observability"
	"github.com/rolecall/rolecall/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	fixturePath := flag.String("fixture", "", "path to a static directory fixture YAML; empty = use the HTTP directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var dir directory.Directory
	if *fixturePath != "" {
		static, err := directory.LoadStatic(*fixturePath)
		if err != nil {
			logger.Fatal("loading directory fixture", zap.Error(err))
		}
		dir = static
		logger.Info("using static directory", zap.String("fixture", *fixturePath))
	} else {
		dir = directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.Timeout)
		logger.Info("using http directory", zap.String("base_url", cfg.Directory.BaseURL))
	}

	registry := room.NewRegistry(cfg.Room, logger)
	acceptor := ws.NewAcceptor(cfg.Session, dir, registry, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("room-reaper", registry)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("session server initialized",
		zap.String("listen_addr", cfg.Session.Addr()),
		zap.Duration("room_idle_timeout", cfg.Room.IdleTimeout),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
