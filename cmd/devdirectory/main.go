// Package main provides a development directory server backed by a YAML
// fixture. It serves the account and permission endpoints the session server
// queries, so a full stack can run without the real directory service.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/config"
	"github.com/rolecall/rolecall/internal/directory"
	"github.com/rolecall/rolecall/internal/observability"
	"github.com/rolecall/rolecall/internal/server"
)

func main() {
	fixturePath := flag.String("fixture", "configs/directory-fixture.yaml", "path to directory fixture YAML")
	addr := flag.String("addr", "0.0.0.0:8000", "listen address")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	static, err := directory.LoadStatic(*fixturePath)
	if err != nil {
		logger.Fatal("loading directory fixture", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           directory.NewHandler(static, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("directory listening",
				zap.String("addr", *addr),
				zap.String("fixture", *fixturePath),
			)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
		},
	})

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
