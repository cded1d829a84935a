package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fazecat/hpsscanner/Internal/handlers"
	"github.com/fazecat/hpsscanner/Internal/logger"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
	"github.com/fazecat/hpsscanner/cmd/api/internal"
)

func main() {
	env, err := config.LoadEnv(".env", "../../.env")
	if err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}
	logger.Setup(env.LogLevel, env.LogFormat, os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := handlers.Bootstrap(ctx, cfg, env)
	if err != nil {
		log.Fatalf("Failed to start scanner: %v", err)
	}
	defer app.Close()

	jwtManager, err := internal.NewJWTManager(env.JWTSecret)
	if err != nil {
		log.Fatalf("Cannot protect reset endpoint: %v", err)
	}

	events := internal.NewEventFeed(200)
	if err := events.Attach(app.Scanner.Bus()); err != nil {
		log.Fatalf("Failed to subscribe to scanner events: %v", err)
	}

	apiServer := &internal.API{
		Scanner:       app.Scanner,
		JWTManager:    jwtManager,
		AdminPassword: env.AdminPass,
		Events:        events,
	}

	if len(env.ScanWatchlists) > 0 {
		go handlers.StartBackgroundScanner(ctx, app.Scanner, env.ScanWatchlists, env.ScanInterval, nil)
	}

	srv := &http.Server{
		Addr:              env.HTTPAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Starting API server on %s", env.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
