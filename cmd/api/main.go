package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/api"
	"github.com/IlyasAtabaev731/family-finance/internal/app"
	"github.com/IlyasAtabaev731/family-finance/internal/config"
	"github.com/IlyasAtabaev731/family-finance/internal/lib/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env, os.Stdout)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage.Driver),
	)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("Failed to close application", "error", err)
		}
	}()

	apiServer := api.New(cfg, log, application.Service, []byte(cfg.JWT.Secret))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}
}
