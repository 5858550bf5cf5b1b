package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discoveryserver/app"
	"discoveryserver/config"
	"discoveryserver/server"
	"discoveryserver/server/services"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to assemble application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	service := services.NewDiscoveryService(
		application.Orchestrator, application.Locations, application.RunConfig)
	srv := server.NewServer(cfg, service, application.Locations, application.Cache)

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
