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

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_chains/internal/chain"
	"github.com/eddiefleurent/stamford_chains/internal/config"
	"github.com/eddiefleurent/stamford_chains/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		logger.Fatalf("Invalid session timezone: %v", err)
	}
	startMin, endMin, err := cfg.Session.Band()
	if err != nil {
		logger.Fatalf("Invalid session band: %v", err)
	}

	logger.Infof("Loading dataset from %s", cfg.Dataset.Path)
	loader, err := chain.New(cfg.Dataset.Path, chain.Options{
		Logger:       logger,
		Location:     loc,
		SessionStart: startMin,
		SessionEnd:   endMin,
	})
	if err != nil {
		logger.Fatalf("Failed to load dataset: %v", err)
	}

	srv := server.NewServer(server.Config{
		Port:      cfg.Server.Port,
		AuthToken: cfg.Server.AuthToken,
		DefaultFilters: chain.Filters{
			MinVolume:      cfg.Filters.MinVolume,
			MaxDTE:         cfg.Filters.MaxDTE,
			StrikeRangePct: cfg.Filters.StrikeRangePct,
			IncludeExpired: cfg.Filters.IncludeExpiredRows(),
		},
	}, loader, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received %s, shutting down...", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}
