package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/api"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/config"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/logger"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	sitesReg, err := sites.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return fmt.Errorf("load sites registry: %w", err)
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	server := api.NewServer(store, sitesReg, cfg.APIPageSize)
	httpServer := &http.Server{
		Addr:    cfg.APIListenAddr,
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.InfoObj("api listening", "addr", cfg.APIListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
	}
	return nil
}
