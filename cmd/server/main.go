// Package main - Entry point for the premium rating server
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

	"premium-rater/api"
	"premium-rater/core/rating"
	"premium-rater/core/tables"
	"premium-rater/internal/config"
	"premium-rater/internal/logging"
)

const version = "0.1.0"

func main() {
	cfgFile := flag.String("config", "", "Config file (JSON or YAML)")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	if err := run(*cfgFile, *addr); err != nil {
		logging.Error("server stopped", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func run(cfgFile, addr string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	log := logging.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := tables.Open(cfg.Tables.Source, cfg.Tables.Path)
	if err != nil {
		return err
	}
	if c, ok := source.(interface{ Close() error }); ok {
		defer c.Close()
	}

	cached := tables.NewCached(source)
	cached.Check = func(t *tables.Tables) error {
		_, err := rating.NewEngine(t)
		return err
	}

	// fail fast on an unusable calibration
	if _, err := cached.Tables(ctx); err != nil {
		return err
	}

	if cfg.Tables.Watch {
		w, err := tables.NewWatcher(cached, time.Duration(cfg.Tables.DebounceMillis)*time.Millisecond)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(cached, api.Options{
			Version:  version,
			MaxBatch: cfg.Server.MaxBatch,
			Workers:  cfg.Server.Workers,
			Logger:   logging.Named("api"),
		}),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("premium rating server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", version),
			zap.String("tables", cfg.Tables.Source),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
