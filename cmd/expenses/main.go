package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	"expenses/internal/ledger"
	"expenses/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, logger := cli.MustLoad(log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage", log.FieldError, err.Error())
		}
	}()

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger)}
	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		// the mirror catches up from the store, so recording keeps working
		logger.Warn("Continuing without expense.recorded events", log.FieldError, err.Error())
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(amqpClient))
	}

	cacheSize := cfg.ReadCacheSize()
	if cacheSize == 0 {
		logger.Info("Read cache disabled", "backend", cfg.DataBackend)
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger.New(store.Store, ledgerOpts...),
		apphttp.WithLogger(logger),
		apphttp.WithCache(cacheSize, cfg.CacheTTL),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
