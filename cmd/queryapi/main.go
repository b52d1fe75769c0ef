// Command queryapi runs the read-side HTTP service, serving bank-account
// views straight from the PostgreSQL read store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openledger/banking/api"
	"github.com/openledger/banking/config"
	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/query"
	"github.com/openledger/banking/readstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("query api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := readstore.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	repo, err := readstore.NewGormRepository(db)
	if err != nil {
		return err
	}

	bus := cqrs.NewQueryBus()
	query.RegisterHandlers(bus, repo)

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewQueryAPI(bus, logger).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("query api listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
