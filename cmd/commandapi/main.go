// Command commandapi runs the write-side HTTP service: it accepts account
// commands, appends the resulting events to the event store and publishes
// them onto the Redis Streams log.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openledger/banking/account"
	"github.com/openledger/banking/api"
	"github.com/openledger/banking/config"
	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/cqrs/eventbus/redisstream"
	"github.com/openledger/banking/cqrs/eventstore/disk"
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
		logger.Fatal("command api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := disk.NewStore(cfg.EventStoreDir)
	if err != nil {
		return err
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	publisher := redisstream.NewPublisher(rdb)

	bus := cqrs.NewCommandBus(64, 8)
	defer bus.Stop()
	account.RegisterHandlers(bus, store, publisher, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewCommandAPI(bus, logger).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("command api listening", zap.String("addr", cfg.HTTPAddr))
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
