// Command projection runs the read-model consumer: it tails the Redis
// Streams event log through a consumer group and keeps the PostgreSQL
// bank-account rows up to date.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openledger/banking/config"
	"github.com/openledger/banking/cqrs/eventbus/redisstream"
	"github.com/openledger/banking/projection"
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
		logger.Fatal("projection exited", zap.Error(err))
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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	sub, err := redisstream.NewSubscriber(ctx, rdb, cfg.ConsumerGroup, cfg.ConsumerName, projection.Topics())
	if err != nil {
		return err
	}
	deadLetter := redisstream.NewDeadLetter(rdb, cfg.ConsumerGroup)

	projector := projection.NewProjector(repo, logger)
	consumer := projection.NewConsumer(sub, deadLetter, projector, logger)

	logger.Info("projection consumer started",
		zap.String("group", cfg.ConsumerGroup),
		zap.String("consumer", cfg.ConsumerName),
		zap.Strings("topics", projection.Topics()),
	)
	return consumer.Run(ctx)
}
