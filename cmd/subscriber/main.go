// Command subscriber tails live trade attempts from Redis pub/sub.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/cache"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/config"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

func main() {
	tradeID := flag.String("trade", "", "follow a single trade id")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	cfg := config.Load()
	if !cfg.RedisEnabled() {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pubsub := cache.NewPubSubManager(client, logger)

	logger.Info("starting trade subscriber")

	if *tradeID != "" {
		go func() {
			_ = pubsub.Subscribe(ctx, constants.PubSubChannelTradePrefix+*tradeID, func(a *models.TradeAttempt) {
				logger.WithFields(attemptFields(a)).Info("trade update")
			})
		}()
	} else {
		go func() {
			_ = pubsub.Subscribe(ctx, constants.PubSubChannelAttempts, func(a *models.TradeAttempt) {
				logger.WithFields(attemptFields(a)).Info("attempt")
			})
		}()
	}

	// failures only, by pattern over every outcome channel
	go func() {
		_ = pubsub.PSubscribe(ctx, constants.PubSubChannelOutcomePrefix+"failed_*", func(a *models.TradeAttempt) {
			logger.WithFields(attemptFields(a)).Warn("attempt failed")
		})
	}()

	logger.Info("subscriber running, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("shutting down subscriber")
}

func attemptFields(a *models.TradeAttempt) logrus.Fields {
	f := logrus.Fields{
		"trade":     a.TradeID,
		"attempt":   a.AttemptNumber,
		"direction": a.Request.Direction,
		"amount":    a.Request.InputAmount.String(),
		"tolerance": a.Request.SlippageToleranceBps,
		"outcome":   a.Outcome,
	}
	if a.ErrorKind != "" {
		f["error_kind"] = a.ErrorKind
	}
	if a.TxHash != "" {
		f["tx"] = a.TxHash
	}
	return f
}
