// Package app wires configuration into a running engine and its optional
// backends. Every binary builds its runtime here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/activity"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/cache"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/config"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/ledger"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/observability"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/prefs"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/pricefeed"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/rpc"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/wallet"
)

// Runtime is everything a binary needs to price and execute trades.
// Optional backends are nil when not configured.
type Runtime struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Ledger   *ledger.Client
	Registry *amm.PairRegistry
	Engine   *swapengine.Engine
	Mapper   *command.Mapper
	Signer   swapengine.SignerContext
	Metrics  *observability.Metrics

	Dispatcher *activity.Dispatcher
	Recent     storage.AttemptCache

	Redis   *cache.RedisCache
	PubSub  *cache.PubSubManager
	History *cache.ClickHouseStore
	Prefs   *prefs.Store

	closers []io.Closer
}

// New builds the runtime. A configured backend that cannot be reached is an
// error; an unconfigured one is skipped.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logrus.New()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	registry, err := amm.NewPairRegistry(cfg.PairsConfigPath)
	if err != nil {
		return nil, err
	}
	rt.Registry = registry

	rt.Ledger, err = ledger.NewClient(ledger.Config{
		RPC: rpc.ClientConfig{
			BaseURL:      cfg.LedgerRPCURL,
			Timeout:      cfg.LedgerTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Ledger)

	if cfg.WalletSecret != "" {
		signer, err := wallet.NewKeySigner(cfg.WalletSecret)
		if err != nil {
			return nil, fmt.Errorf("load signer: %w", err)
		}
		rt.Signer = signer
		logger.WithField("account", signer.Account()).Info("signer loaded")
	} else {
		logger.Warn("WALLET_SECRET not set, trades will fail with missing credential")
	}

	rt.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	rt.Dispatcher = activity.NewDispatcher(activity.DispatcherConfig{
		WriteTimeout: constants.ActivityWriteTimeout,
		Logger:       logger,
	})

	if err := rt.connectBackends(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	rt.Mapper, err = command.NewMapper(command.MapperConfig{
		Registry:    registry,
		Preferences: rt.preferenceSource(),
		DefaultBps:  cfg.DefaultSlippageBps,
		Logger:      logger,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	rt.Engine, err = swapengine.NewEngine(rt.Ledger, swapengine.EngineConfig{
		SubmitTimeout:    cfg.SubmitTimeout,
		AutoRetryDelay:   cfg.AutoRetryDelay,
		ManualRetryDelay: cfg.ManualRetryDelay,
		MaxReserveAge:    cfg.MaxReserveAge,
		SessionRetention: swapengine.DefaultSessionRetention,
		Logger:           logger,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Engine.WithActivity(rt.Dispatcher).WithObserver(rt.Metrics)

	logger.WithFields(logrus.Fields{
		"pairs":      registry.Count(),
		"sinks":      rt.Dispatcher.Sinks(),
		"redis":      rt.Redis != nil,
		"clickhouse": rt.History != nil,
	}).Info("runtime ready")
	return rt, nil
}

func (rt *Runtime) connectBackends(ctx context.Context) error {
	cfg := rt.Config

	if cfg.RedisEnabled() {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		rt.Redis = rc
		rt.closers = append(rt.closers, rc)
		rt.PubSub = cache.NewPubSubManager(rc.Client(), rt.Logger)
		rt.Recent = rc

		store, err := prefs.NewStore(rc.Client())
		if err != nil {
			return err
		}
		rt.Prefs = store

		rt.Dispatcher.AddSink("redis", rc).AddSink("pubsub", rt.PubSub)
	} else {
		log := activity.NewMemoryLog(constants.MaxRecentAttempts)
		rt.Recent = log
		rt.Dispatcher.AddSink("memory", log)
	}

	if cfg.ClickHouseEnabled() {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		rt.closers = append(rt.closers, ch)
		if err := ch.EnsureSchema(ctx); err != nil {
			return err
		}
		rt.History = ch
		rt.Dispatcher.AddSink("clickhouse", ch)
	}
	return nil
}

func (rt *Runtime) preferenceSource() command.PreferenceSource {
	if rt.Prefs == nil {
		return nil
	}
	return rt.Prefs
}

// PriceCache is the Redis price cache, or nil.
func (rt *Runtime) PriceCache() storage.PriceCache {
	if rt.Redis == nil {
		return nil
	}
	return rt.Redis
}

// NewPoller builds the display price poller over the runtime's ledger.
func (rt *Runtime) NewPoller() (*pricefeed.Poller, error) {
	return pricefeed.NewPoller(pricefeed.PollerConfig{
		Source:       rt.Ledger,
		Registry:     rt.Registry,
		Cache:        rt.PriceCache(),
		Recorder:     rt.Metrics,
		PollInterval: rt.Config.PricePollInterval,
		Logger:       rt.Logger,
	})
}

// NewParser builds the LLM command parser, or returns nil when no
// OpenRouter key is configured.
func (rt *Runtime) NewParser() (*command.Parser, error) {
	if rt.Config.OpenRouterAPIKey == "" {
		return nil, nil
	}
	return command.NewParser(command.ParserConfig{
		OpenRouterAPIKey: rt.Config.OpenRouterAPIKey,
		Model:            rt.Config.OpenRouterModel,
		Logger:           rt.Logger,
	})
}

// Close drains pending activity writes and closes every backend.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Dispatcher != nil {
		if err := rt.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain activity: %w", err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
