package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
)

const DefaultPollInterval = 10 * time.Second

// Recorder is notified after every poll round.
type Recorder interface {
	RecordPricesUpdated(n int)
}

// Poller periodically reads pool reserves for every registered pair and
// keeps a display price snapshot. Snapshots are for display only; trade
// execution always fetches its own reserves.
type Poller struct {
	source       amm.ReserveSource
	registry     *amm.PairRegistry
	store        *MemoryStore
	cache        storage.PriceCache
	recorder     Recorder
	pollInterval time.Duration
	logger       *logrus.Logger
	now          func() time.Time

	mu      sync.Mutex
	running bool
}

// PollerConfig holds configuration for the price poller
type PollerConfig struct {
	Source       amm.ReserveSource
	Registry     *amm.PairRegistry
	Store        *MemoryStore
	Cache        storage.PriceCache
	Recorder     Recorder
	PollInterval time.Duration
	Logger       *logrus.Logger
}

func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("pricefeed: reserve source is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pricefeed: pair registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Poller{
		source:       cfg.Source,
		registry:     cfg.Registry,
		store:        cfg.Store,
		cache:        cfg.Cache,
		recorder:     cfg.Recorder,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

func (p *Poller) Store() *MemoryStore { return p.store }

// Start polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.WithFields(logrus.Fields{
		"interval": p.pollInterval,
		"pairs":    p.registry.Count(),
	}).Info("starting price polling")

	p.PollOnce(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce refreshes every registered pair and returns how many succeeded.
// Failures are logged and leave the previous snapshot in place.
func (p *Poller) PollOnce(ctx context.Context) int {
	updated := 0
	for _, rp := range p.registry.All() {
		if ctx.Err() != nil {
			return updated
		}
		if err := p.refresh(ctx, rp); err != nil {
			p.logger.WithError(err).WithField("symbol", rp.Symbol).Warn("price refresh failed")
			continue
		}
		updated++
	}
	if p.recorder != nil {
		p.recorder.RecordPricesUpdated(updated)
	}
	p.logger.WithField("updated", updated).Debug("price poll complete")
	return updated
}

func (p *Poller) refresh(ctx context.Context, rp amm.RegisteredPair) error {
	now := p.now()
	// staleness is irrelevant for display; only the emptiness check applies
	reserves, err := amm.FetchReserves(ctx, p.source, rp.Pair, 0, now)
	if err != nil {
		return err
	}

	snap := models.PriceSnapshot{
		Symbol:        rp.Symbol,
		Pair:          rp.Pair,
		Price:         reserves.SpotPrice(),
		BaseReserve:   reserves.BaseReserve,
		QuoteReserve:  reserves.QuoteReserve,
		TradingFeeBps: reserves.TradingFeeBps,
		AsOf:          reserves.AsOf,
		FetchedAt:     now,
	}
	p.store.Set(snap)

	if p.cache != nil {
		if err := p.cache.SetPrice(ctx, snap); err != nil {
			p.logger.WithError(err).WithField("symbol", rp.Symbol).Warn("failed to cache price")
		}
	}
	return nil
}
