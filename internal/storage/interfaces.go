package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// AttemptSink receives classified trade attempts
type AttemptSink interface {
	// RecordAttempt stores or forwards one attempt
	RecordAttempt(ctx context.Context, attempt *models.TradeAttempt) error
}

// AttemptCache defines the interface for caching recent trade activity
type AttemptCache interface {
	AttemptSink

	// GetRecentAttempts retrieves the most recent attempts, newest first
	GetRecentAttempts(ctx context.Context, limit int64) ([]*models.TradeAttempt, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// AttemptStore defines the interface for persistent attempt history
type AttemptStore interface {
	AttemptSink

	// AttemptsForTrade returns every stored attempt of a logical trade
	AttemptsForTrade(ctx context.Context, tradeID string) ([]*models.TradeAttempt, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// PriceCache holds display price snapshots
type PriceCache interface {
	SetPrice(ctx context.Context, snap models.PriceSnapshot) error
	GetPrice(ctx context.Context, symbol string) (models.PriceSnapshot, error)
}

// AttemptHandler is a function that processes attempt events
type AttemptHandler func(*models.TradeAttempt)

// AttemptFeed defines the interface for live attempt streaming
type AttemptFeed interface {
	// Subscribe delivers attempts until ctx is cancelled
	Subscribe(ctx context.Context, channel string, handler AttemptHandler) error
}
