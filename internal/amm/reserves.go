package amm

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// DefaultMaxReserveAge is how old a snapshot may be before it is refused.
const DefaultMaxReserveAge = 30 * time.Second

// ReserveSource reads pool reserves for a pair.
type ReserveSource interface {
	PoolInfo(ctx context.Context, pair models.Pair) (models.PoolReserves, error)
}

// CheckReserves rejects snapshots that cannot be priced against.
func CheckReserves(r models.PoolReserves) error {
	if !r.BaseReserve.IsPositive() || !r.QuoteReserve.IsPositive() {
		return models.NewError(models.KindInvalidReserves, "pool %s has empty reserves (base=%s quote=%s)", r.Pair, r.BaseReserve, r.QuoteReserve)
	}
	return nil
}

// CheckFreshness rejects snapshots older than maxAge relative to now.
// A zero AsOf is treated as missing.
func CheckFreshness(r models.PoolReserves, maxAge time.Duration, now time.Time) error {
	if r.AsOf.IsZero() {
		return models.NewError(models.KindInvalidReserves, "pool %s snapshot has no timestamp", r.Pair)
	}
	if maxAge > 0 && now.Sub(r.AsOf) > maxAge {
		return models.NewError(models.KindInvalidReserves, "pool %s snapshot is %s old (max %s)", r.Pair, now.Sub(r.AsOf).Truncate(time.Millisecond), maxAge)
	}
	return nil
}

// FetchReserves reads a fresh snapshot from src and validates it.
func FetchReserves(ctx context.Context, src ReserveSource, pair models.Pair, maxAge time.Duration, now time.Time) (models.PoolReserves, error) {
	if err := pair.Validate(); err != nil {
		return models.PoolReserves{}, models.WrapError(models.KindInvalidReserves, err)
	}

	r, err := src.PoolInfo(ctx, pair)
	if err != nil {
		if _, classified := asTradeError(err); classified {
			return models.PoolReserves{}, err
		}
		return models.PoolReserves{}, models.WrapError(models.KindInvalidReserves, fmt.Errorf("fetch pool %s: %w", pair, err))
	}
	if err := CheckReserves(r); err != nil {
		return models.PoolReserves{}, err
	}
	if err := CheckFreshness(r, maxAge, now); err != nil {
		return models.PoolReserves{}, err
	}
	return r, nil
}

func asTradeError(err error) (models.ErrorKind, bool) {
	kind, ok := models.KindOf(err)
	if !ok || kind == models.KindUnknown {
		return "", false
	}
	return kind, true
}
