package swapengine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/slippage"
)

// Ledger is everything the engine needs from the network.
type Ledger interface {
	Connect(ctx context.Context) error
	PoolInfo(ctx context.Context, pair models.Pair) (models.PoolReserves, error)
	SubmitSignedTransaction(ctx context.Context, blob models.SignedBlob) (models.SubmitResult, error)
}

// SignerContext is the caller-owned credential used to sign intents.
type SignerContext interface {
	Account() string
	Sign(ctx context.Context, intent models.PaymentIntent) (models.SignedBlob, error)
}

// ActivityReporter receives every classified attempt. Report must return
// quickly and never fail the trade.
type ActivityReporter interface {
	Report(attempt models.TradeAttempt)
}

// Observer receives engine lifecycle events, typically for metrics.
type Observer interface {
	AttemptFinished(attempt models.TradeAttempt)
	RetryScheduled(mode string)
	SessionResolved(resolution string)
}

type noopReporter struct{}

func (noopReporter) Report(models.TradeAttempt) {}

type noopObserver struct{}

func (noopObserver) AttemptFinished(models.TradeAttempt) {}
func (noopObserver) RetryScheduled(string)               {}
func (noopObserver) SessionResolved(string)              {}

// Bounds are the guaranteed limits submitted with a trade.
type Bounds struct {
	DeliverMin decimal.Decimal `json:"deliver_min"`
	SendMax    decimal.Decimal `json:"send_max"`
}

// Quote is a priced, not yet submitted trade.
type Quote struct {
	Request     models.TradeRequest  `json:"request"`
	Reserves    models.PoolReserves  `json:"reserves"`
	SpotPrice   decimal.Decimal      `json:"spot_price"`
	Estimate    models.TradeEstimate `json:"estimate"`
	CurveOutput decimal.Decimal      `json:"curve_output"`
	Bounds      Bounds               `json:"bounds"`
	Slippage    slippage.Advice      `json:"slippage"`
	QuotedAt    time.Time            `json:"quoted_at"`
}
