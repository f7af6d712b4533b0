package swapengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/slippage"
)

// Engine is the main entry point for pricing and executing trades
type Engine struct {
	ledger        Ledger
	executor      *Executor
	coordinator   *Coordinator
	logger        *logrus.Logger
	maxReserveAge time.Duration
	now           func() time.Time
}

// EngineConfig holds configuration for the trade engine
type EngineConfig struct {
	SubmitTimeout    time.Duration
	AutoRetryDelay   time.Duration
	ManualRetryDelay time.Duration
	MaxReserveAge    time.Duration
	SessionRetention time.Duration
	Logger           *logrus.Logger
}

// DefaultEngineConfig returns sensible defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SubmitTimeout:    DefaultSubmitTimeout,
		AutoRetryDelay:   DefaultAutoRetryDelay,
		ManualRetryDelay: DefaultManualRetryDelay,
		MaxReserveAge:    amm.DefaultMaxReserveAge,
		SessionRetention: DefaultSessionRetention,
	}
}

// NewEngine creates an engine on top of ledger.
func NewEngine(ledger Ledger, cfg EngineConfig) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("swapengine: ledger is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxReserveAge <= 0 {
		cfg.MaxReserveAge = amm.DefaultMaxReserveAge
	}

	exec := NewExecutor(ledger, ExecutorConfig{
		SubmitTimeout: cfg.SubmitTimeout,
		MaxReserveAge: cfg.MaxReserveAge,
		Logger:        cfg.Logger,
	})
	coord := NewCoordinator(exec, CoordinatorConfig{
		AutoRetryDelay:   cfg.AutoRetryDelay,
		ManualRetryDelay: cfg.ManualRetryDelay,
		SessionRetention: cfg.SessionRetention,
		Logger:           cfg.Logger,
	})

	return &Engine{
		ledger:        ledger,
		executor:      exec,
		coordinator:   coord,
		logger:        cfg.Logger,
		maxReserveAge: cfg.MaxReserveAge,
		now:           time.Now,
	}, nil
}

// WithActivity sends every classified attempt to r.
func (e *Engine) WithActivity(r ActivityReporter) *Engine {
	e.executor.WithReporter(r)
	return e
}

func (e *Engine) WithObserver(o Observer) *Engine {
	e.executor.WithObserver(o)
	e.coordinator.WithObserver(o)
	return e
}

type executeOptions struct {
	tradeID string
}

type ExecuteOption func(*executeOptions)

// WithTradeID sets the idempotency key of the logical trade. Without it a
// random ID is used.
func WithTradeID(id string) ExecuteOption {
	return func(o *executeOptions) { o.tradeID = strings.TrimSpace(id) }
}

// NewTradeID returns a fresh trade identifier.
func NewTradeID() string { return uuid.NewString() }

// Estimate prices req against fresh reserves without submitting anything.
func (e *Engine) Estimate(ctx context.Context, req models.TradeRequest) (*Quote, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	reserves, err := amm.FetchReserves(ctx, e.ledger, req.Pair, e.maxReserveAge, e.now())
	if err != nil {
		return nil, err
	}
	est, err := amm.Estimate(reserves, req)
	if err != nil {
		return nil, err
	}
	curve, err := amm.ConstantProductOutput(reserves, req)
	if err != nil {
		return nil, err
	}
	bounds, err := ComputeBounds(req, est)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Request:     req,
		Reserves:    reserves,
		SpotPrice:   reserves.SpotPrice(),
		Estimate:    est,
		CurveOutput: curve,
		Bounds:      bounds,
		Slippage:    slippage.Assess(req.SlippageToleranceBps, est.PriceImpactBps),
		QuotedAt:    e.now(),
	}, nil
}

// Reserves returns a fresh, validated snapshot for pair.
func (e *Engine) Reserves(ctx context.Context, pair models.Pair) (models.PoolReserves, error) {
	return amm.FetchReserves(ctx, e.ledger, pair, e.maxReserveAge, e.now())
}

// ExecuteTrade runs a logical trade: the initial attempt and up to
// MaxAutoRetries automatic resubmissions on slippage failures. It returns
// the last attempt. When automatic retries are exhausted the error is the
// SlippageExhausted failure and the session waits for Retry or Cancel.
func (e *Engine) ExecuteTrade(ctx context.Context, signer SignerContext, req models.TradeRequest, opts ...ExecuteOption) (*models.TradeAttempt, error) {
	o := executeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tradeID == "" {
		o.tradeID = NewTradeID()
	}
	return e.coordinator.Start(ctx, signer, o.tradeID, req)
}

// ExecuteTradeAsync claims the trade ID and runs ExecuteTrade in the
// background. It returns the trade ID, or the claim error such as
// AlreadyInProgress. done may be nil.
func (e *Engine) ExecuteTradeAsync(ctx context.Context, signer SignerContext, req models.TradeRequest, done func(*models.TradeAttempt, error), opts ...ExecuteOption) (string, error) {
	o := executeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tradeID == "" {
		o.tradeID = NewTradeID()
	}
	if err := e.coordinator.StartAsync(ctx, signer, o.tradeID, req, done); err != nil {
		return "", err
	}
	return o.tradeID, nil
}

// Retry performs the one manual retry allowed after automatic retries are
// exhausted.
func (e *Engine) Retry(ctx context.Context, signer SignerContext, tradeID string) (*models.TradeAttempt, error) {
	return e.coordinator.Retry(ctx, signer, tradeID)
}

// RetryAsync starts the manual retry in the background.
func (e *Engine) RetryAsync(ctx context.Context, signer SignerContext, tradeID string, done func(*models.TradeAttempt, error)) error {
	return e.coordinator.RetryAsync(ctx, signer, tradeID, done)
}

// Cancel abandons a trade. Nothing further is submitted for it.
func (e *Engine) Cancel(tradeID string) error {
	return e.coordinator.Cancel(tradeID)
}

func (e *Engine) Session(tradeID string) (SessionSnapshot, bool) {
	return e.coordinator.Snapshot(tradeID)
}
