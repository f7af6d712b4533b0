package swapengine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

const (
	DefaultSubmitTimeout = 45 * time.Second
)

type ExecutorConfig struct {
	SubmitTimeout time.Duration
	MaxReserveAge time.Duration
	Logger        *logrus.Logger
}

// Submission is one attempt of a logical trade.
type Submission struct {
	TradeID       string
	AttemptNumber int
	Request       models.TradeRequest
	// OnState, when set, is called on every execution state change.
	OnState func(models.ExecutionState)
}

// Executor performs single submissions. At most one submission per trade
// ID is in flight at any time.
type Executor struct {
	ledger   Ledger
	reporter ActivityReporter
	observer Observer
	logger   *logrus.Logger

	submitTimeout time.Duration
	maxReserveAge time.Duration
	now           func() time.Time
	newID         func() string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewExecutor(ledger Ledger, cfg ExecutorConfig) *Executor {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.MaxReserveAge <= 0 {
		cfg.MaxReserveAge = amm.DefaultMaxReserveAge
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Executor{
		ledger:        ledger,
		reporter:      noopReporter{},
		observer:      noopObserver{},
		logger:        cfg.Logger,
		submitTimeout: cfg.SubmitTimeout,
		maxReserveAge: cfg.MaxReserveAge,
		now:           time.Now,
		newID:         uuid.NewString,
		inFlight:      make(map[string]struct{}),
	}
}

func (e *Executor) WithReporter(r ActivityReporter) *Executor {
	if r != nil {
		e.reporter = r
	}
	return e
}

func (e *Executor) WithObserver(o Observer) *Executor {
	if o != nil {
		e.observer = o
	}
	return e
}

// InFlight reports whether tradeID has a submission running.
func (e *Executor) InFlight(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[tradeID]
	return ok
}

func (e *Executor) acquire(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[tradeID]; busy {
		return false
	}
	e.inFlight[tradeID] = struct{}{}
	return true
}

func (e *Executor) release(tradeID string) {
	e.mu.Lock()
	delete(e.inFlight, tradeID)
	e.mu.Unlock()
}

// Execute runs one attempt through Idle, Connecting, Submitting and
// AwaitingLedgerResult to a final state. Every failure is returned as a
// *models.Error together with the classified attempt, except
// AlreadyInProgress which returns no attempt. Local validation runs before
// any ledger call.
func (e *Executor) Execute(ctx context.Context, signer SignerContext, sub Submission) (*models.TradeAttempt, error) {
	progress := sub.OnState
	if progress == nil {
		progress = func(models.ExecutionState) {}
	}

	attempt := &models.TradeAttempt{
		ID:            e.newID(),
		TradeID:       sub.TradeID,
		AttemptNumber: sub.AttemptNumber,
		Request:       sub.Request,
		StartedAt:     e.now(),
	}
	progress(models.StateIdle)

	if err := ValidateRequest(sub.Request); err != nil {
		return e.fail(attempt, err, progress)
	}

	if !e.acquire(sub.TradeID) {
		return nil, models.NewError(models.KindAlreadyInProgress, "trade %s already has a submission in flight", sub.TradeID)
	}
	defer e.release(sub.TradeID)

	progress(models.StateConnecting)
	if signer == nil || strings.TrimSpace(signer.Account()) == "" {
		return e.fail(attempt, models.NewError(models.KindMissingCredential, "no signer available"), progress)
	}
	attempt.Account = signer.Account()

	if err := e.ledger.Connect(ctx); err != nil {
		return e.fail(attempt, models.WrapError(models.KindNetworkTimeout, fmt.Errorf("connect: %w", err)), progress)
	}

	reserves, err := amm.FetchReserves(ctx, e.ledger, sub.Request.Pair, e.maxReserveAge, e.now())
	if err != nil {
		return e.fail(attempt, err, progress)
	}
	est, err := amm.Estimate(reserves, sub.Request)
	if err != nil {
		return e.fail(attempt, err, progress)
	}
	attempt.Estimate = est

	intent, bounds, err := BuildIntent(attempt.Account, sub.TradeID, sub.AttemptNumber, sub.Request, est)
	if err != nil {
		return e.fail(attempt, err, progress)
	}
	attempt.DeliverMin = bounds.DeliverMin
	attempt.SendMax = bounds.SendMax

	progress(models.StateSubmitting)
	blob, err := signer.Sign(ctx, intent)
	if err != nil {
		return e.fail(attempt, models.WrapError(models.KindMissingCredential, fmt.Errorf("sign: %w", err)), progress)
	}

	progress(models.StateAwaitingLedgerResult)
	attempt.Submitted = true
	attempt.TxHash = blob.Hash

	submitCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	res, err := e.ledger.SubmitSignedTransaction(submitCtx, blob)
	cancel()
	if err != nil {
		// The ledger may or may not have applied the transaction.
		return e.fail(attempt, models.WrapError(models.KindNetworkTimeout, fmt.Errorf("submit: %w", err)), progress)
	}

	attempt.ResultCode = res.ResultCode
	if res.TxHash != "" {
		attempt.TxHash = res.TxHash
	}
	attempt.DeliveredAmount = res.DeliveredAmount
	attempt.Fee = res.Fee

	outcome, kind := ClassifyResult(res.ResultCode)
	if outcome == models.OutcomeSuccess {
		e.finish(attempt, outcome, progress)
		return attempt, nil
	}
	return e.fail(attempt, models.LedgerError(kind, res.ResultCode), progress)
}

func (e *Executor) fail(attempt *models.TradeAttempt, err error, progress func(models.ExecutionState)) (*models.TradeAttempt, error) {
	kind, _ := models.KindOf(err)
	attempt.ErrorKind = kind

	outcome := models.OutcomeFailedTerminal
	if kind.Retryable() {
		outcome = models.OutcomeFailedRetryable
	}
	e.finish(attempt, outcome, progress)

	if _, classified := err.(*models.Error); !classified {
		err = models.WrapError(kind, err)
	}
	return attempt, err
}

func (e *Executor) finish(attempt *models.TradeAttempt, outcome models.Outcome, progress func(models.ExecutionState)) {
	attempt.Outcome = outcome
	attempt.FinishedAt = e.now()
	progress(outcome.State())

	fields := logrus.Fields{
		"trade_id":  attempt.TradeID,
		"attempt":   attempt.AttemptNumber,
		"outcome":   attempt.Outcome,
		"submitted": attempt.Submitted,
	}
	if attempt.ErrorKind != "" {
		fields["error_kind"] = attempt.ErrorKind
	}
	if attempt.ResultCode != "" {
		fields["result_code"] = attempt.ResultCode
	}
	if attempt.TxHash != "" {
		fields["tx_hash"] = attempt.TxHash
	}
	log := e.logger.WithFields(fields)
	if attempt.Succeeded() {
		log.Info("trade attempt succeeded")
	} else {
		log.Warn("trade attempt failed")
	}

	e.observer.AttemptFinished(*attempt)
	e.reporter.Report(*attempt)
}
