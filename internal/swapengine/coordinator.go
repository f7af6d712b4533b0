package swapengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/slippage"
)

const (
	DefaultAutoRetryDelay   = 1500 * time.Millisecond
	DefaultManualRetryDelay = 3 * time.Second
	DefaultSessionRetention = time.Hour
)

var (
	ErrTradeCancelled    = errors.New("trade cancelled")
	ErrSessionNotFound   = errors.New("trade session not found")
	ErrSessionResolved   = errors.New("trade session already resolved")
	ErrNoDecisionPending = errors.New("trade is not awaiting a retry decision")
)

type CoordinatorConfig struct {
	AutoRetryDelay   time.Duration
	ManualRetryDelay time.Duration
	// SessionRetention is how long resolved sessions stay queryable.
	SessionRetention time.Duration
	Logger           *logrus.Logger
}

// Coordinator owns the retry session of every logical trade and drives
// attempts through the executor.
type Coordinator struct {
	exec        *Executor
	observer    Observer
	logger      *logrus.Logger
	autoDelay   time.Duration
	manualDelay time.Duration
	retention   time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewCoordinator(exec *Executor, cfg CoordinatorConfig) *Coordinator {
	if cfg.AutoRetryDelay < 0 {
		cfg.AutoRetryDelay = 0
	}
	if cfg.ManualRetryDelay < 0 {
		cfg.ManualRetryDelay = 0
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = DefaultSessionRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Coordinator{
		exec:        exec,
		observer:    noopObserver{},
		logger:      cfg.Logger,
		autoDelay:   cfg.AutoRetryDelay,
		manualDelay: cfg.ManualRetryDelay,
		retention:   cfg.SessionRetention,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

func (c *Coordinator) WithObserver(o Observer) *Coordinator {
	if o != nil {
		c.observer = o
	}
	return c
}

type session struct {
	mu sync.Mutex

	id              string
	original        models.TradeRequest
	request         models.TradeRequest
	suggestedBps    uint32
	state           RetrySessionState
	execState       models.ExecutionState
	attempts        []models.TradeAttempt
	lastErr         error
	busy            bool
	cancelRequested bool
	cancelCh        chan struct{}
	createdAt       time.Time
	updatedAt       time.Time
}

func (s *session) advance(ev Event, now time.Time) (Action, error) {
	next, action, err := Advance(s.state, ev)
	if err != nil {
		return action, err
	}
	s.state = next
	s.updatedAt = now
	return action, nil
}

func (s *session) lastAttempt() *models.TradeAttempt {
	if len(s.attempts) == 0 {
		return nil
	}
	a := s.attempts[len(s.attempts)-1]
	return &a
}

// Start creates a session for tradeID and runs the initial attempt plus
// any automatic retries. It returns when the session resolves or needs a
// manual decision. A tradeID with an unresolved session is rejected.
func (c *Coordinator) Start(ctx context.Context, signer SignerContext, tradeID string, req models.TradeRequest) (*models.TradeAttempt, error) {
	s, action, err := c.begin(tradeID, req)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, signer, s, action)
}

// StartAsync claims tradeID synchronously and runs the trade in the
// background, calling done with the result. Only the claim error is
// returned.
func (c *Coordinator) StartAsync(ctx context.Context, signer SignerContext, tradeID string, req models.TradeRequest, done func(*models.TradeAttempt, error)) error {
	s, action, err := c.begin(tradeID, req)
	if err != nil {
		return err
	}
	go func() {
		attempt, err := c.drive(ctx, signer, s, action)
		if done != nil {
			done(attempt, err)
		}
	}()
	return nil
}

func (c *Coordinator) begin(tradeID string, req models.TradeRequest) (*session, Action, error) {
	now := c.now()

	c.mu.Lock()
	c.pruneLocked(now)
	if existing, ok := c.sessions[tradeID]; ok {
		existing.mu.Lock()
		resolved := existing.state.Resolved()
		existing.mu.Unlock()
		if !resolved {
			c.mu.Unlock()
			return nil, Action{}, models.NewError(models.KindAlreadyInProgress, "trade %s is already in progress", tradeID)
		}
	}
	s := &session{
		id:        tradeID,
		original:  req,
		request:   req,
		state:     NewRetrySessionState(),
		execState: models.StateIdle,
		cancelCh:  make(chan struct{}),
		createdAt: now,
		updatedAt: now,
	}
	c.sessions[tradeID] = s
	c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	action, err := s.advance(Event{Type: EventStart}, now)
	if err != nil {
		return nil, Action{}, err
	}
	s.busy = true
	return s, action, nil
}

// Retry performs the single manual attempt of a session awaiting a
// decision, at the suggested tolerance.
func (c *Coordinator) Retry(ctx context.Context, signer SignerContext, tradeID string) (*models.TradeAttempt, error) {
	s, action, err := c.beginRetry(tradeID)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, signer, s, action)
}

// RetryAsync is Retry with the attempt run in the background.
func (c *Coordinator) RetryAsync(ctx context.Context, signer SignerContext, tradeID string, done func(*models.TradeAttempt, error)) error {
	s, action, err := c.beginRetry(tradeID)
	if err != nil {
		return err
	}
	go func() {
		attempt, err := c.drive(ctx, signer, s, action)
		if done != nil {
			done(attempt, err)
		}
	}()
	return nil
}

func (c *Coordinator) beginRetry(tradeID string) (*session, Action, error) {
	s, ok := c.lookup(tradeID)
	if !ok {
		return nil, Action{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, Action{}, models.NewError(models.KindAlreadyInProgress, "trade %s is already in progress", tradeID)
	}
	if s.state.Phase != PhaseAwaitingManualDecision || s.state.ManualRetryUsed {
		return nil, Action{}, ErrNoDecisionPending
	}
	action, err := s.advance(Event{Type: EventManualRetry}, c.now())
	if err != nil {
		return nil, Action{}, err
	}
	s.request = s.request.WithTolerance(s.suggestedBps)
	s.busy = true
	return s, action, nil
}

// Cancel resolves a session as cancelled. If an attempt is in flight the
// cancellation applies once its result is known and only stops a further
// retry: success and terminal failures resolve as reported.
func (c *Coordinator) Cancel(tradeID string) error {
	s, ok := c.lookup(tradeID)
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Resolved() {
		return ErrSessionResolved
	}
	if s.busy {
		if !s.cancelRequested {
			s.cancelRequested = true
			close(s.cancelCh)
		}
		return nil
	}

	if _, err := s.advance(Event{Type: EventCancel}, c.now()); err != nil {
		return err
	}
	c.resolved(s)
	return nil
}

// Snapshot returns a copy of the session for tradeID.
func (c *Coordinator) Snapshot(tradeID string) (SessionSnapshot, bool) {
	s, ok := c.lookup(tradeID)
	if !ok {
		return SessionSnapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

func (c *Coordinator) lookup(tradeID string) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[tradeID]
	return s, ok
}

func (c *Coordinator) pruneLocked(now time.Time) {
	for id, s := range c.sessions {
		s.mu.Lock()
		expired := s.state.Resolved() && now.Sub(s.updatedAt) > c.retention
		s.mu.Unlock()
		if expired {
			delete(c.sessions, id)
		}
	}
}

func (c *Coordinator) drive(ctx context.Context, signer SignerContext, s *session, action Action) (*models.TradeAttempt, error) {
	for {
		switch action.Type {
		case ActionResubmit:
			action = c.runAttempt(ctx, signer, s, action)

		case ActionAwaitDecision:
			s.mu.Lock()
			defer s.mu.Unlock()
			c.logger.WithFields(logrus.Fields{
				"trade_id":      s.id,
				"current_bps":   s.request.SlippageToleranceBps,
				"suggested_bps": s.suggestedBps,
			}).Info("automatic retries exhausted, awaiting decision")
			return s.lastAttempt(), s.lastErr

		case ActionResolve:
			s.mu.Lock()
			defer s.mu.Unlock()
			c.resolved(s)
			switch s.state.Resolution {
			case ResolutionSuccess:
				return s.lastAttempt(), nil
			case ResolutionCancelled:
				return s.lastAttempt(), ErrTradeCancelled
			default:
				return s.lastAttempt(), s.lastErr
			}

		default:
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
			return nil, ErrInvalidTransition
		}
	}
}

// runAttempt waits out any retry delay, submits once and feeds the outcome
// back into the session.
func (c *Coordinator) runAttempt(ctx context.Context, signer SignerContext, s *session, action Action) Action {
	if delay := c.delayFor(action.Mode); delay > 0 {
		c.observer.RetryScheduled(string(action.Mode))
		c.logger.WithFields(logrus.Fields{
			"trade_id": s.id,
			"attempt":  action.AttemptNumber,
			"mode":     action.Mode,
			"delay":    delay,
		}).Info("scheduling resubmission")

		if !wait(ctx, delay, s.cancelCh) {
			return c.cancelNow(s)
		}
	}

	s.mu.Lock()
	if s.cancelRequested {
		s.mu.Unlock()
		return c.cancelNow(s)
	}
	req := s.request
	s.mu.Unlock()

	attempt, err := c.exec.Execute(ctx, signer, Submission{
		TradeID:       s.id,
		AttemptNumber: action.AttemptNumber,
		Request:       req,
		OnState:       s.setExecState,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != nil {
		s.attempts = append(s.attempts, *attempt)
	}
	s.lastErr = err

	// A cancel only stops further retries. Success and terminal failures
	// keep the ledger's verdict.
	ev := eventFor(err)
	if s.cancelRequested && ev.Type == EventAttemptFailedRetryable {
		ev = Event{Type: EventCancel}
	}

	next, advErr := s.advance(ev, c.now())
	if advErr != nil {
		c.logger.WithError(advErr).WithField("trade_id", s.id).Error("retry session rejected event")
		next, _ = s.advance(Event{Type: EventCancel}, c.now())
	}

	if ev.Type == EventAttemptFailedRetryable && attempt != nil {
		bumped := slippage.RecommendAggressive(s.request.SlippageToleranceBps, attempt.Estimate.PriceImpactBps)
		switch next.Type {
		case ActionResubmit:
			s.request = s.request.WithTolerance(bumped)
		case ActionAwaitDecision:
			s.suggestedBps = bumped
		}
	}
	if next.Type != ActionResubmit {
		s.busy = false
	}
	return next
}

func (c *Coordinator) cancelNow(s *session) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, err := s.advance(Event{Type: EventCancel}, c.now())
	if err != nil {
		action = Action{Type: ActionNone}
	}
	s.busy = false
	return action
}

// resolved must be called with s.mu held, once per session.
func (c *Coordinator) resolved(s *session) {
	s.busy = false
	c.observer.SessionResolved(string(s.state.Resolution))
	c.logger.WithFields(logrus.Fields{
		"trade_id":    s.id,
		"resolution":  s.state.Resolution,
		"submissions": s.state.Submissions,
	}).Info("trade session resolved")
}

func (c *Coordinator) delayFor(mode RetryMode) time.Duration {
	switch mode {
	case ModeAuto:
		return c.autoDelay
	case ModeManual:
		return c.manualDelay
	default:
		return 0
	}
}

func (s *session) setExecState(state models.ExecutionState) {
	s.mu.Lock()
	s.execState = state
	s.mu.Unlock()
}

func eventFor(err error) Event {
	if err == nil {
		return Event{Type: EventAttemptSucceeded}
	}
	if kind, _ := models.KindOf(err); kind.Retryable() {
		return Event{Type: EventAttemptFailedRetryable}
	}
	return Event{Type: EventAttemptFailedTerminal}
}

// wait sleeps for d. It returns false if cancel closes or ctx ends first.
func wait(ctx context.Context, d time.Duration, cancel <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-cancel:
		return false
	case <-ctx.Done():
		return false
	}
}
