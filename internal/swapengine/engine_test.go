package swapengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

func tolerances(attempts []models.TradeAttempt) []uint32 {
	out := make([]uint32, len(attempts))
	for i, a := range attempts {
		out[i] = a.Request.SlippageToleranceBps
	}
	return out
}

func attemptNumbers(attempts []models.TradeAttempt) []int {
	out := make([]int, len(attempts))
	for i, a := range attempts {
		out[i] = a.AttemptNumber
	}
	return out
}

func TestEstimateScenario(t *testing.T) {
	e := newTestEngine(t, readyLedger(), nil)

	q, err := e.Estimate(context.Background(), buyRequest("10"))
	require.NoError(t, err)
	assert.Equal(t, "1000", q.Estimate.OutputAmount.String())
	assert.Equal(t, "100", q.Estimate.PriceImpactBps.String())
	assert.Equal(t, uint32(100), q.Slippage.RecommendedBps)
	assert.False(t, q.Slippage.Adequate)
	assert.Equal(t, "0.01", q.SpotPrice.String())
	assert.True(t, q.CurveOutput.LessThan(q.Estimate.OutputAmount))
	assert.Equal(t, "995.024875", q.Bounds.DeliverMin.String())
}

func TestEstimateNeverSubmits(t *testing.T) {
	ledger := readyLedger()
	e := newTestEngine(t, ledger, nil)

	first, err := e.Estimate(context.Background(), buyRequest("10"))
	require.NoError(t, err)
	second, err := e.Estimate(context.Background(), buyRequest("10"))
	require.NoError(t, err)

	assert.Equal(t, first.Estimate, second.Estimate)
	assert.Equal(t, first.Bounds, second.Bounds)
	assert.Equal(t, first.Slippage, second.Slippage)
	ledger.AssertNotCalled(t, "SubmitSignedTransaction", mock.Anything, mock.Anything)
}

func TestEstimateJustPastBucketBoundary(t *testing.T) {
	e := newTestEngine(t, readyLedger(), nil)
	req := buyRequest("10.00001")
	req.SlippageToleranceBps = 100

	q, err := e.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "100.01", q.Estimate.PriceImpactBps.String())
	assert.Equal(t, uint32(300), q.Slippage.RecommendedBps)
	assert.False(t, q.Slippage.Adequate)
}

func TestEstimateRejectsDustWithoutNetwork(t *testing.T) {
	ledger := new(MockLedger)
	e := newTestEngine(t, ledger, nil)

	_, err := e.Estimate(context.Background(), buyRequest("0.0000001"))
	assert.True(t, models.IsKind(err, models.KindAmountTooSmall))
	assert.Empty(t, ledger.Calls)
}

func TestExecuteTradeDustNeverReachesLedger(t *testing.T) {
	ledger := new(MockLedger)
	e := newTestEngine(t, ledger, nil)

	_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("0.0000001"), WithTradeID("dust"))
	assert.True(t, models.IsKind(err, models.KindAmountTooSmall))
	assert.Empty(t, ledger.Calls)

	snap, ok := e.Session("dust")
	require.True(t, ok)
	assert.Equal(t, ResolutionFailure, snap.State.Resolution)
}

func TestExecuteTradeSucceedsFirstTime(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tesSUCCESS")
	e := newTestEngine(t, ledger, nil)

	attempt, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("ok"))
	require.NoError(t, err)
	assert.Equal(t, 0, attempt.AttemptNumber)

	snap, ok := e.Session("ok")
	require.True(t, ok)
	assert.Equal(t, PhaseResolved, snap.State.Phase)
	assert.Equal(t, ResolutionSuccess, snap.State.Resolution)
	assert.Equal(t, models.StateSuccess, snap.ExecutionState)
	assert.Empty(t, snap.ErrorKind)
}

func TestExecuteTradeAutoRetriesThenAwaitsDecision(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Times(3)
	reporter := &recordingReporter{}
	e := newTestEngine(t, ledger, reporter)

	attempt, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("slip"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindSlippageExhausted))
	assert.Equal(t, 2, attempt.AttemptNumber)

	snap, ok := e.Session("slip")
	require.True(t, ok)
	assert.True(t, snap.AwaitingDecision())
	assert.Equal(t, []int{0, 1, 2}, attemptNumbers(snap.Attempts))
	assert.Equal(t, []uint32{50, 125, 313}, tolerances(snap.Attempts))
	assert.Equal(t, uint32(313), snap.CurrentToleranceBps)
	assert.Equal(t, uint32(783), snap.SuggestedToleranceBps)
	assert.Equal(t, models.KindSlippageExhausted, snap.ErrorKind)
	assert.Len(t, reporter.all(), 3)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 3)
	ledger.AssertNumberOfCalls(t, "PoolInfo", 3)
}

func TestManualRetrySucceeds(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_DRY").Times(3)
	submitReturns(ledger, "tesSUCCESS").Once()
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	_, err := e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("manual"))
	require.True(t, models.IsKind(err, models.KindSlippageExhausted))

	attempt, err := e.Retry(context.Background(), signer, "manual")
	require.NoError(t, err)
	assert.Equal(t, 3, attempt.AttemptNumber)
	assert.Equal(t, uint32(783), attempt.Request.SlippageToleranceBps)

	snap, _ := e.Session("manual")
	assert.Equal(t, ResolutionSuccess, snap.State.Resolution)
	assert.Equal(t, MaxSubmissions, snap.State.Submissions)

	_, err = e.Retry(context.Background(), signer, "manual")
	assert.ErrorIs(t, err, ErrNoDecisionPending)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 4)
}

func TestManualRetryFailureResolves(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Times(4)
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	_, _ = e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("t"))
	_, err := e.Retry(context.Background(), signer, "t")
	assert.True(t, models.IsKind(err, models.KindSlippageExhausted))

	snap, _ := e.Session("t")
	assert.Equal(t, ResolutionFailure, snap.State.Resolution)
	assert.Equal(t, models.KindSlippageExhausted, snap.ErrorKind)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 4)
}

func TestCancelWhileAwaitingDecision(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Times(3)
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	_, _ = e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("c"))
	require.NoError(t, e.Cancel("c"))

	snap, _ := e.Session("c")
	assert.Equal(t, ResolutionCancelled, snap.State.Resolution)

	_, err := e.Retry(context.Background(), signer, "c")
	assert.ErrorIs(t, err, ErrNoDecisionPending)
	assert.ErrorIs(t, e.Cancel("c"), ErrSessionResolved)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 3)
}

func TestCancelDuringAutoRetryDelay(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Once()

	cfg := DefaultEngineConfig()
	cfg.AutoRetryDelay = time.Hour
	cfg.Logger = quietLogger()
	e, err := NewEngine(ledger, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("wait"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok := e.Session("wait")
		return ok && snap.State.Phase == PhaseAutoRetrying && len(snap.Attempts) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Cancel("wait"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTradeCancelled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not interrupt retry delay")
	}

	snap, _ := e.Session("wait")
	assert.Equal(t, ResolutionCancelled, snap.State.Resolution)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}

func TestCancelWhileInFlightKeepsSuccess(t *testing.T) {
	release := make(chan struct{})
	ledger := readyLedger()
	submitReturns(ledger, "tesSUCCESS").Run(func(mock.Arguments) { <-release }).Once()
	e := newTestEngine(t, ledger, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("fly"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok := e.Session("fly")
		return ok && snap.ExecutionState == models.StateAwaitingLedgerResult
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Cancel("fly"))
	close(release)

	assert.NoError(t, <-done)
	snap, _ := e.Session("fly")
	assert.Equal(t, ResolutionSuccess, snap.State.Resolution)
}

func TestCancelWhileInFlightStopsRetries(t *testing.T) {
	release := make(chan struct{})
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Run(func(mock.Arguments) { <-release }).Once()
	e := newTestEngine(t, ledger, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("fly"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok := e.Session("fly")
		return ok && snap.ExecutionState == models.StateAwaitingLedgerResult
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Cancel("fly"))
	close(release)

	assert.ErrorIs(t, <-done, ErrTradeCancelled)
	snap, _ := e.Session("fly")
	assert.Equal(t, ResolutionCancelled, snap.State.Resolution)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}

func TestCancelWhileInFlightKeepsTerminalFailure(t *testing.T) {
	release := make(chan struct{})
	ledger := readyLedger()
	submitReturns(ledger, "tecUNFUNDED_PAYMENT").Run(func(mock.Arguments) { <-release }).Once()
	e := newTestEngine(t, ledger, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("fly"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok := e.Session("fly")
		return ok && snap.ExecutionState == models.StateAwaitingLedgerResult
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Cancel("fly"))
	close(release)

	err := <-done
	assert.NotErrorIs(t, err, ErrTradeCancelled)
	assert.True(t, models.IsKind(err, models.KindInsufficientFunds))

	snap, _ := e.Session("fly")
	assert.Equal(t, ResolutionFailure, snap.State.Resolution)
	assert.Equal(t, models.KindInsufficientFunds, snap.ErrorKind)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}

func TestTerminalFailureResolvesImmediately(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecUNFUNDED_PAYMENT").Once()
	e := newTestEngine(t, ledger, nil)

	_, err := e.ExecuteTrade(context.Background(), testSigner(t), buyRequest("10"), WithTradeID("broke"))
	var te *models.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.KindInsufficientFunds, te.Kind)
	assert.NotEmpty(t, te.UserMessage())

	snap, _ := e.Session("broke")
	assert.Equal(t, ResolutionFailure, snap.State.Resolution)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}

func TestTradeIDIsAnIdempotencyKey(t *testing.T) {
	release := make(chan struct{})
	ledger := readyLedger()
	submitReturns(ledger, "tesSUCCESS").Run(func(mock.Arguments) { <-release }).Once()
	submitReturns(ledger, "tesSUCCESS").Once()
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("dup"))
		done <- err
	}()
	require.Eventually(t, func() bool {
		snap, ok := e.Session("dup")
		return ok && snap.InProgress
	}, time.Second, time.Millisecond)

	_, err := e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("dup"))
	assert.True(t, models.IsKind(err, models.KindAlreadyInProgress))

	close(release)
	require.NoError(t, <-done)

	_, err = e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("dup"))
	assert.NoError(t, err)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 2)
}

func TestUnknownSession(t *testing.T) {
	e := newTestEngine(t, new(MockLedger), nil)
	_, err := e.Retry(context.Background(), testSigner(t), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, e.Cancel("nope"), ErrSessionNotFound)
	_, ok := e.Session("nope")
	assert.False(t, ok)
}

func TestNewEngineRequiresLedger(t *testing.T) {
	_, err := NewEngine(nil, DefaultEngineConfig())
	assert.Error(t, err)
}

type asyncResult struct {
	attempt *models.TradeAttempt
	err     error
}

func collect(ch chan asyncResult) func(*models.TradeAttempt, error) {
	return func(a *models.TradeAttempt, err error) { ch <- asyncResult{a, err} }
}

func TestExecuteTradeAsyncClaimsIDSynchronously(t *testing.T) {
	release := make(chan struct{})
	ledger := readyLedger()
	submitReturns(ledger, "tesSUCCESS").Run(func(mock.Arguments) { <-release }).Once()
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	results := make(chan asyncResult, 1)
	id, err := e.ExecuteTradeAsync(context.Background(), signer, buyRequest("10"), collect(results), WithTradeID("async"))
	require.NoError(t, err)
	assert.Equal(t, "async", id)

	_, err = e.ExecuteTradeAsync(context.Background(), signer, buyRequest("10"), nil, WithTradeID("async"))
	assert.True(t, models.IsKind(err, models.KindAlreadyInProgress))

	close(release)
	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.True(t, r.attempt.Succeeded())
	case <-time.After(2 * time.Second):
		t.Fatal("async trade did not finish")
	}
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}

func TestExecuteTradeAsyncGeneratesID(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tesSUCCESS")
	e := newTestEngine(t, ledger, nil)

	results := make(chan asyncResult, 1)
	id, err := e.ExecuteTradeAsync(context.Background(), testSigner(t), buyRequest("10"), collect(results))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	r := <-results
	require.NoError(t, r.err)

	snap, ok := e.Session(id)
	require.True(t, ok)
	assert.Equal(t, ResolutionSuccess, snap.State.Resolution)
}

func TestRetryAsync(t *testing.T) {
	ledger := readyLedger()
	submitReturns(ledger, "tecPATH_PARTIAL").Times(3)
	submitReturns(ledger, "tesSUCCESS").Once()
	e := newTestEngine(t, ledger, nil)
	signer := testSigner(t)

	_, err := e.ExecuteTrade(context.Background(), signer, buyRequest("10"), WithTradeID("async-retry"))
	require.True(t, models.IsKind(err, models.KindSlippageExhausted))

	assert.ErrorIs(t, e.RetryAsync(context.Background(), signer, "missing", nil), ErrSessionNotFound)

	results := make(chan asyncResult, 1)
	require.NoError(t, e.RetryAsync(context.Background(), signer, "async-retry", collect(results)))
	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, uint32(783), r.attempt.Request.SlippageToleranceBps)
}

func TestReserves(t *testing.T) {
	e := newTestEngine(t, readyLedger(), nil)
	r, err := e.Reserves(context.Background(), testPair)
	require.NoError(t, err)
	assert.Equal(t, "1000", r.BaseReserve.String())

	_, err = e.Reserves(context.Background(), models.Pair{})
	assert.True(t, models.IsKind(err, models.KindInvalidReserves))
}
