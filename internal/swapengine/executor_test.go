package swapengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/wallet"
)

func newTestExecutor(ledger Ledger) *Executor {
	return NewExecutor(ledger, ExecutorConfig{Logger: quietLogger()})
}

func TestExecuteRejectsDustBeforeAnyNetworkCall(t *testing.T) {
	ledger := new(MockLedger)
	reporter := &recordingReporter{}
	exec := newTestExecutor(ledger).WithReporter(reporter)

	attempt, err := exec.Execute(context.Background(), testSigner(t), Submission{TradeID: "t1", Request: buyRequest("0.0000001")})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAmountTooSmall))
	require.NotNil(t, attempt)
	assert.False(t, attempt.Submitted)
	assert.Equal(t, models.OutcomeFailedTerminal, attempt.Outcome)

	assert.Empty(t, ledger.Calls)
	ledger.AssertNotCalled(t, "Connect", mock.Anything)
	ledger.AssertNotCalled(t, "PoolInfo", mock.Anything, mock.Anything)
	assert.Len(t, reporter.all(), 1)
}

func TestExecuteSuccess(t *testing.T) {
	ledger := readyLedger()
	delivered := dec("998.5")
	ledger.On("SubmitSignedTransaction", mock.Anything, mock.MatchedBy(func(blob models.SignedBlob) bool {
		intent, err := wallet.Verify(blob)
		return err == nil && intent.DeliverMin.Equal(dec("995.024875")) && intent.SendMax.Equal(dec("10.05"))
	})).Return(models.SubmitResult{ResultCode: "tesSUCCESS", TxHash: "ABC", DeliveredAmount: &delivered, Fee: dec("0.000012"), Validated: true}, nil)

	var states []models.ExecutionState
	signer := testSigner(t)
	attempt, err := newTestExecutor(ledger).Execute(context.Background(), signer, Submission{
		TradeID: "t1",
		Request: buyRequest("10"),
		OnState: func(s models.ExecutionState) { states = append(states, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, "ABC", attempt.TxHash)
	assert.Equal(t, signer.Account(), attempt.Account)
	assert.Equal(t, "1000", attempt.Estimate.OutputAmount.String())
	assert.True(t, attempt.DeliveredAmount.Equal(delivered))
	assert.Equal(t, []models.ExecutionState{
		models.StateIdle,
		models.StateConnecting,
		models.StateSubmitting,
		models.StateAwaitingLedgerResult,
		models.StateSuccess,
	}, states)
	ledger.AssertExpectations(t)
}

func TestExecuteMissingSigner(t *testing.T) {
	ledger := new(MockLedger)
	exec := newTestExecutor(ledger)

	_, err := exec.Execute(context.Background(), nil, Submission{TradeID: "t1", Request: buyRequest("10")})
	assert.True(t, models.IsKind(err, models.KindMissingCredential))

	var nilSigner *wallet.KeySigner
	_, err = exec.Execute(context.Background(), nilSigner, Submission{TradeID: "t2", Request: buyRequest("10")})
	assert.True(t, models.IsKind(err, models.KindMissingCredential))

	ledger.AssertNotCalled(t, "SubmitSignedTransaction", mock.Anything, mock.Anything)
}

func TestExecuteStaleReserves(t *testing.T) {
	ledger := new(MockLedger)
	stale := poolReserves()
	stale.AsOf = time.Now().Add(-time.Minute)
	ledger.On("Connect", mock.Anything).Return(nil)
	ledger.On("PoolInfo", mock.Anything, testPair).Return(stale, nil)

	attempt, err := newTestExecutor(ledger).Execute(context.Background(), testSigner(t), Submission{TradeID: "t1", Request: buyRequest("10")})
	assert.True(t, models.IsKind(err, models.KindInvalidReserves))
	assert.False(t, attempt.Submitted)
	ledger.AssertNotCalled(t, "SubmitSignedTransaction", mock.Anything, mock.Anything)
}

func TestExecuteConnectFailure(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("Connect", mock.Anything).Return(errors.New("dial tcp: connection refused"))

	_, err := newTestExecutor(ledger).Execute(context.Background(), testSigner(t), Submission{TradeID: "t1", Request: buyRequest("10")})
	assert.True(t, models.IsKind(err, models.KindNetworkTimeout))
}

func TestExecuteSubmitTimeout(t *testing.T) {
	ledger := readyLedger()
	ledger.On("SubmitSignedTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(models.SubmitResult{}, context.DeadlineExceeded)

	exec := NewExecutor(ledger, ExecutorConfig{SubmitTimeout: 20 * time.Millisecond, Logger: quietLogger()})
	attempt, err := exec.Execute(context.Background(), testSigner(t), Submission{TradeID: "t1", Request: buyRequest("10")})

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNetworkTimeout))
	assert.True(t, attempt.Submitted)
	assert.NotEmpty(t, attempt.TxHash)
	assert.Equal(t, models.OutcomeFailedTerminal, attempt.Outcome)
	assert.False(t, exec.InFlight("t1"))
}

func TestExecuteClassifiesLedgerResult(t *testing.T) {
	for code, kind := range map[string]models.ErrorKind{
		"tecPATH_PARTIAL":     models.KindSlippageExhausted,
		"tecUNFUNDED_PAYMENT": models.KindInsufficientFunds,
		"tecNO_LINE":          models.KindNoTrustline,
		"tecNO_AUTH":          models.KindUnauthorized,
		"tefMAX_LEDGER":       models.KindExpired,
		"tecKILLED":           models.KindUnknown,
	} {
		t.Run(code, func(t *testing.T) {
			ledger := readyLedger()
			submitReturns(ledger, code)

			attempt, err := newTestExecutor(ledger).Execute(context.Background(), testSigner(t), Submission{TradeID: "t1", Request: buyRequest("10")})
			require.Error(t, err)

			var te *models.Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, kind, te.Kind)
			assert.Equal(t, code, te.Code)
			assert.Equal(t, code, attempt.ResultCode)
			assert.Equal(t, kind, attempt.ErrorKind)
			assert.Equal(t, kind == models.KindSlippageExhausted, attempt.Outcome == models.OutcomeFailedRetryable)
		})
	}
}

func TestExecuteRejectsConcurrentSubmissionOfSameTrade(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	ledger := readyLedger()
	ledger.On("SubmitSignedTransaction", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(models.SubmitResult{ResultCode: "tesSUCCESS", TxHash: "H"}, nil).Once()

	exec := newTestExecutor(ledger)
	signer := testSigner(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = exec.Execute(context.Background(), signer, Submission{TradeID: "same", Request: buyRequest("10")})
	}()

	<-entered
	assert.True(t, exec.InFlight("same"))

	attempt, err := exec.Execute(context.Background(), signer, Submission{TradeID: "same", Request: buyRequest("10")})
	assert.Nil(t, attempt)
	assert.True(t, models.IsKind(err, models.KindAlreadyInProgress))

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
	ledger.AssertNumberOfCalls(t, "SubmitSignedTransaction", 1)
}
