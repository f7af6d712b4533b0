package swapengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/wallet"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLedger) PoolInfo(ctx context.Context, pair models.Pair) (models.PoolReserves, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(models.PoolReserves), args.Error(1)
}

func (m *MockLedger) SubmitSignedTransaction(ctx context.Context, blob models.SignedBlob) (models.SubmitResult, error) {
	args := m.Called(ctx, blob)
	return args.Get(0).(models.SubmitResult), args.Error(1)
}

type recordingReporter struct {
	mu       sync.Mutex
	attempts []models.TradeAttempt
}

func (r *recordingReporter) Report(a models.TradeAttempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
}

func (r *recordingReporter) all() []models.TradeAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TradeAttempt(nil), r.attempts...)
}

var testPair = models.Pair{Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", CurrencyCode: "USD"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func poolReserves() models.PoolReserves {
	return models.PoolReserves{
		Pair:         testPair,
		BaseReserve:  dec("1000"),
		QuoteReserve: dec("100000"),
		AsOf:         time.Now(),
	}
}

func buyRequest(amount string) models.TradeRequest {
	return models.TradeRequest{
		Direction:            models.Buy,
		InputAmount:          dec(amount),
		SlippageToleranceBps: 50,
		Pair:                 testPair,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testSigner(t *testing.T) *wallet.KeySigner {
	t.Helper()
	s, err := wallet.GenerateKeySigner()
	require.NoError(t, err)
	return s
}

// readyLedger answers Connect and PoolInfo with a healthy pool.
func readyLedger() *MockLedger {
	m := new(MockLedger)
	m.On("Connect", mock.Anything).Return(nil)
	m.On("PoolInfo", mock.Anything, testPair).Return(poolReserves(), nil)
	return m
}

func submitReturns(m *MockLedger, code string) *mock.Call {
	return m.On("SubmitSignedTransaction", mock.Anything, mock.Anything).
		Return(models.SubmitResult{ResultCode: code, TxHash: "HASH-" + code, Validated: true}, nil)
}

func newTestEngine(t *testing.T, ledger Ledger, reporter ActivityReporter) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.AutoRetryDelay = time.Millisecond
	cfg.ManualRetryDelay = time.Millisecond
	cfg.Logger = quietLogger()
	e, err := NewEngine(ledger, cfg)
	require.NoError(t, err)
	if reporter != nil {
		e.WithActivity(reporter)
	}
	return e
}
