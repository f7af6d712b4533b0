package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

func setupTestClickHouse(t *testing.T) *ClickHouseStore {
	addr := os.Getenv("CLICKHOUSE_TEST_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_TEST_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewClickHouseStore(ctx, ClickHouseConfig{Addr: addr, Database: "default"})
	if err != nil {
		t.Skipf("ClickHouse not available: %v", err)
	}
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestClickHouseStore_RoundTrip(t *testing.T) {
	store := setupTestClickHouse(t)
	defer store.Close()

	ctx := context.Background()
	tradeID := uuid.NewString()

	first := testAttempt(tradeID, 1, models.OutcomeFailedRetryable)
	first.ErrorKind = models.KindSlippageExhausted
	first.ResultCode = "tecPATH_PARTIAL"
	first.DeliveredAmount = nil
	second := testAttempt(tradeID, 2, models.OutcomeSuccess)

	require.NoError(t, store.RecordAttempt(ctx, second))
	require.NoError(t, store.RecordAttempt(ctx, first))

	got, err := store.AttemptsForTrade(ctx, tradeID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].AttemptNumber)
	assert.Equal(t, models.KindSlippageExhausted, got[0].ErrorKind)
	assert.Nil(t, got[0].DeliveredAmount)
	assert.Equal(t, models.OutcomeSuccess, got[1].Outcome)
	require.NotNil(t, got[1].DeliveredAmount)
	assert.Equal(t, "2.4", got[1].DeliveredAmount.String())
	assert.Equal(t, "10", got[1].Request.InputAmount.String())
}
