package activity

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
)

var _ storage.AttemptCache = (*MemoryLog)(nil)

type sinkFunc func(ctx context.Context, a *models.TradeAttempt) error

func (f sinkFunc) RecordAttempt(ctx context.Context, a *models.TradeAttempt) error { return f(ctx, a) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDispatcher_FansOutToEverySink(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()})

	var mu sync.Mutex
	seen := map[string]int{}
	record := func(name string) storage.AttemptSink {
		return sinkFunc(func(_ context.Context, a *models.TradeAttempt) error {
			mu.Lock()
			seen[name] += a.AttemptNumber
			mu.Unlock()
			return nil
		})
	}
	d.AddSink("redis", record("redis")).AddSink("clickhouse", record("clickhouse")).AddSink("none", nil)
	assert.Equal(t, 2, d.Sinks())

	d.Report(models.TradeAttempt{TradeID: "t1", AttemptNumber: 1})
	d.Report(models.TradeAttempt{TradeID: "t1", AttemptNumber: 2})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, map[string]int{"redis": 3, "clickhouse": 3}, seen)
}

func TestDispatcher_FailingSinkDoesNotBlockOthers(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()})

	ok := make(chan struct{}, 1)
	d.AddSink("broken", sinkFunc(func(context.Context, *models.TradeAttempt) error {
		return errors.New("connection refused")
	}))
	d.AddSink("panics", sinkFunc(func(context.Context, *models.TradeAttempt) error {
		panic("boom")
	}))
	d.AddSink("ok", sinkFunc(func(context.Context, *models.TradeAttempt) error {
		ok <- struct{}{}
		return nil
	}))

	d.Report(models.TradeAttempt{TradeID: "t2", AttemptNumber: 1})
	require.NoError(t, d.Close(context.Background()))

	select {
	case <-ok:
	default:
		t.Fatal("healthy sink did not receive the attempt")
	}
}

func TestDispatcher_ReportReturnsBeforeSlowSink(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger(), WriteTimeout: 50 * time.Millisecond})

	d.AddSink("slow", sinkFunc(func(ctx context.Context, _ *models.TradeAttempt) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	d.Report(models.TradeAttempt{TradeID: "t3", AttemptNumber: 1})
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseStopsAccepting(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()})
	calls := 0
	d.AddSink("count", sinkFunc(func(context.Context, *models.TradeAttempt) error {
		calls++
		return nil
	}))

	require.NoError(t, d.Close(context.Background()))
	d.Report(models.TradeAttempt{TradeID: "t4"})
	require.NoError(t, d.Close(context.Background()))
	assert.Zero(t, calls)
}

func TestMemoryLog_NewestFirstAndCapped(t *testing.T) {
	m := NewMemoryLog(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, m.RecordAttempt(ctx, &models.TradeAttempt{AttemptNumber: i}))
	}

	got, err := m.GetRecentAttempts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 5, got[0].AttemptNumber)
	assert.Equal(t, 3, got[2].AttemptNumber)

	got, err = m.GetRecentAttempts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
