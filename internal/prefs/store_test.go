package prefs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

const account = "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY"

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestValidateAccount(t *testing.T) {
	assert.NoError(t, ValidateAccount(account))
	assert.NoError(t, ValidateAccount("Gx9wVYdTq3Z1a_-b"))

	for _, bad := range []string{"", " ", "has space", "has:colon", "tab\there"} {
		assert.Error(t, ValidateAccount(bad), "account %q should be invalid", bad)
	}
}

func TestStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, account)
	assert.Equal(t, ErrNotFound, err)

	p, err := store.Set(ctx, account, 125)
	require.NoError(t, err)
	assert.Equal(t, uint32(125), p.SlippageBps)
	assert.NotZero(t, p.UpdatedAt)

	bps, err := store.SlippageBps(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint32(125), bps)

	_, err = store.Set(ctx, account, 313)
	require.NoError(t, err)
	got, err := store.Get(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint32(313), got.SlippageBps)
}

func TestStore_SetRejectsOutOfRangeTolerance(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	for _, bps := range []uint32{0, 5001} {
		_, err := store.Set(ctx, account, bps)
		assert.True(t, models.IsKind(err, models.KindInvalidTolerance), "bps %d", bps)
	}

	_, err = store.Get(ctx, account)
	assert.Equal(t, ErrNotFound, err)
}

func TestStore_DeleteAndList(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i := 1; i <= 3; i++ {
		_, err := store.Set(ctx, fmt.Sprintf("acct%d", i), uint32(i*100))
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, "acct2"))
	require.NoError(t, store.Delete(ctx, "never-set"))

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byAccount := map[string]uint32{}
	for _, p := range list {
		byAccount[p.Account] = p.SlippageBps
	}
	assert.Equal(t, map[string]uint32{"acct1": 100, "acct3": 300}, byAccount)
}
