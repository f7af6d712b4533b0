package constants

import "time"

// Redis keys
const (
	RedisKeyRecentAttempts = "trades:recent"
	RedisKeyPricePrefix    = "price:"
	RedisKeyPrefsPrefix    = "prefs:"
	RedisKeyPrefsIndex     = "prefs:accounts"
)

// Redis Pub/Sub channels
const (
	PubSubChannelAttempts      = "trades:live"
	PubSubChannelTradePrefix   = "trades:trade:"
	PubSubChannelOutcomePrefix = "trades:outcome:"
)

// ClickHouse tables
const (
	ClickHouseTableAttempts = "trade_attempts"
)

// Limits
const (
	MaxRecentAttempts = 100
	// PriceSnapshotTTL bounds how long a display price survives in Redis
	// after the poller stops.
	PriceSnapshotTTL = 5 * time.Minute
)

// Activity delivery
const (
	ActivityWriteTimeout = 5 * time.Second
)

// Slippage defaults, in basis points
const (
	DefaultSlippageBps uint32 = 50
)
