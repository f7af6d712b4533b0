package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is a display-only view of a pool. It is never used to
// price a submitted trade.
type PriceSnapshot struct {
	Symbol        string          `json:"symbol"`
	Pair          Pair            `json:"pair"`
	Price         decimal.Decimal `json:"price"`
	BaseReserve   decimal.Decimal `json:"base_reserve"`
	QuoteReserve  decimal.Decimal `json:"quote_reserve"`
	TradingFeeBps uint32          `json:"trading_fee_bps"`
	AsOf          time.Time       `json:"as_of"`
	FetchedAt     time.Time       `json:"fetched_at"`
}
