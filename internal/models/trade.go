package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NativeCurrency is the ledger's base asset. Pools price every issued
// currency against it.
const NativeCurrency = "XRP"

// AmountPrecision is the number of fractional digits kept for every
// ledger amount. Anything finer is truncated, never rounded up.
const AmountPrecision int32 = 6

var (
	// MinAmount is the smallest representable positive amount.
	MinAmount = decimal.New(1, -AmountPrecision)
	// MaxAmount bounds input amounts and every derived bound.
	MaxAmount = decimal.New(1, 11)

	bpsDenominator = decimal.NewFromInt(10_000)
)

const (
	MinToleranceBps uint32 = 1
	MaxToleranceBps uint32 = 5000
)

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) Valid() bool { return d == Buy || d == Sell }

// Asset is one side of a pool. The native asset has no issuer.
type Asset struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

func NativeAsset() Asset { return Asset{Currency: NativeCurrency} }

func (a Asset) IsNative() bool { return a.Issuer == "" }

func (a Asset) String() string {
	if a.IsNative() {
		return a.Currency
	}
	return a.Currency + "." + a.Issuer
}

// Pair identifies the issued (quote) side of a native/issued pool.
type Pair struct {
	Issuer       string `json:"issuer"`
	CurrencyCode string `json:"currency_code"`
}

func (p Pair) Validate() error {
	if strings.TrimSpace(p.Issuer) == "" {
		return fmt.Errorf("pair issuer is required")
	}
	code := strings.TrimSpace(p.CurrencyCode)
	if code == "" {
		return fmt.Errorf("pair currency code is required")
	}
	if len(code) > 40 {
		return fmt.Errorf("pair currency code %q is too long", code)
	}
	return nil
}

func (p Pair) QuoteAsset() Asset { return Asset{Currency: p.CurrencyCode, Issuer: p.Issuer} }

func (p Pair) String() string { return p.CurrencyCode + "." + p.Issuer }

// TradeRequest is a user's intent. Buy spends the native asset to receive
// the issued one; Sell is the reverse.
type TradeRequest struct {
	Direction            Direction       `json:"direction"`
	InputAmount          decimal.Decimal `json:"input_amount"`
	SlippageToleranceBps uint32          `json:"slippage_tolerance_bps"`
	Pair                 Pair            `json:"pair"`
}

func (r TradeRequest) SpendAsset() Asset {
	if r.Direction == Sell {
		return r.Pair.QuoteAsset()
	}
	return NativeAsset()
}

func (r TradeRequest) ReceiveAsset() Asset {
	if r.Direction == Sell {
		return NativeAsset()
	}
	return r.Pair.QuoteAsset()
}

// WithTolerance returns a copy of r with a different slippage tolerance.
func (r TradeRequest) WithTolerance(bps uint32) TradeRequest {
	r.SlippageToleranceBps = bps
	return r
}

// PoolReserves is a point-in-time snapshot of a pool.
type PoolReserves struct {
	Pair          Pair            `json:"pair"`
	BaseReserve   decimal.Decimal `json:"base_reserve"`
	QuoteReserve  decimal.Decimal `json:"quote_reserve"`
	TradingFeeBps uint32          `json:"trading_fee_bps"`
	AsOf          time.Time       `json:"as_of"`
}

// SpotPrice is native units per issued unit. Callers must check reserves first.
func (p PoolReserves) SpotPrice() decimal.Decimal {
	return TruncQuo(p.BaseReserve, p.QuoteReserve)
}

type TradeEstimate struct {
	OutputAmount   decimal.Decimal `json:"output_amount"`
	PriceImpactBps decimal.Decimal `json:"price_impact_bps"`
	Fee            decimal.Decimal `json:"fee"`
}

// Truncate drops digits beyond AmountPrecision toward zero.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(AmountPrecision)
}

// TruncQuo divides a by b keeping AmountPrecision digits, truncating.
// b must be non-zero.
func TruncQuo(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, AmountPrecision)
	return q
}

var bpsStep = decimal.New(1, -2)

// Bps returns part as basis points of whole, rounded up to two decimals.
// Any remainder pushes the value up so an impact just past a bucket
// boundary never reads as the boundary itself.
func Bps(part, whole decimal.Decimal) decimal.Decimal {
	q, r := part.Mul(bpsDenominator).QuoRem(whole, 2)
	if r.IsPositive() {
		q = q.Add(bpsStep)
	}
	return q
}

// ApplyBps scales amount by (10000 + bps) / 10000 when up is true and by
// 10000 / (10000 + bps) otherwise. The result is truncated.
func ApplyBps(amount decimal.Decimal, bps uint32, up bool) decimal.Decimal {
	factor := bpsDenominator.Add(decimal.NewFromInt(int64(bps)))
	if up {
		return TruncQuo(amount.Mul(factor), bpsDenominator)
	}
	return TruncQuo(amount.Mul(bpsDenominator), factor)
}

// AmountFromFloat converts a user-entered float. NaN and infinities are
// rejected as InvalidAmount.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, NewError(KindInvalidAmount, "amount %v is not a finite number", f)
	}
	return decimal.NewFromFloat(f), nil
}

// ValidateAmount checks an amount against the representable range.
func ValidateAmount(field string, d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return NewError(KindInvalidAmount, "%s must be greater than zero, got %s", field, d)
	case d.LessThan(MinAmount):
		return NewError(KindAmountTooSmall, "%s %s is below the minimum %s", field, d, MinAmount)
	case d.GreaterThan(MaxAmount):
		return NewError(KindAmountTooLarge, "%s %s exceeds the maximum %s", field, d, MaxAmount)
	}
	return nil
}

// ValidateTolerance checks a slippage tolerance in basis points.
func ValidateTolerance(bps uint32) error {
	if bps < MinToleranceBps || bps > MaxToleranceBps {
		return NewError(KindInvalidTolerance, "slippage tolerance %d bps outside [%d, %d]", bps, MinToleranceBps, MaxToleranceBps)
	}
	return nil
}
