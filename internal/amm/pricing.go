package amm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Estimate prices a trade against a reserve snapshot using the spot rate
// (linear approximation). Price is base/quote; a Buy spends base and a
// Sell spends quote. Output is truncated to the ledger precision.
//
// Fee is the pool trading fee charged on the input. It is informational
// only and is not subtracted from OutputAmount.
func Estimate(reserves models.PoolReserves, req models.TradeRequest) (models.TradeEstimate, error) {
	if err := CheckReserves(reserves); err != nil {
		return models.TradeEstimate{}, err
	}
	if !req.InputAmount.IsPositive() {
		return models.TradeEstimate{}, models.NewError(models.KindInvalidAmount, "input amount must be greater than zero, got %s", req.InputAmount)
	}

	base, quote, in := reserves.BaseReserve, reserves.QuoteReserve, req.InputAmount

	var est models.TradeEstimate
	switch req.Direction {
	case models.Buy:
		// input / price == input * quote / base
		est.OutputAmount = models.TruncQuo(in.Mul(quote), base)
		est.PriceImpactBps = models.Bps(in, base)
	case models.Sell:
		// input * price == input * base / quote
		est.OutputAmount = models.TruncQuo(in.Mul(base), quote)
		est.PriceImpactBps = models.Bps(in, quote)
	default:
		return models.TradeEstimate{}, fmt.Errorf("unknown direction %q", req.Direction)
	}

	est.Fee = models.TruncQuo(in.Mul(decimal.NewFromInt(int64(reserves.TradingFeeBps))), bpsDenominator)
	return est, nil
}

// ConstantProductOutput is the x*y=k output for the same trade, after the
// pool fee. It is shown next to the linear estimate so a user can see how
// far the approximation drifts on large trades; bounds are never built
// from it.
func ConstantProductOutput(reserves models.PoolReserves, req models.TradeRequest) (decimal.Decimal, error) {
	if err := CheckReserves(reserves); err != nil {
		return decimal.Zero, err
	}
	if !req.InputAmount.IsPositive() {
		return decimal.Zero, models.NewError(models.KindInvalidAmount, "input amount must be greater than zero, got %s", req.InputAmount)
	}

	var reserveIn, reserveOut decimal.Decimal
	switch req.Direction {
	case models.Buy:
		reserveIn, reserveOut = reserves.BaseReserve, reserves.QuoteReserve
	case models.Sell:
		reserveIn, reserveOut = reserves.QuoteReserve, reserves.BaseReserve
	default:
		return decimal.Zero, fmt.Errorf("unknown direction %q", req.Direction)
	}

	feeFactor := bpsDenominator.Sub(decimal.NewFromInt(int64(reserves.TradingFeeBps)))
	inAfterFee := req.InputAmount.Mul(feeFactor).Div(bpsDenominator)

	// out = reserveOut * in / (reserveIn + in)
	return models.TruncQuo(reserveOut.Mul(inAfterFee), reserveIn.Add(inAfterFee)), nil
}

// SpotPrice returns base units per quote unit.
func SpotPrice(reserves models.PoolReserves) (decimal.Decimal, error) {
	if err := CheckReserves(reserves); err != nil {
		return decimal.Zero, err
	}
	return reserves.SpotPrice(), nil
}
