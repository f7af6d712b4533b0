package swapengine

import (
	"fmt"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// ValidateRequest runs every local check that needs no network access.
// Amount checks run in order: non-positive, below minimum, above maximum.
func ValidateRequest(req models.TradeRequest) error {
	if !req.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", req.Direction)
	}
	if err := req.Pair.Validate(); err != nil {
		return models.WrapError(models.KindInvalidReserves, err)
	}
	if err := models.ValidateAmount("input amount", req.InputAmount); err != nil {
		return err
	}
	return models.ValidateTolerance(req.SlippageToleranceBps)
}

// ComputeBounds derives DeliverMin and SendMax from an estimate at the
// request's tolerance t: DeliverMin = output / (1 + t) and
// SendMax = input * (1 + t), both truncated. Buy and Sell share the
// formulas and differ only in which assets the bounds are denominated in.
func ComputeBounds(req models.TradeRequest, est models.TradeEstimate) (Bounds, error) {
	b := Bounds{
		DeliverMin: models.ApplyBps(est.OutputAmount, req.SlippageToleranceBps, false),
		SendMax:    models.ApplyBps(req.InputAmount, req.SlippageToleranceBps, true),
	}
	if b.DeliverMin.IsZero() && est.OutputAmount.IsPositive() {
		return Bounds{}, models.NewError(models.KindAmountTooSmall, "deliver min for output %s truncates to zero", est.OutputAmount)
	}
	if err := models.ValidateAmount("deliver min", b.DeliverMin); err != nil {
		return Bounds{}, err
	}
	if err := models.ValidateAmount("send max", b.SendMax); err != nil {
		return Bounds{}, err
	}
	return b, nil
}
