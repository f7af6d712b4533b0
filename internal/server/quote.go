package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// Estimate previews a trade: output, price impact, bounds, the curve
// output for comparison and a tolerance recommendation.
func (h *Handlers) Estimate(c echo.Context) error {
	var cmd command.Command
	if err := c.Bind(&cmd); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	req, err := h.Mapper.ToTradeRequest(ctx, h.account(), cmd)
	if err != nil {
		return h.tradeErr(c, err)
	}
	out, err := h.estimate(ctx, req)
	if err != nil {
		return h.tradeErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) estimate(ctx context.Context, req models.TradeRequest) (*EstimateResponse, error) {
	q, err := h.Engine.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &EstimateResponse{Quote: q}
	if !q.Slippage.Adequate {
		out.Warning = fmt.Sprintf("tolerance %d bps is below the recommended %d bps for a %s bps price impact",
			q.Slippage.CurrentBps, q.Slippage.RecommendedBps, q.Slippage.ImpactBps)
	}
	return out, nil
}
