package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
)

// StartTrade validates the body and runs the trade in the background.
// It answers 202 with the trade ID, or 409 when that ID is already running.
func (h *Handlers) StartTrade(c echo.Context) error {
	var body TradeBody
	if err := c.Bind(&body); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	req, err := h.Mapper.ToTradeRequest(ctx, h.account(), body.Command)
	if err != nil {
		return h.tradeErr(c, err)
	}

	id, err := h.Engine.ExecuteTradeAsync(h.baseContext(), h.Signer, req, h.logResult("trade"), swapengine.WithTradeID(body.TradeID))
	if err != nil {
		return h.tradeErr(c, err)
	}
	return c.JSON(http.StatusAccepted, TradeAcceptedResponse{TradeID: id, StatusURL: "/v1/trades/" + id})
}

// GetTrade returns the live session, or stored history once the session
// has been pruned.
func (h *Handlers) GetTrade(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if snap, ok := h.Engine.Session(id); ok {
		return c.JSON(http.StatusOK, snap)
	}

	if h.History != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		attempts, err := h.History.AttemptsForTrade(ctx, id)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to load trade history", map[string]any{"err": err.Error()})
		}
		if len(attempts) > 0 {
			return c.JSON(http.StatusOK, TradeHistoryResponse{TradeID: id, Attempts: attempts, Source: "history"})
		}
	}
	return h.err(c, http.StatusNotFound, "trade not found", nil)
}

// RetryTrade starts the manual retry of a trade awaiting a decision.
func (h *Handlers) RetryTrade(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Engine.RetryAsync(h.baseContext(), h.Signer, id, h.logResult("manual retry")); err != nil {
		return h.tradeErr(c, err)
	}
	return c.JSON(http.StatusAccepted, TradeAcceptedResponse{TradeID: id, StatusURL: "/v1/trades/" + id})
}

func (h *Handlers) CancelTrade(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Engine.Cancel(id); err != nil {
		return h.tradeErr(c, err)
	}
	snap, _ := h.Engine.Session(id)
	return c.JSON(http.StatusOK, snap)
}

func (h *Handlers) logResult(what string) func(*models.TradeAttempt, error) {
	return func(a *models.TradeAttempt, err error) {
		fields := logrus.Fields{}
		if a != nil {
			fields["trade_id"] = a.TradeID
			fields["attempt"] = a.AttemptNumber
			fields["outcome"] = a.Outcome
		}
		if err != nil {
			h.Logger.WithError(err).WithFields(fields).Info(what + " finished without success")
			return
		}
		h.Logger.WithFields(fields).Info(what + " succeeded")
	}
}
