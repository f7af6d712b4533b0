package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
)

// Command maps a structured or free-text instruction to a trade request,
// optionally with an estimate. Nothing is submitted.
func (h *Handlers) Command(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Command == nil && req.Text == "" {
		return h.err(c, http.StatusBadRequest, "text or command is required", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	var cmd command.Command
	if req.Command != nil {
		cmd = *req.Command
	} else {
		if h.Parser == nil {
			return h.err(c, http.StatusServiceUnavailable, "natural language parsing is not configured", nil)
		}
		parsed, err := h.Parser.Parse(ctx, req.Text, h.Registry.Symbols())
		if err != nil {
			return h.err(c, http.StatusUnprocessableEntity, "could not understand instruction", map[string]any{"err": err.Error()})
		}
		cmd = parsed
	}

	tradeReq, err := h.Mapper.ToTradeRequest(ctx, h.account(), cmd)
	if err != nil {
		return h.tradeErr(c, err)
	}

	out := CommandResponse{Command: cmd, Request: tradeReq}
	if req.Estimate {
		q, err := h.estimate(ctx, tradeReq)
		if err != nil {
			return h.tradeErr(c, err)
		}
		out.Quote = q
	}
	return c.JSON(http.StatusOK, out)
}

// AIAsk answers a natural language question about trade history.
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.Analyst == nil {
		return h.err(c, http.StatusServiceUnavailable, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()
	res, err := h.Analyst.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
