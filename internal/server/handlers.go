package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/prefs"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/pricefeed"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine   *swapengine.Engine
	Signer   swapengine.SignerContext // Server-held signer; nil makes every trade fail with MissingCredential
	Registry *amm.PairRegistry
	Mapper   *command.Mapper

	Prices     *pricefeed.MemoryStore // Poller snapshots (optional)
	PriceCache storage.PriceCache     // Redis snapshots (optional)
	Activity   storage.AttemptCache   // Recent attempts
	History    storage.AttemptStore   // ClickHouse history (optional)
	Prefs      *prefs.Store           // Redis-backed preferences (optional)
	Parser     *command.Parser        // LLM command parser (optional)
	Analyst    *command.Analyst       // LLM trade history analyst (optional)

	// BaseContext outlives requests; background trades run under it.
	BaseContext context.Context
	DevMode     bool
	Logger      *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// tradeErr reports an engine error with its kind and user-facing message.
func (h *Handlers) tradeErr(c echo.Context, err error) error {
	code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var te *models.Error
	if errors.As(err, &te) {
		resp.Kind = te.Kind
		resp.Error = te.UserMessage()
		if h.DevMode {
			resp.Details = map[string]any{"err": err.Error(), "code": te.Code}
		}
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) baseContext() context.Context {
	if h.BaseContext != nil {
		return h.BaseContext
	}
	return context.Background()
}

func (h *Handlers) account() string {
	if h.Signer == nil {
		return ""
	}
	return h.Signer.Account()
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Account: h.account()})
}

func (h *Handlers) Pairs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.Registry.All()})
}

// PairReserves reads live reserves for a registered pair.
func (h *Handlers) PairReserves(c echo.Context) error {
	rp, err := h.Registry.FindBySymbol(c.Param("symbol"))
	if err != nil {
		return h.err(c, http.StatusNotFound, "unknown pair", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	reserves, err := h.Engine.Reserves(ctx, rp.Pair)
	if err != nil {
		return h.tradeErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"symbol":     rp.Symbol,
		"reserves":   reserves,
		"spot_price": reserves.SpotPrice(),
	})
}

// Price returns the display snapshot for a symbol. Snapshots come from the
// poller and are never used to price trades.
func (h *Handlers) Price(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return h.err(c, http.StatusBadRequest, "invalid symbol", nil)
	}

	if h.Prices != nil {
		if snap, ok := h.Prices.Get(symbol); ok {
			return c.JSON(http.StatusOK, snap)
		}
	}
	if h.PriceCache != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		snap, err := h.PriceCache.GetPrice(ctx, symbol)
		if err == nil {
			return c.JSON(http.StatusOK, snap)
		}
		h.Logger.WithError(err).WithField("symbol", symbol).Debug("price cache miss")
	}
	return h.err(c, http.StatusNotFound, "price not available", nil)
}

// RecentActivity returns the most recent attempts with optional limit parameter
// Accepts limit query parameter (default: 50, range: 1-100)
func (h *Handlers) RecentActivity(c echo.Context) error {
	if h.Activity == nil {
		return h.err(c, http.StatusServiceUnavailable, "activity is not configured", nil)
	}

	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Activity.GetRecentAttempts(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get activity", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
