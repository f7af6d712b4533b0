package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/prefs"
)

func (h *Handlers) prefsUnavailable(c echo.Context) error {
	return h.err(c, http.StatusServiceUnavailable, "preferences are not configured", nil)
}

// PrefsList returns every stored preference.
func (h *Handlers) PrefsList(c echo.Context) error {
	if h.Prefs == nil {
		return h.prefsUnavailable(c)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	list, err := h.Prefs.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list preferences", nil)
	}
	return c.JSON(http.StatusOK, PrefListResponse{Preferences: list, Count: len(list)})
}

func (h *Handlers) PrefsGet(c echo.Context) error {
	if h.Prefs == nil {
		return h.prefsUnavailable(c)
	}
	account := c.Param("account")
	if err := prefs.ValidateAccount(account); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	p, err := h.Prefs.Get(ctx, account)
	if err != nil {
		if errors.Is(err, prefs.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "preference not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get preference", nil)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handlers) PrefsPut(c echo.Context) error {
	if h.Prefs == nil {
		return h.prefsUnavailable(c)
	}
	account := c.Param("account")
	if err := prefs.ValidateAccount(account); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}
	var req PrefUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := models.ValidateTolerance(req.SlippageBps); err != nil {
		return h.tradeErr(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	p, err := h.Prefs.Set(ctx, account, req.SlippageBps)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to set preference", nil)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handlers) PrefsDelete(c echo.Context) error {
	if h.Prefs == nil {
		return h.prefsUnavailable(c)
	}
	account := c.Param("account")
	if err := prefs.ValidateAccount(account); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Prefs.Delete(ctx, account); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete preference", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
