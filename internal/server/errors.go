package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, swapengine.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, swapengine.ErrSessionResolved), errors.Is(err, swapengine.ErrNoDecisionPending):
		return http.StatusConflict
	}

	kind, ok := models.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case models.KindInvalidAmount, models.KindAmountTooSmall, models.KindAmountTooLarge, models.KindInvalidTolerance:
		return http.StatusBadRequest
	case models.KindAlreadyInProgress:
		return http.StatusConflict
	case models.KindMissingCredential:
		return http.StatusServiceUnavailable
	case models.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	case models.KindUnknown:
		var te *models.Error
		if errors.As(err, &te) {
			return http.StatusBadGateway
		}
		// plain errors, e.g. an unknown direction
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
