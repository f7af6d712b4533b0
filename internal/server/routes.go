package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health" || c.Path() == "/metrics"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	v1 := e.Group("/v1", SetJSONContentType)
	v1.GET("/health", h.Health)
	v1.GET("/pairs", h.Pairs)
	v1.GET("/pairs/:symbol/reserves", h.PairReserves)
	v1.GET("/prices/:symbol", h.Price)
	v1.POST("/estimate", h.Estimate)
	v1.GET("/activity/recent", h.RecentActivity)

	// Submissions and LLM calls are rate limited per client
	limited := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.rateLimit()),
		Burst:     cfg.rateBurst(),
		ExpiresIn: 2 * time.Minute,
	}))

	trades := v1.Group("/trades")
	trades.POST("", h.StartTrade, limited)
	trades.GET("/:id", h.GetTrade)
	trades.POST("/:id/retry", h.RetryTrade, limited)
	trades.POST("/:id/cancel", h.CancelTrade)

	v1.POST("/commands", h.Command, limited)

	aigroup := v1.Group("/ai", limited)
	aigroup.POST("/ask", h.AIAsk)

	prefGroup := v1.Group("/prefs")
	prefGroup.GET("", h.PrefsList)
	prefGroup.GET("/:account", h.PrefsGet)
	prefGroup.PUT("/:account", h.PrefsPut)
	prefGroup.DELETE("/:account", h.PrefsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
