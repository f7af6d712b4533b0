package server

import (
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/prefs"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/swapengine"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string           `json:"error"`             // Human-readable error message
	Code    int              `json:"code"`              // HTTP status code
	Kind    models.ErrorKind `json:"kind,omitempty"`    // Trade error kind, when there is one
	Details any              `json:"details,omitempty"` // Additional error details (dev mode only)
}

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Account string `json:"account,omitempty"` // Signing account, empty when no signer is configured
}

// TradeBody starts a trade. TradeID is an optional idempotency key.
type TradeBody struct {
	command.Command
	TradeID string `json:"trade_id,omitempty"`
}

type TradeAcceptedResponse struct {
	TradeID   string `json:"trade_id"`
	StatusURL string `json:"status_url"`
}

// EstimateResponse is a quote plus a warning when the tolerance looks too
// tight for the trade's price impact.
type EstimateResponse struct {
	*swapengine.Quote
	Warning string `json:"warning,omitempty"`
}

// TradeHistoryResponse is served for trades no longer held in memory.
type TradeHistoryResponse struct {
	TradeID  string                 `json:"trade_id"`
	Attempts []*models.TradeAttempt `json:"attempts"`
	Source   string                 `json:"source"`
}

// CommandRequest carries either free text or a structured command.
type CommandRequest struct {
	Text     string           `json:"text,omitempty"`
	Command  *command.Command `json:"command,omitempty"`
	Estimate bool             `json:"estimate,omitempty"`
}

type CommandResponse struct {
	Command command.Command     `json:"command"`
	Request models.TradeRequest `json:"request"`
	Quote   *EstimateResponse   `json:"quote,omitempty"`
}

type PrefListResponse struct {
	Preferences []*prefs.Preference `json:"preferences"`
	Count       int                 `json:"count"`
}

type PrefUpdateRequest struct {
	SlippageBps uint32 `json:"slippage_bps"`
}

// AIAskRequest represents a natural language question about trade history
type AIAskRequest struct {
	Question string `json:"question"`
}

type AIAskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}
