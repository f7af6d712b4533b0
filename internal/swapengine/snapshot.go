package swapengine

import (
	"time"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// SessionSnapshot is a point-in-time copy of a trade session, safe to
// hand to callers.
type SessionSnapshot struct {
	TradeID               string                `json:"trade_id"`
	State                 RetrySessionState     `json:"state"`
	ExecutionState        models.ExecutionState `json:"execution_state"`
	InProgress            bool                  `json:"in_progress"`
	CancelRequested       bool                  `json:"cancel_requested"`
	Request               models.TradeRequest   `json:"request"`
	CurrentToleranceBps   uint32                `json:"current_tolerance_bps"`
	SuggestedToleranceBps uint32                `json:"suggested_tolerance_bps,omitempty"`
	Attempts              []models.TradeAttempt `json:"attempts"`
	ErrorKind             models.ErrorKind      `json:"error_kind,omitempty"`
	Error                 string                `json:"error,omitempty"`
	UserMessage           string                `json:"user_message,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// AwaitingDecision reports whether the caller must choose retry or cancel.
func (s SessionSnapshot) AwaitingDecision() bool {
	return s.State.Phase == PhaseAwaitingManualDecision && !s.State.ManualRetryUsed && !s.InProgress
}

func (s *session) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		TradeID:             s.id,
		State:               s.state,
		ExecutionState:      s.execState,
		InProgress:          s.busy,
		CancelRequested:     s.cancelRequested,
		Request:             s.original,
		CurrentToleranceBps: s.request.SlippageToleranceBps,
		Attempts:            append([]models.TradeAttempt(nil), s.attempts...),
		CreatedAt:           s.createdAt,
		UpdatedAt:           s.updatedAt,
	}
	if s.state.Phase == PhaseAwaitingManualDecision {
		snap.SuggestedToleranceBps = s.suggestedBps
	}
	if s.lastErr != nil && s.state.Resolution != ResolutionSuccess {
		kind, _ := models.KindOf(s.lastErr)
		snap.ErrorKind = kind
		snap.Error = s.lastErr.Error()
		snap.UserMessage = kind.UserMessage()
	}
	return snap
}
