package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionState tracks a single submission.
type ExecutionState string

const (
	StateIdle                 ExecutionState = "idle"
	StateConnecting           ExecutionState = "connecting"
	StateSubmitting           ExecutionState = "submitting"
	StateAwaitingLedgerResult ExecutionState = "awaiting_ledger_result"
	StateSuccess              ExecutionState = "success"
	StateFailedTerminal       ExecutionState = "failed_terminal"
	StateFailedRetryable      ExecutionState = "failed_retryable"
)

func (s ExecutionState) Final() bool {
	switch s {
	case StateSuccess, StateFailedTerminal, StateFailedRetryable:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeFailedTerminal  Outcome = "failed_terminal"
	OutcomeFailedRetryable Outcome = "failed_retryable"
)

// State maps an outcome to the final execution state.
func (o Outcome) State() ExecutionState {
	switch o {
	case OutcomeSuccess:
		return StateSuccess
	case OutcomeFailedRetryable:
		return StateFailedRetryable
	default:
		return StateFailedTerminal
	}
}

// TradeAttempt records one submission (or one locally rejected try) of a
// logical trade. Attempt numbers start at 0 for the initial submission.
type TradeAttempt struct {
	ID              string           `json:"id"`
	TradeID         string           `json:"trade_id"`
	AttemptNumber   int              `json:"attempt_number"`
	Account         string           `json:"account"`
	Request         TradeRequest     `json:"request"`
	Estimate        TradeEstimate    `json:"estimate"`
	DeliverMin      decimal.Decimal  `json:"deliver_min"`
	SendMax         decimal.Decimal  `json:"send_max"`
	Submitted       bool             `json:"submitted"`
	Outcome         Outcome          `json:"outcome"`
	ErrorKind       ErrorKind        `json:"error_kind,omitempty"`
	ResultCode      string           `json:"result_code,omitempty"`
	TxHash          string           `json:"tx_hash,omitempty"`
	DeliveredAmount *decimal.Decimal `json:"delivered_amount,omitempty"`
	Fee             decimal.Decimal  `json:"fee"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
}

func (a TradeAttempt) Succeeded() bool { return a.Outcome == OutcomeSuccess }

func (a TradeAttempt) Duration() time.Duration { return a.FinishedAt.Sub(a.StartedAt) }
