package swapengine

import (
	"errors"
	"fmt"
)

// MaxAutoRetries is how many automatic resubmissions follow a retryable
// failure of the initial attempt. One manual retry may follow, so a trade
// is submitted at most MaxSubmissions times.
const (
	MaxAutoRetries = 2
	MaxSubmissions = 1 + MaxAutoRetries + 1
)

type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseAutoRetrying           Phase = "auto_retrying"
	PhaseAwaitingManualDecision Phase = "awaiting_manual_decision"
	PhaseResolved               Phase = "resolved"
)

type Resolution string

const (
	ResolutionSuccess   Resolution = "success"
	ResolutionFailure   Resolution = "failure"
	ResolutionCancelled Resolution = "cancelled"
)

type EventType string

const (
	EventStart                  EventType = "start"
	EventAttemptSucceeded       EventType = "attempt_succeeded"
	EventAttemptFailedRetryable EventType = "attempt_failed_retryable"
	EventAttemptFailedTerminal  EventType = "attempt_failed_terminal"
	EventManualRetry            EventType = "manual_retry"
	EventCancel                 EventType = "cancel"
)

type Event struct {
	Type EventType
}

type ActionType string

const (
	ActionNone          ActionType = "none"
	ActionResubmit      ActionType = "resubmit"
	ActionAwaitDecision ActionType = "await_decision"
	ActionResolve       ActionType = "resolve"
)

type RetryMode string

const (
	ModeInitial RetryMode = "initial"
	ModeAuto    RetryMode = "auto"
	ModeManual  RetryMode = "manual"
)

// Action tells the driver what to do next. AttemptNumber and Mode are set
// for ActionResubmit only.
type Action struct {
	Type          ActionType
	AttemptNumber int
	Mode          RetryMode
}

// RetrySessionState is the bounded retry state of one logical trade.
// LastAttempt is -1 until the first submission.
type RetrySessionState struct {
	Phase           Phase      `json:"phase"`
	Resolution      Resolution `json:"resolution,omitempty"`
	LastAttempt     int        `json:"last_attempt"`
	Submissions     int        `json:"submissions"`
	ManualRetryUsed bool       `json:"manual_retry_used"`
}

func NewRetrySessionState() RetrySessionState {
	return RetrySessionState{Phase: PhaseIdle, LastAttempt: -1}
}

func (s RetrySessionState) Resolved() bool { return s.Phase == PhaseResolved }

var ErrInvalidTransition = errors.New("invalid retry session transition")

func invalid(s RetrySessionState, ev Event) error {
	return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, ev.Type, s.Phase)
}

// Advance is the only way a session changes state. It is pure: the same
// state and event always give the same result.
func Advance(s RetrySessionState, ev Event) (RetrySessionState, Action, error) {
	none := Action{Type: ActionNone}
	if s.Resolved() {
		return s, none, invalid(s, ev)
	}

	switch ev.Type {
	case EventStart:
		if s.Phase != PhaseIdle || s.Submissions != 0 {
			return s, none, invalid(s, ev)
		}
		return submit(s, ModeInitial)

	case EventAttemptSucceeded, EventAttemptFailedTerminal, EventAttemptFailedRetryable:
		if !awaitingResult(s) {
			return s, none, invalid(s, ev)
		}
		switch {
		case ev.Type == EventAttemptSucceeded:
			return resolve(s, ResolutionSuccess)
		case ev.Type == EventAttemptFailedTerminal, s.ManualRetryUsed:
			return resolve(s, ResolutionFailure)
		case s.LastAttempt < MaxAutoRetries:
			s.Phase = PhaseAutoRetrying
			return submit(s, ModeAuto)
		default:
			s.Phase = PhaseAwaitingManualDecision
			return s, Action{Type: ActionAwaitDecision}, nil
		}

	case EventManualRetry:
		if s.Phase != PhaseAwaitingManualDecision || s.ManualRetryUsed {
			return s, none, invalid(s, ev)
		}
		s.ManualRetryUsed = true
		return submit(s, ModeManual)

	case EventCancel:
		return resolve(s, ResolutionCancelled)
	}

	return s, none, invalid(s, ev)
}

// awaitingResult reports whether a submission is outstanding.
func awaitingResult(s RetrySessionState) bool {
	switch s.Phase {
	case PhaseIdle, PhaseAutoRetrying:
		return s.Submissions > 0
	case PhaseAwaitingManualDecision:
		return s.ManualRetryUsed
	}
	return false
}

func submit(s RetrySessionState, mode RetryMode) (RetrySessionState, Action, error) {
	if s.Submissions >= MaxSubmissions {
		return s, Action{Type: ActionNone}, fmt.Errorf("%w: submission limit %d reached", ErrInvalidTransition, MaxSubmissions)
	}
	s.LastAttempt++
	s.Submissions++
	return s, Action{Type: ActionResubmit, AttemptNumber: s.LastAttempt, Mode: mode}, nil
}

func resolve(s RetrySessionState, r Resolution) (RetrySessionState, Action, error) {
	s.Phase = PhaseResolved
	s.Resolution = r
	return s, Action{Type: ActionResolve}, nil
}
