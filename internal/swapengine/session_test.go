package swapengine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(t *testing.T, s RetrySessionState, ev EventType) (RetrySessionState, Action) {
	t.Helper()
	next, action, err := Advance(s, Event{Type: ev})
	require.NoError(t, err, "%s from %s", ev, s.Phase)
	return next, action
}

func TestAdvanceExhaustsAutoRetriesThenWaits(t *testing.T) {
	s := NewRetrySessionState()

	s, a := step(t, s, EventStart)
	assert.Equal(t, Action{Type: ActionResubmit, AttemptNumber: 0, Mode: ModeInitial}, a)
	assert.Equal(t, PhaseIdle, s.Phase)

	s, a = step(t, s, EventAttemptFailedRetryable)
	assert.Equal(t, Action{Type: ActionResubmit, AttemptNumber: 1, Mode: ModeAuto}, a)
	assert.Equal(t, PhaseAutoRetrying, s.Phase)

	s, a = step(t, s, EventAttemptFailedRetryable)
	assert.Equal(t, Action{Type: ActionResubmit, AttemptNumber: 2, Mode: ModeAuto}, a)

	s, a = step(t, s, EventAttemptFailedRetryable)
	assert.Equal(t, ActionAwaitDecision, a.Type)
	assert.Equal(t, PhaseAwaitingManualDecision, s.Phase)
	assert.Equal(t, 3, s.Submissions)

	s, a = step(t, s, EventManualRetry)
	assert.Equal(t, Action{Type: ActionResubmit, AttemptNumber: 3, Mode: ModeManual}, a)

	s, a = step(t, s, EventAttemptFailedRetryable)
	assert.Equal(t, ActionResolve, a.Type)
	assert.Equal(t, ResolutionFailure, s.Resolution)
	assert.Equal(t, MaxSubmissions, s.Submissions)
}

func TestAdvanceResolutions(t *testing.T) {
	start, _ := step(t, NewRetrySessionState(), EventStart)

	s, a := step(t, start, EventAttemptSucceeded)
	assert.Equal(t, ActionResolve, a.Type)
	assert.Equal(t, ResolutionSuccess, s.Resolution)

	s, _ = step(t, start, EventAttemptFailedTerminal)
	assert.Equal(t, ResolutionFailure, s.Resolution)

	retrying, _ := step(t, start, EventAttemptFailedRetryable)
	s, _ = step(t, retrying, EventAttemptSucceeded)
	assert.Equal(t, ResolutionSuccess, s.Resolution)

	s, _ = step(t, retrying, EventCancel)
	assert.Equal(t, ResolutionCancelled, s.Resolution)
	assert.Equal(t, 2, s.Submissions)
}

func TestAdvanceCancelFromDecision(t *testing.T) {
	s := NewRetrySessionState()
	for _, ev := range []EventType{EventStart, EventAttemptFailedRetryable, EventAttemptFailedRetryable, EventAttemptFailedRetryable} {
		s, _ = step(t, s, ev)
	}
	require.Equal(t, PhaseAwaitingManualDecision, s.Phase)

	s, a := step(t, s, EventCancel)
	assert.Equal(t, ActionResolve, a.Type)
	assert.Equal(t, ResolutionCancelled, s.Resolution)
	assert.Equal(t, 3, s.Submissions)
}

func TestAdvanceRejectsInvalidTransitions(t *testing.T) {
	idle := NewRetrySessionState()
	for _, ev := range []EventType{EventAttemptSucceeded, EventAttemptFailedRetryable, EventManualRetry} {
		_, _, err := Advance(idle, Event{Type: ev})
		assert.ErrorIs(t, err, ErrInvalidTransition, string(ev))
	}

	started, _ := step(t, idle, EventStart)
	_, _, err := Advance(started, Event{Type: EventStart})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = Advance(started, Event{Type: EventManualRetry})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, _ := step(t, started, EventAttemptSucceeded)
	for _, ev := range []EventType{EventStart, EventCancel, EventManualRetry, EventAttemptSucceeded} {
		next, a, err := Advance(done, Event{Type: ev})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, done, next)
		assert.Equal(t, ActionNone, a.Type)
	}

	s := started
	for _, ev := range []EventType{EventAttemptFailedRetryable, EventAttemptFailedRetryable, EventAttemptFailedRetryable, EventManualRetry} {
		s, _ = step(t, s, ev)
	}
	_, _, err = Advance(s, Event{Type: EventManualRetry})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdvanceNeverExceedsSubmissionLimit(t *testing.T) {
	events := []EventType{
		EventStart, EventAttemptSucceeded, EventAttemptFailedRetryable,
		EventAttemptFailedTerminal, EventManualRetry, EventCancel,
	}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 2000; run++ {
		s := NewRetrySessionState()
		resubmits := 0
		for i := 0; i < 30 && !s.Resolved(); i++ {
			next, a, err := Advance(s, Event{Type: events[rng.Intn(len(events))]})
			if err != nil {
				assert.Equal(t, s, next)
				continue
			}
			if a.Type == ActionResubmit {
				resubmits++
				assert.Equal(t, resubmits-1, a.AttemptNumber)
			}
			s = next
			assert.LessOrEqual(t, s.Submissions, MaxSubmissions)
		}
		assert.Equal(t, resubmits, s.Submissions)
	}
}
