package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned for a transition the attempt state machine forbids
var ErrInvalidTransition = errors.New("connection: invalid attempt state transition")

// AttemptState is the state of one OAuth authorization attempt
type AttemptState string

const (
	StateAwaitCallback  AttemptState = "AWAIT_CALLBACK"
	StateExchanging     AttemptState = "EXCHANGING"
	StateIdentityLookup AttemptState = "IDENTITY_LOOKUP"
	StateReconciling    AttemptState = "RECONCILING"
	StateAuditing       AttemptState = "AUDITING"
	StateDone           AttemptState = "DONE"
	StateFailed         AttemptState = "FAILED"
)

// attemptTransitions lists the forward transitions. FAILED is reachable from every
// non-terminal state and is handled separately.
var attemptTransitions = map[AttemptState]AttemptState{
	StateAwaitCallback:  StateExchanging,
	StateExchanging:     StateIdentityLookup,
	StateIdentityLookup: StateReconciling,
	StateReconciling:    StateAuditing,
	StateAuditing:       StateDone,
}

// IsTerminal returns true for DONE and FAILED
func (s AttemptState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransitionTo reports whether next is a legal successor of s
func (s AttemptState) CanTransitionTo(next AttemptState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return attemptTransitions[s] == next
}

// Attempt tracks one authorization attempt through its states
type Attempt struct {
	ID        uuid.UUID
	Platform  PlatformCode
	UserID    string
	StartedAt time.Time
	state     AttemptState
	history   []AttemptState
	failure   error
}

// NewAttempt starts an attempt in AWAIT_CALLBACK
func NewAttempt(platform PlatformCode) *Attempt {
	return &Attempt{
		ID:        uuid.New(),
		Platform:  platform,
		StartedAt: time.Now(),
		state:     StateAwaitCallback,
		history:   []AttemptState{StateAwaitCallback},
	}
}

// State returns the current state
func (a *Attempt) State() AttemptState {
	return a.state
}

// History returns every state the attempt has been in, in order
func (a *Attempt) History() []AttemptState {
	out := make([]AttemptState, len(a.history))
	copy(out, a.history)
	return out
}

// Failure returns the error that moved the attempt to FAILED
func (a *Attempt) Failure() error {
	return a.failure
}

// Advance moves the attempt to the next state
func (a *Attempt) Advance(next AttemptState) error {
	if next == StateFailed {
		return fmt.Errorf("%w: use Fail to enter %s", ErrInvalidTransition, StateFailed)
	}
	if !a.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, next)
	}
	a.state = next
	a.history = append(a.history, next)
	return nil
}

// Fail moves the attempt to FAILED. Failing a terminal attempt is a no-op.
func (a *Attempt) Fail(err error) {
	if a.state.IsTerminal() {
		return
	}
	a.state = StateFailed
	a.failure = err
	a.history = append(a.history, StateFailed)
}
