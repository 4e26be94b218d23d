package debate

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/rostrum/internal/store"
)

// ErrNotFound is returned when a referenced session does not exist.
var ErrNotFound = errors.New("debate: session not found")

// ValidationError reports malformed input. The caller can always recover
// by correcting the input; it is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("debate: invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError reports an action that is illegal for the session's
// current status. It carries the actual status so the caller can
// resynchronize instead of blindly retrying — the status may well have
// changed between the caller's read and this write attempt.
type StateConflictError struct {
	Action  string
	Current string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("debate: cannot %s while session is %s", e.Action, e.Current)
}

// Token failure reasons, one per distinguishable redemption failure.
const (
	TokenReasonNotFound        = "not_found"
	TokenReasonExpired         = "expired"
	TokenReasonUsed            = "used"
	TokenReasonSessionMismatch = "session_mismatch"
	TokenReasonSelfInvite      = "self_invite"
)

// TokenError reports a failed invitation redemption with a
// machine-readable reason.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("debate: invitation rejected: %s", e.Reason)
}

// Turn failure reasons.
const (
	TurnReasonNotParticipant = "not_participant"
	TurnReasonNotYourTurn    = "not_your_turn"
)

// TurnError reports an argument submission that is invalid for reasons
// other than session status: the submitter is not a debater, or it is
// not their turn. No state changes.
type TurnError struct {
	Reason string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("debate: submission rejected: %s", e.Reason)
}

// UpstreamError wraps a judging gateway failure or timeout. Sessions hit
// by one always land in failed status, never hang in judging.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("debate: judging gateway: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimitError reports too many attempts in a window, with a suggested
// wait when known.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("debate: rate limited, retry after %s", e.RetryAfter)
	}
	return "debate: rate limited"
}

// tokenErrorFrom maps store redemption sentinels to a TokenError.
func tokenErrorFrom(err error) error {
	switch {
	case errors.Is(err, store.ErrTokenNotFound):
		return &TokenError{Reason: TokenReasonNotFound}
	case errors.Is(err, store.ErrTokenExpired):
		return &TokenError{Reason: TokenReasonExpired}
	case errors.Is(err, store.ErrTokenUsed):
		return &TokenError{Reason: TokenReasonUsed}
	case errors.Is(err, store.ErrTokenSessionMismatch):
		return &TokenError{Reason: TokenReasonSessionMismatch}
	default:
		return err
	}
}
