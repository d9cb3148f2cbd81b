package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy.
var (
	// ErrQueryRejected marks a query blocked by the validation gate. It is a
	// user-facing verdict, not a system error.
	ErrQueryRejected = errors.New("query rejected")

	// ErrProviderUnavailable marks a failed or timed-out call to one of the
	// external AI providers. Recoverable; components degrade, never propagate.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrBackendUnreachable marks a failed search backend call. Fatal for the
	// request and surfaced to the caller as retryable.
	ErrBackendUnreachable = errors.New("search backend unreachable")

	// Validation gate errors.
	ErrQueryEmpty     = errors.New("query is empty")
	ErrQueryInjection = errors.New("query contains suspicious content")
)

// RejectedError wraps ErrQueryRejected with the classifier's verdict.
type RejectedError struct {
	Score  int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s (score=%d)", ErrQueryRejected, e.Reason, e.Score)
}

func (e *RejectedError) Unwrap() error { return ErrQueryRejected }
