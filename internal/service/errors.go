package service

import (
	"errors"
	"fmt"
)

// Business errors exported for the controllers. Validation errors are
// detected before any write; DependencyFailure inside an atomic cascade
// rolls the whole cascade back.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrMissingReason      = errors.New("a reason of at least 10 characters is required")
	ErrNotReadyForReview  = errors.New("episode is not ready for review")
	ErrInvalidRecipients  = errors.New("at least one valid recipient email is required")
	ErrMissingTracking    = errors.New("carrier and tracking number are required")
	ErrInvalidDocument    = errors.New("invalid document type")
	ErrDependencyFailure  = errors.New("dependency failure")
	ErrOrderAlreadyExists = errors.New("order was already initialized")
)

// ErrFinalState marks attempts to move an order out of a terminal state.
// It wraps ErrInvalidTransition so callers checking for the broad kind
// still match.
var ErrFinalState = fmt.Errorf("%w: order is in a terminal state", ErrInvalidTransition)
