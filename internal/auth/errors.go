package auth

import (
	"errors"
	"math"
	"strconv"
)

var (
	// ErrInvalidInput is returned for a missing user ID or a malformed descriptor.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuthenticationFailed is returned when no enrolled identity is close enough.
	ErrAuthenticationFailed = errors.New("face not recognized")
)

// FailureReason explains an authentication failure. It is logged but never sent to clients:
// an empty store and a near miss produce the same response.
type FailureReason string

const (
	ReasonEmptyStore FailureReason = "empty_store"
	ReasonNoMatch    FailureReason = "no_match"
)

// FailureError is returned by Login when authentication fails. It matches
// ErrAuthenticationFailed with errors.Is.
type FailureError struct {
	Reason  FailureReason
	Nearest float64 // distance of the nearest comparable identity, +Inf if none
}

func (e *FailureError) Error() string {
	if math.IsInf(e.Nearest, 1) {
		return ErrAuthenticationFailed.Error() + " (" + string(e.Reason) + ")"
	}
	return ErrAuthenticationFailed.Error() + " (" + string(e.Reason) +
		", nearest distance " + strconv.FormatFloat(e.Nearest, 'f', 4, 64) + ")"
}

func (e *FailureError) Unwrap() error {
	return ErrAuthenticationFailed
}
