package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by calls that need the Run loop after it exited.
var ErrStopped = errors.New("engine stopped")

// ErrAlreadyAttached is returned by Attach while a source is attached.
var ErrAlreadyAttached = errors.New("probability source already attached")

// RuntimeError represents an error detected during engine execution.
//
// Runtime errors include:
//   - Empty log: a decode trigger arrived before any flash
//   - Subscription lost: the probability stream ended or failed
//
// Neither is retried by the engine.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Session identifies the affected session.
	Session string

	// Details contains additional context.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEmptyLog indicates a decode trigger with nothing flashed yet.
	// Internal and non-fatal; never surfaced to the user.
	ErrCodeEmptyLog RuntimeErrorCode = "EMPTY_LOG"

	// ErrCodeSubscriptionLost indicates the probability stream terminated.
	ErrCodeSubscriptionLost RuntimeErrorCode = "SUBSCRIPTION_LOST"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Session != "" {
		msg = fmt.Sprintf("%s (session=%s)", msg, e.Session)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the cause.
func (e *RuntimeError) Unwrap() error { return e.Cause }

// IsEmptyLog returns true if the error is an empty-log error.
// Uses errors.As to handle wrapped errors.
func IsEmptyLog(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEmptyLog
	}
	return false
}

// IsSubscriptionLost returns true if the error is a subscription-lost error.
// Uses errors.As to handle wrapped errors.
func IsSubscriptionLost(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSubscriptionLost
	}
	return false
}

// NewEmptyLogError creates a RuntimeError for a trigger with no flash.
func NewEmptyLogError(session string, probability float64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEmptyLog,
		Message: "decode trigger before any flash",
		Session: session,
		Details: map[string]string{
			"probability": fmt.Sprintf("%g", probability),
		},
	}
}

// NewSubscriptionLostError creates a RuntimeError for a lost stream.
func NewSubscriptionLostError(session string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSubscriptionLost,
		Message: "probability stream ended",
		Session: session,
		Cause:   cause,
	}
}
