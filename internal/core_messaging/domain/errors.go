package domain

import (
	"errors"
	"fmt"
	"time"
)

// Allocation failures.
var (
	// ErrNoLineAvailable means no line in the operator's segment (nor the
	// default segment) can accept another operator.
	ErrNoLineAvailable = errors.New("no line available for allocation")
	// ErrCapacityExceeded means the line already holds its segment's
	// maximum of bound operators.
	ErrCapacityExceeded = errors.New("line operator capacity exceeded")
	// ErrSegmentMismatch means the operator's segment differs from the
	// segment of the line's current binding holders.
	ErrSegmentMismatch = errors.New("operator segment does not match line segment")
)

// ErrLineNotActive rejects dispatch through banned or disconnected lines.
var ErrLineNotActive = errors.New("line is not active")

// ErrRateLimited rejects dispatch when the admission gate is enforcing
// and the line is over its tier ceiling.
var ErrRateLimited = errors.New("line send rate limit reached")

// ValidationError marks malformed input rejected before any external
// effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ComplianceDeniedError is returned when the contact-per-client window
// or the blocklist denies an outbound send.
type ComplianceDeniedError struct {
	Reason string
	// RetryAfter is set for CPC denials: the remaining wait until the
	// 24h window elapses. Zero for blocklist denials.
	RetryAfter time.Duration
}

func (e *ComplianceDeniedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("compliance denied: %s (retry after %s)", e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("compliance denied: %s", e.Reason)
}
