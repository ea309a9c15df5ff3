package model

import "errors"

var (
	// ErrNotFound signals that a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSuperseded signals that a newer command replaced the one that
	// produced this work. It is a terminal outcome, not a failure, and
	// callers must render it differently from an empty result.
	ErrSuperseded = errors.New("command superseded")

	ErrInvalidDuration = errors.New("invalid duration spec")
	ErrInvalidQuota    = errors.New("quota must be positive")
)

// Validity outcomes. All of them mean "access denied" for authorization
// purposes but carry different caller-facing meaning.
var (
	ErrGrantMissing = errors.New("no access grant")
	ErrGrantExpired = errors.New("access grant expired")
	ErrGrantPaused  = errors.New("access grant paused")
)
