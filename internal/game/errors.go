package game

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Err...) so callers
// can classify with errors.Is.
var (
	// ErrIllegalAction is returned when a requested action violates timing
	// or game rules.
	ErrIllegalAction = errors.New("illegal action")
	// ErrInvalidTarget is returned when a declared target does not exist or
	// cannot be targeted.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInsufficientResources is returned when a cost cannot be paid.
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrProtocolViolation is returned when a gateway reply is malformed,
	// out of order, or names choices that were never offered.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrSessionTerminated is returned when a game has finished or been
	// aborted and can accept no further input.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrGameNotFound is returned when a game ID is unknown to the engine.
	ErrGameNotFound = errors.New("game not found")
)
