// Package apperrors defines the sentinel errors shared across the funding
// lifecycle. Handlers map these to HTTP status codes; services wrap them with
// context via fmt.Errorf("...: %w", err).
package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrDuplicateProject = errors.New("project id already exists")
	ErrValidation       = errors.New("validation failed")

	// State machine violations.
	ErrTerminalState     = errors.New("project is in a terminal state")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotApproved       = errors.New("project is not approved")
	ErrAlreadyDeployed   = errors.New("escrow contract already deployed")

	// Collaborator failures. The aggregate is never mutated when these are
	// returned, so callers may retry the operation.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrCollaboratorTimeout     = errors.New("collaborator timed out")
)
