package storage

import "errors"

// Business-rule failures surfaced to callers as typed results. Handlers map
// each to a stable error code; none of these is an unexpected error.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrForbidden           = errors.New("forbidden")
	ErrUserNotFound        = errors.New("user not found")
	ErrAjoNotFound         = errors.New("ajo not found")
	ErrNotMember           = errors.New("not a member")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteAlreadyActive = errors.New("invite already active")
	ErrSelfInviteForbidden = errors.New("self invite forbidden")
	ErrAlreadyMember       = errors.New("already a member")
	ErrRequestNotFound     = errors.New("join request not found")
	ErrAlreadyDecided      = errors.New("join request already decided")
	ErrNoMembers           = errors.New("no contributing members")
	ErrCycleAdvancing      = errors.New("cycle advance already in progress")

	// ErrInvariantViolation means the store found its own state
	// inconsistent. It aborts the enclosing transaction and is logged,
	// never rendered as a business error.
	ErrInvariantViolation = errors.New("invariant violation")
)
