package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// User errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// Session errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrSessionClosed    = errors.New("session is closed")
	ErrNotOwner         = errors.New("only the session owner may close it")

	// ErrActiveSessionExists is returned when a user who already owns or
	// participates in an active session tries to create another one.
	ErrActiveSessionExists = errors.New("user already has an active session")

	// ErrNoActiveSession is returned when an operation requires an active
	// session and the user has none.
	ErrNoActiveSession = errors.New("no active session")

	// ErrAmbiguousActiveSession signals a data-integrity problem: more than
	// one distinct active session claims the same user. Never expected under
	// correct operation; callers must not silently pick one.
	ErrAmbiguousActiveSession = errors.New("multiple active sessions for user")
)

// Invoice errors
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
)
