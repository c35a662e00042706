package ports

import "errors"

// Standard application-level errors.
// Adapters and engines wrap underlying errors with these so callers can branch with errors.Is.
var (
	// General Errors
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine Errors
	ErrInvalidTradeInput    = errors.New("invalid trade input")
	ErrNoAccountConfigured  = errors.New("no account configured")
	ErrInvalidAccountConfig = errors.New("invalid account configuration")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
