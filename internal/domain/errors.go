package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument is returned when a caller supplies an input that can never
// succeed, such as a non-positive window length.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrConnection is returned when the store cannot be reached or rejects the
// credentials. Handlers should map this to HTTP 503.
var ErrConnection = errors.New("store connection error")

// ErrQuery is returned when the store rejects a statement (schema mismatch,
// constraint violation, syntax error). The underlying driver error stays in the
// chain so callers can still inspect it with errors.As.
var ErrQuery = errors.New("store query error")
