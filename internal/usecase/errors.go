package usecase

import "github.com/cockroachdb/errors"

// Service-level failures. Roster rule and gateway failures keep their
// domain sentinels from package roster.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
