package directory

import "errors"

var (
	// ErrUserNotFound is returned when no account matches the lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound is returned when no role matches the lookup key.
	ErrRoleNotFound = errors.New("role not found")

	// ErrConfig is returned for invalid directory configuration.
	ErrConfig = errors.New("invalid directory config")
)
