package auth

import "errors"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("user is deactivated")
	ErrNoProfile    = errors.New("no user profile for authenticated account")
	ErrForbidden    = errors.New("forbidden")
)
