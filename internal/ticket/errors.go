package ticket

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoTechnicians     = errors.New("no technicians available")
	ErrMissingField      = errors.New("missing required field")
)
