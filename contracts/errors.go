package contracts

import (
	"errors"
)

var (
	// ErrMissingMethod is returned when an envelope has no method name.
	ErrMissingMethod = errors.New("contracts: method not specified")

	// ErrInvalidEnvelope is returned when a body is not an envelope.
	ErrInvalidEnvelope = errors.New("contracts: invalid envelope")
)
