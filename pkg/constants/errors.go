package constants

import "errors"

// Errors
var (
	ErrNoBaseURL         = errors.New("base url not set")
	ErrNoMarshaler       = errors.New("marshaler is not set")
	ErrNoUnmarshaler     = errors.New("unmarshaler is not set")
	ErrNotConnected      = errors.New("channel is not connected")
	ErrAlreadyConnected  = errors.New("channel is already connected")
	ErrSessionClosed     = errors.New("session is closed")
	ErrUnknownChange     = errors.New("unknown change id")
	ErrDuplicateChangeID = errors.New("change id already pending")
)
