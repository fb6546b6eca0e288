package realtime

import "errors"

var (
	// ErrUnauthorized marks a handshake or session rejected for credentials.
	// It is never retried.
	ErrUnauthorized = errors.New("realtime: unauthorized")
	// ErrConnectionClosed is returned by transports after Close.
	ErrConnectionClosed = errors.New("realtime: connection closed")
	// ErrInvalidFrame is returned for inbound frames that cannot be decoded.
	ErrInvalidFrame = errors.New("realtime: invalid frame")
)
