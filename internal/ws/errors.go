package ws

import "errors"

// Connection-level errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidPayload   = errors.New("invalid event payload")
)
