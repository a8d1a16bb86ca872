package interfaces

import "errors"

// Repository-level errors shared by all implementations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
)
