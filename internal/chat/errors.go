package chat

import "errors"

// Validation errors: the event was malformed; the connection stays open
// and the client may resubmit.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrMissingReceiver     = errors.New("receiver is required")
	ErrMissingConversation = errors.New("conversation id is required")
	ErrEmptyContent        = errors.New("message content is empty")
	ErrContentTooLong      = errors.New("message content exceeds maximum length")
)

// ErrRateLimited rejects a send before any other work is done.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrDelivery reports a failure after the message was durably persisted.
// The caller must not retry the insert.
var ErrDelivery = errors.New("message stored but delivery failed")
