package auth

import "errors"

// Admission errors. All of them terminate the connection attempt; none of
// them leave any presence state behind.
var (
	ErrNoCredential        = errors.New("no credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrServerMisconfigured = errors.New("server misconfigured")
	ErrUnknownUser         = errors.New("unknown user")
)
