package chat

import "errors"

// Error taxonomy for messaging operations. Callers classify failures with
// errors.Is and map them to transport-level responses.
var (
	// ErrNotFound indicates an unknown user identity.
	ErrNotFound = errors.New("user not found")

	// ErrValidation indicates a rejected request (empty content,
	// sender equals receiver, malformed input).
	ErrValidation = errors.New("validation failed")

	// ErrBrokerUnavailable indicates a publish/subscribe transport fault.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrPersistence indicates a storage fault.
	ErrPersistence = errors.New("persistence failed")
)
