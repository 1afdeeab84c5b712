package bridge

import "errors"

var (
	// ErrNotEmbedded is returned when the application is not running
	// inside an embeddable context (no host channel attached).
	ErrNotEmbedded = errors.New("not running in an embeddable context")

	// ErrInvalidURL is returned for a relative URL that is malformed,
	// escapes the path root, or falls outside the allowed prefixes.
	ErrInvalidURL = errors.New("invalid or unauthorized URL")

	// ErrPayloadTooLarge is returned when a serialized request body
	// exceeds the 1 MiB limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRegistrationFailed is returned once the handshake attempt
	// budget is exhausted. The budget is cumulative per session.
	ErrRegistrationFailed = errors.New("registration with host failed")

	// ErrCallFailed is the generic failure returned for HTTP verb
	// calls whose transport exchange failed. The underlying transport
	// detail is logged, not surfaced.
	ErrCallFailed = errors.New("request failed")
)
