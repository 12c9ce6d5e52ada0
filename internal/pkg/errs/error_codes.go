/*
Package errs provides the application error type and the business error codes.

Codes travel to clients in the JSON envelope (REST) and in WebSocket error events, so
they are stable across releases.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Messaging Errors
const (
	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrInvalidRequest indicates a relay request with a missing receiver or empty content.
	ErrInvalidRequest = 2301

	// ErrPersistenceFailure indicates that the durable write of a message did not succeed.
	ErrPersistenceFailure = 2302

	// ErrNoPeerSelected indicates a send attempted while no conversation is open.
	ErrNoPeerSelected = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = 3002

	// ErrUserAlreadyExists indicates a registration with an email already in use.
	ErrUserAlreadyExists = 3003

	// ErrIdentityMismatch indicates a join or send claiming an identity other than the authenticated one.
	ErrIdentityMismatch = 3004

	// ErrNotJoined indicates a socket event that requires a joined connection.
	ErrNotJoined = 3005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
