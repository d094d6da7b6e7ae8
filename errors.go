package telltale

import "errors"

// Sentinel errors returned by stores and services. Handlers translate these
// into redirects or HTTP status codes; they are never shown to users verbatim.
var (
	// ErrInvalidCredentials is returned for both an unknown username and a
	// wrong password, so a caller cannot tell which one occurred.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUsername is returned when registering a username that is
	// already taken.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrUserNotFound is returned when a user id or username does not
	// resolve to a stored user.
	ErrUserNotFound = errors.New("user not found")

	// ErrSecretNotFound is returned when removing a secret that is not in
	// the user's collection. Removal of an absent value is a reportable
	// condition, not a no-op.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached. It is not retried; it propagates to the request boundary.
	ErrStoreUnavailable = errors.New("store unavailable")
)
