package directory

import "errors"

// Error kinds returned by the directory core. Callers test for them with
// errors.Is; the returned errors wrap one of these with operation context.
//
// Failures reported by the Store are not part of this taxonomy and are
// returned unchanged.
var (
	// ErrInvalidArgument reports a missing, empty or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSessionNotConfigured reports an operation that needs a domain root
	// invoked before SetDomain succeeded.
	ErrSessionNotConfigured = errors.New("the active domain is not set; set the active domain before performing this action")

	// ErrAdminNotConfigured reports an operation that needs administrative
	// credentials invoked before SetAdminAccount succeeded.
	ErrAdminNotConfigured = errors.New("the administrator account is not set; set the administrator account before performing this action")

	// ErrInvalidCredentials reports that SetAdminAccount could not
	// authenticate the supplied credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
