package trialsink

import "errors"

var (
	// ErrNotConfigured is returned when a remote session is requested without a project ID.
	ErrNotConfigured = errors.New("remote session is not configured")

	// ErrNotHosted is returned when a remote session is requested outside the hosting environment.
	ErrNotHosted = errors.New("not running in the hosting environment")

	// ErrSessionInactive is returned by Upload and Close when no remote session is active.
	ErrSessionInactive = errors.New("remote session is not active")

	// ErrSessionBusy is returned by Open when a session is already opening or active.
	ErrSessionBusy = errors.New("remote session is already opening or active")
)
