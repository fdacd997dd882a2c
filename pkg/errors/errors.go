package relay_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDMUnavailable is reported when a private channel with the user
	// cannot be opened (blocked bot or restrictive privacy settings).
	ErrDMUnavailable = errors.New("could not open DMs with the user")

	ErrNotUploaded = errors.New("file not uploaded")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
