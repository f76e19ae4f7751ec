package models

import "errors"

// Error taxonomy shared by every layer of the order engine. Callers wrap
// these with fmt.Errorf("...: %w") and test them with errors.Is.
var (
	// ErrNotFound indicates the order (or a referenced product) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an order with the requested name exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMalformedRecord indicates a stored order matches neither known layout.
	// Callers treat it as ErrNotFound.
	ErrMalformedRecord = errors.New("malformed order record")

	// ErrUnavailable is a transient store or network failure; safe to retry.
	ErrUnavailable = errors.New("store unavailable")

	// ErrPermissionDenied is fatal and never retried.
	ErrPermissionDenied = errors.New("permission denied")
)

// IsGone reports whether err means the order can no longer be shown.
func IsGone(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedRecord)
}
