package models

import "strings"

// Identity is the authenticated participant supplied by the identity
// provider. The order engine treats it as opaque and already verified.
type Identity struct {
	// Key is the stable participant identity (an email address).
	// It is the uniqueness key for participant entries within an order.
	Key string

	// DisplayName is the human-readable name shown to other participants.
	// May be empty; the identity key is shown instead.
	DisplayName string
}

// Name returns the display name, falling back to the identity key.
func (i Identity) Name() string {
	if strings.TrimSpace(i.DisplayName) != "" {
		return i.DisplayName
	}
	return i.Key
}
