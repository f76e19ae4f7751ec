package auth

import (
	"context"

	"github.com/mmynk/grouporder/internal/models"
)

// IdentityProvider resolves a bearer credential to the participant it
// belongs to. Credentials are issued elsewhere; the order engine only
// verifies them.
type IdentityProvider interface {
	// Identify returns the identity carried by credential, or
	// ErrInvalidToken if it cannot be verified.
	Identify(ctx context.Context, credential string) (models.Identity, error)
}
