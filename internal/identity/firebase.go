package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// TokenVerifier is the part of the Firebase auth client we use
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseProvider verifies Firebase ID tokens. Anonymous sign-in happens in
// the client SDK, so this provider does not mint tokens.
type FirebaseProvider struct {
	client TokenVerifier
}

// NewFirebaseProvider wraps a Firebase auth client
func NewFirebaseProvider(client TokenVerifier) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

var (
	_ Provider      = (*FirebaseProvider)(nil)
	_ TokenVerifier = (*auth.Client)(nil)
)

// Verify returns the token's uid
func (p *FirebaseProvider) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	t, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return t.UID, nil
}
