// Package identity verifies who is calling. The marketplace only needs a
// stable user id; how it was issued is up to the provider.
package identity

import (
	"context"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Provider turns a bearer token into a user id
type Provider interface {
	Verify(ctx context.Context, token string) (string, error)
}

// AnonymousSigner is implemented by providers that can mint an identity for
// a new visitor on the server side
type AnonymousSigner interface {
	SignInAnonymously() (token, userID string, err error)
}
