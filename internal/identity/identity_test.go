package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_AnonymousSignIn(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)

	token, userID, err := p.SignInAnonymously()
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	got, err := p.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)
	other := NewJWTProvider("other-secret", time.Hour)

	foreign, err := other.Issue("u1")
	require.NoError(t, err)

	expiredProvider := NewJWTProvider("test-secret", time.Minute)
	expiredProvider.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredProvider.Issue("u1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type fakeVerifier struct {
	uid string
	err error
}

func (f fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Token{UID: f.uid}, nil
}

func TestFirebaseProvider_Verify(t *testing.T) {
	uid, err := NewFirebaseProvider(fakeVerifier{uid: "fb-user"}).Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "fb-user", uid)

	_, err = NewFirebaseProvider(fakeVerifier{err: errors.New("expired")}).Verify(context.Background(), "id-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewFirebaseProvider(fakeVerifier{uid: "x"}).Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}
