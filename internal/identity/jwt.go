package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "carpool"

// Claims are the token claims. The subject is the user id.
type Claims struct {
	Anonymous bool `json:"anonymous"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 tokens
type JWTProvider struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTProvider creates a provider signing with secret
func NewJWTProvider(secret string, expiry time.Duration) *JWTProvider {
	if expiry <= 0 {
		expiry = 720 * time.Hour
	}
	return &JWTProvider{secret: []byte(secret), expiry: expiry, now: time.Now}
}

var (
	_ Provider        = (*JWTProvider)(nil)
	_ AnonymousSigner = (*JWTProvider)(nil)
)

// SignInAnonymously creates a fresh user id and a token for it
func (p *JWTProvider) SignInAnonymously() (string, string, error) {
	userID := uuid.NewString()
	token, err := p.issue(userID, true)
	if err != nil {
		return "", "", err
	}
	return token, userID, nil
}

// Issue signs a token for an existing user id
func (p *JWTProvider) Issue(userID string) (string, error) {
	return p.issue(userID, false)
}

func (p *JWTProvider) issue(userID string, anonymous bool) (string, error) {
	now := p.now()
	claims := Claims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the subject
func (p *JWTProvider) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
