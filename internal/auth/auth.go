package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("no bearer token provided")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller. Email doubles as the owner id on
// expense records.
type Identity struct {
	Email string
}

// Verifier checks HMAC-signed bearer tokens. Token issuance lives outside
// this service; we only verify signature, expiry and subject.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyHeader authenticates an Authorization header value and returns the
// caller identity.
func (v *Verifier) VerifyHeader(authHeader string) (Identity, error) {
	token := extractBearer(authHeader)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	return v.Verify(token)
}

// Verify authenticates a raw token string.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{Email: claims.Subject}, nil
}

func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
