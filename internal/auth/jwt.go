package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingScope = errors.New("token lacks required scope")

type JWTAuthenticator struct {
	secret string
	aud    string
	iss    string
	ttl    time.Duration
}

// Claims are the registered claims plus the scopes a service token grants,
// e.g. "payments:create".
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTAuthenticator(secret, aud, iss string, ttl time.Duration) *JWTAuthenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTAuthenticator{secret: secret, aud: aud, iss: iss, ttl: ttl}
}

// GenerateToken signs an HS256 token for subject.
func (a *JWTAuthenticator) GenerateToken(subject string, scopes []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.iss,
			Audience:  jwt.ClaimStrings{a.aud},
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}

func (a *JWTAuthenticator) ValidateToken(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(a.aud),
		jwt.WithIssuer(a.iss),
	)
}

// WildcardScope grants every scope.
const WildcardScope = "*"

// RequireScope checks that a validated token grants scope. A token without
// scopes grants nothing.
func RequireScope(token *jwt.Token, scope string) error {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return ErrMissingScope
	}
	if slices.Contains(claims.Scopes, scope) || slices.Contains(claims.Scopes, WildcardScope) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingScope, scope)
}
