package auth

import "github.com/golang-jwt/jwt/v5"

// Authenticator issues and checks the service tokens merchants use to call
// the create, status and refund endpoints.
type Authenticator interface {
	GenerateToken(subject string, scopes []string) (string, error)
	ValidateToken(token string) (*jwt.Token, error)
}
