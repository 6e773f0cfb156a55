package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// AuthenticatedRole is the role claim of signed-in Supabase users.
const AuthenticatedRole = "authenticated"

// SupabaseClaims are the claims of a Supabase Auth access token.
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates access tokens issued by Supabase Auth (HS256).
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for the project's JWT secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses tokenString and returns the identity it asserts.
func (v *TokenVerifier) Verify(tokenString string) (domain.Identity, error) {
	claims := &SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Identity{}, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	if claims.Subject == "" {
		return domain.Identity{}, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Role != AuthenticatedRole {
		return domain.Identity{}, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}

	return domain.Identity{
		ID:    claims.Subject,
		Email: strings.ToLower(claims.Email),
	}, nil
}
