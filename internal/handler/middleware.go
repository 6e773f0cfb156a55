package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	accessKey   contextKey = "access"
)

// JWTAuthMiddleware validates Supabase Bearer tokens, resolves the caller's
// access and injects both into the context.
func JWTAuthMiddleware(verifier *service.TokenVerifier, access *service.AccessService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			id, err := verifier.Verify(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			ctx = context.WithValue(ctx, accessKey, access.ResolveAccess(ctx, id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose resolved access is not admin.
// It must run after JWTAuthMiddleware.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AccessFromContext(r.Context()).IsAdmin {
				logger.Warn("admin route denied",
					zap.String("path", r.URL.Path),
					zap.String("user_id", IdentityFromContext(r.Context()).ID),
				)
				writeError(w, http.StatusForbidden, "Acesso restrito a administradores")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) domain.Identity {
	v, _ := ctx.Value(identityKey).(domain.Identity)
	return v
}

// AccessFromContext extracts the resolved access from context.
func AccessFromContext(ctx context.Context) domain.Access {
	v, _ := ctx.Value(accessKey).(domain.Access)
	return v
}

func actorFromContext(ctx context.Context) domain.Actor {
	return domain.ActorFrom(IdentityFromContext(ctx), AccessFromContext(ctx))
}
