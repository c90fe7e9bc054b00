package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/media-registry/pkg/registry"
)

// PrincipalHeader carries the caller identity when no JWT secret is configured.
const PrincipalHeader = "X-Principal"

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal registry.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the caller identity set by PrincipalMiddleware.
func PrincipalFromContext(ctx context.Context) (registry.Principal, bool) {
	p, ok := ctx.Value(principalKey).(registry.Principal)
	return p, ok && p != ""
}

// PrincipalMiddleware resolves the caller identity and rejects requests
// without one. With a non-empty jwtSecret the identity is the sub claim of
// an HMAC-signed bearer token; otherwise it is the X-Principal header.
func PrincipalMiddleware(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				principal registry.Principal
				err       error
			)
			if len(jwtSecret) > 0 {
				principal, err = principalFromToken(r, jwtSecret)
			} else {
				principal = registry.Principal(strings.TrimSpace(r.Header.Get(PrincipalHeader)))
				if principal == "" {
					err = fmt.Errorf("missing %s header", PrincipalHeader)
				}
			}
			if err != nil {
				slog.DebugContext(r.Context(), "caller identity rejected", "error", err)
				writeErrorCode(w, r, http.StatusUnauthorized, CodeUnauthenticated, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func principalFromToken(r *http.Request, secret []byte) (registry.Principal, error) {
	authHeader := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", errors.New("no bearer token provided")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid or expired token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("sub claim is missing or invalid")
	}
	return registry.Principal(sub), nil
}
