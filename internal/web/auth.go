package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hpungsan/katha/internal/errors"
)

// TokenIssuer is the "iss" claim on tokens minted by Katha.
const TokenIssuer = "katha"

// IssueToken mints an HS256 bearer token whose subject is profileID.
func IssueToken(secret, profileID string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return "", fmt.Errorf("profile id is required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:   TokenIssuer,
		Subject:  profileID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies token and returns its subject.
func ParseToken(secret, token string) (string, error) {
	if secret == "" {
		return "", errors.NewUnauthorized("authentication is not configured")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.NewUnauthorized("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.NewUnauthorized("token has no subject")
	}
	return claims.Subject, nil
}

type viewerKey struct{}

func withViewer(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, profileID)
}

// viewerID returns the authenticated profile ID.
func viewerID(r *http.Request) string {
	id, _ := r.Context().Value(viewerKey{}).(string)
	return id
}

// authed requires a valid bearer token.
func (h *Handlers) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.renderError(w, r, errors.NewUnauthorized("missing bearer token"))
			return
		}
		subject, err := ParseToken(h.cfg.JWTSecret, strings.TrimSpace(token))
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		next(w, r.WithContext(withViewer(r.Context(), subject)))
	}
}
