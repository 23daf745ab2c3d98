package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loan-engine/internal/config"
	"loan-engine/internal/domain/access"

	"github.com/golang-jwt/jwt/v5"
)

// anonymousUsername is the identity requests run as when authentication is disabled.
const anonymousUsername = "anonymous"

var (
	errMissingUsername = errors.New("token carries neither username nor sub claim")
	errNoSigningSecret = errors.New("no signing secret configured")
)

// AuthMiddleware validates HMAC bearer tokens and stores the caller's access.Identity
// in the request context. With auth disabled every request runs as an anonymous
// administrator. An enabled middleware without a secret rejects every request.
func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "AuthMiddleware")

	if !cfg.Enabled {
		logger.Warn("Authentication disabled, requests run with the admin role", slog.String("adminRole", cfg.AdminRole))
		anonymous := access.Identity{Username: anonymousUsername, Roles: []string{cfg.AdminRole}}
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), anonymous)))
			})
		}
	}

	if cfg.JWTSecret == "" {
		logger.Error("Authentication enabled without a JWT secret, all requests will be rejected")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, cfg.JWTSecret)
			if err != nil {
				logger.WarnContext(r.Context(), "Rejected request", slog.String("path", r.URL.Path), slog.Any("error", err))
				unauthorized(w)
				return
			}
			logger.DebugContext(r.Context(), "Authenticated request", slog.String("username", id.Username))
			next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": "Unauthorized",
		},
	})
}

func identityFromRequest(r *http.Request, secret string) (access.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return access.Identity{}, errors.New("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return access.Identity{}, errors.New("invalid Authorization header format")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		if secret == "" {
			return nil, errNoSigningSecret
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return access.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	return identityFromClaims(claims)
}

func identityFromClaims(claims jwt.MapClaims) (access.Identity, error) {
	username, _ := claims["username"].(string)
	if username == "" {
		username, _ = claims.GetSubject()
	}
	if username == "" {
		return access.Identity{}, errMissingUsername
	}

	var roles []string
	switch v := claims["roles"].(type) {
	case []any:
		for _, role := range v {
			if s, ok := role.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	case string:
		roles = strings.Fields(v)
	}

	return access.Identity{Username: username, Roles: roles}, nil
}
