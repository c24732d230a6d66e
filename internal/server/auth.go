package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	// JWTSecret is the shared secret for HS256 validation. Empty disables auth.
	JWTSecret string

	// Issuer is the expected "iss" claim (optional).
	Issuer string

	// Audience is the expected "aud" claim (optional).
	Audience string
}

// Enabled reports whether requests must be authenticated.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type subjectKey struct{}

// Subject returns the authenticated token subject stored in ctx.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// validateToken parses and verifies tokenString against cfg.
func validateToken(cfg AuthConfig, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if cfg.Issuer != "" {
		issuer, _ := claims.GetIssuer()
		if issuer != cfg.Issuer {
			return nil, fmt.Errorf("invalid issuer: expected %s, got %s", cfg.Issuer, issuer)
		}
	}

	if cfg.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, cfg.Audience) {
			return nil, fmt.Errorf("invalid audience: expected %s", cfg.Audience)
		}
	}

	return claims, nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := validateToken(s.cfg.Auth, tokenString)
		if err != nil {
			s.logger.Debug("rejected token", slog.String("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		subject, _ := claims.GetSubject()
		ctx := context.WithValue(r.Context(), subjectKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
