package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var ErrNoSubject = errors.New("no authenticated subject in context")

// Subject is the authenticated caller. Token issuance lives elsewhere; this
// package only verifies bearer tokens and exposes the claims.
type Subject struct {
	UserID string
	Email  string
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// WithSubject returns a context carrying the subject. Exported for tests and
// for internal callers acting on a user's behalf.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Subject, error) {
	s, ok := ctx.Value(ctxKey{}).(Subject)
	if !ok {
		return Subject{}, ErrNoSubject
	}
	return s, nil
}

// Middleware verifies the Authorization bearer token and stores the subject
// in the request context. Requests without a valid token are rejected with
// 401 before any handler runs.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			subject, err := ParseToken(tokenString, secret)
			if err != nil {
				log.Warn().Err(err).Msg("identity: rejected bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func ParseToken(tokenString, secret string) (Subject, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("identity: failed to parse token: %w", err)
	}
	if !token.Valid {
		return Subject{}, errors.New("identity: token is not valid")
	}
	if claims.Subject == "" {
		return Subject{}, errors.New("identity: token has no subject")
	}

	return Subject{UserID: claims.Subject, Email: claims.Email}, nil
}
