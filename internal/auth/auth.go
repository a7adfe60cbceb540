// Package auth resolves the identity of the caller. When a signing secret is
// configured, a bearer JWT's subject becomes the caller's user id; otherwise
// requests carry no identity and handlers fall back to the submitted user id.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrBadAuthScheme = errors.New("authorization must start with Bearer")
	ErrEmptyToken    = errors.New("bearer token missing")
	ErrNoSubject     = errors.New("token has no subject")
)

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns nil for an empty secret, which disables bearer identity.
func NewVerifier(secret string) *Verifier {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil
	}
	return &Verifier{secret: []byte(s)}
}

// Issue signs a token for userID valid for ttl. Used by operator tooling and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	})
	return tkn.SignedString(v.secret)
}

// Verify checks the signature and standard claims and returns the subject.
func (v *Verifier) Verify(token string) (string, error) {
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	var claims jwtlib.RegisteredClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwtlib.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return "", fmt.Errorf("auth.Verifier.Verify: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("auth.Verifier.Verify: %w", ErrNoSubject)
	}
	return claims.Subject, nil
}

// Middleware attaches the verified caller id to the request context.
// Requests without an Authorization header pass through anonymously; a
// malformed or invalid token is rejected with 401. A nil Verifier disables
// the check entirely.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := bearerToken(header)
			if err == nil {
				var userID string
				if userID, err = v.Verify(token); err == nil {
					fillUserSlot(r.Context(), userID)
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
					return
				}
			}
			writeUnauthorized(w, err)
		})
	}
}

func bearerToken(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", ErrBadAuthScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pickup"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": err.Error()},
	})
}

type (
	ctxKey  struct{}
	slotKey struct{}
)

// WithUserID returns a copy of ctx carrying the caller's user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFrom returns the verified caller id, if the request carried one.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithUserSlot returns a copy of ctx carrying slot. Middleware that runs
// after a verified token stores the caller id in it, so an outer middleware
// such as the request logger can read it once the request returns.
func WithUserSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, slotKey{}, slot)
}

func fillUserSlot(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(slotKey{}).(*string); ok && slot != nil {
		*slot = userID
	}
}
