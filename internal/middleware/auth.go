package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/qninhdt/c3/server/internal/auth"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	emailKey
)

// TokenVerifier checks a session token
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// UserID returns the authenticated user id or ""
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Email returns the authenticated user's email or ""
func Email(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

// ExtractToken reads the session from the Authorization header, the
// session cookie or a token query parameter, in that order
func ExtractToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// Authenticator resolves the session on each request
type Authenticator struct {
	verifier   TokenVerifier
	cookieName string
}

// NewAuthenticator creates an authenticator reading cookieName
func NewAuthenticator(v TokenVerifier, cookieName string) *Authenticator {
	return &Authenticator{verifier: v, cookieName: cookieName}
}

func (a *Authenticator) resolve(r *http.Request) (*http.Request, bool) {
	token := ExtractToken(r, a.cookieName)
	if token == "" {
		return r, false
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return r, false
	}
	return r.WithContext(WithUser(r.Context(), claims.Subject, claims.Email)), true
}

// Require rejects requests without a valid session
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := a.resolve(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Optional attaches the session when one is present
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = a.resolve(r)
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
