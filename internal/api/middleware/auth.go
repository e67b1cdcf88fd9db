package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kybernus/license-api/internal/auth"
	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// AccountIDKey is the context key for the account ID
	AccountIDKey ContextKey = "accountID"
	// AccountEmailKey is the context key for the account email
	AccountEmailKey ContextKey = "email"
)

// AuthMiddleware returns a middleware that requires a valid session token,
// from the Authorization header or the session cookie
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := sessionToken(r)
			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}

			claims, err := auth.ParseClaims(tokenStr, jwtSecret)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, claims.AccountID)
			ctx = context.WithValue(ctx, AccountEmailKey, claims.Email)

			AddLogField(w, "account_id", claims.AccountID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// GetAccountID extracts the account ID from the request context
func GetAccountID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(AccountIDKey).(string)
	return id, ok && id != ""
}

// GetAccountEmail extracts the account email from the request context
func GetAccountEmail(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(AccountEmailKey).(string)
	return email, ok
}
