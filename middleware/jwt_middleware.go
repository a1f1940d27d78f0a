package middleware

import (
	"beijjati-server/auth"
	"beijjati-server/utils/errors"
	"net/http"
	"strings"
)

// JWTMiddleware rejects requests without a valid bearer token and stores the caller's
// identity on the request context for handlers to pick up.
func JWTMiddleware(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				WriteError(w, errors.NewAPIError("MISSING_TOKEN", "Missing authorization header", http.StatusUnauthorized))
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			identity, err := issuer.Verify(tokenString)
			if err != nil {
				WriteError(w, errors.NewAPIError("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}
