package middleware

import (
	"beijjati-server/utils/errors"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorMiddleware turns panics into a standardized 500 JSON response
func ErrorMiddleware(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(logrus.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"panic":  rec,
					}).Error("Panic recovered")
					WriteError(w, errors.Internal(fmt.Errorf("%v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as {"error": message} with the APIError's status.
// Anything that is not an APIError becomes a 500 carrying the raw error text.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		apiErr = errors.Internal(err)
	}
	WriteJSON(w, apiErr.Status, apiErr)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
