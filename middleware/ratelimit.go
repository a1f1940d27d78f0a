package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"beijjati-server/utils/errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CheckRateLimit increments a fixed-window counter and reports whether the caller is
// still within limit.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RateLimit limits requests per client IP. It fails open: without Redis, or when Redis
// errors, requests pass through.
func RateLimit(rdb *redis.Client, resource string, limit int, window time.Duration, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil || limit <= 0 || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := CheckRateLimit(r.Context(), rdb, resource, clientIP(r), limit, window)
			if err != nil {
				logger.WithError(err).WithField("resource", resource).Warn("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				WriteError(w, errors.NewAPIError("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
