package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/josh-kwaku/crowdfund-payments/internal/auth"
	"github.com/josh-kwaku/crowdfund-payments/internal/handler"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error)
}

// RateLimit caps requests per authenticated user. A limiter outage lets
// traffic through.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			subject := r.RemoteAddr
			if userID, ok := auth.UserIDFromContext(r.Context()); ok {
				subject = userID.String()
			}

			allowed, retryAfter, err := limiter.Allow(r.Context(), scope, subject, limit, window)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				handler.RespondAppError(w, handler.ErrRateLimited, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
