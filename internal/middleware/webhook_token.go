package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/josh-kwaku/crowdfund-payments/internal/handler"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

const callbackTokenHeader = "X-Callback-Token"

// WebhookToken admits processor callbacks carrying the shared verification token.
func WebhookToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(callbackTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				logging.FromContext(r.Context()).Warn("webhook rejected, callback token mismatch",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				handler.RespondAppError(w, handler.ErrInvalidCallbackToken, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
