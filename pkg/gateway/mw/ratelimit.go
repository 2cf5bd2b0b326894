package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
	"github.com/vango-go/vai-studio/pkg/gateway/principal"
	"github.com/vango-go/vai-studio/pkg/gateway/ratelimit"
)

func RateLimit(cfg config.Config, limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health endpoints must remain cheap and reliable.
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		client := principal.Resolve(r, cfg)
		dec := limiter.AcquireRequest(client.Key, ratelimit.CostForPath(r.URL.Path), time.Now())
		if !dec.Allowed {
			reqID, _ := RequestIDFrom(r.Context())
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			writeJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:      core.ErrRateLimit,
				Message:   "rate limit exceeded",
				RequestID: reqID,
			})
			return
		}
		if websocket.IsWebSocketUpgrade(r) {
			// Live sockets are bounded by their own session slots and must not
			// pin a request slot for their whole lifetime.
			dec.Permit.Release()
		} else {
			defer dec.Permit.Release()
		}

		next.ServeHTTP(w, r)
	})
}
