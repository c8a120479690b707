package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

const tooManyRequests = `{"error":"Too many requests, please try again later."}`

// RateLimit allows limit requests per client IP within window. A request
// over the limit is answered with 429 and the chain stops. With trustProxy
// the client IP comes from proxy headers.
func RateLimit(limit int, window time.Duration, trustProxy bool) gin.HandlerFunc {
	key := httprate.KeyByIP
	if trustProxy {
		key = httprate.KeyByRealIP
	}
	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(tooManyRequests))
		}),
	)

	return func(c *gin.Context) {
		passed := false
		limiter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
