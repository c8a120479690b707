package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/oggyb/campusknot/internal/delivery/http/middleware"
)

func limitedEngine(trustProxy bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", middleware.RateLimit(1, time.Minute, trustProxy), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func behindProxy(r *gin.Engine, clientIP string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", clientIP)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_SocketAddressByDefault(t *testing.T) {
	r := limitedEngine(false)

	assert.Equal(t, http.StatusOK, behindProxy(r, "203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, behindProxy(r, "203.0.113.8"), "clients behind one proxy share a bucket")
}

func TestRateLimit_TrustProxyKeysByForwardedIP(t *testing.T) {
	r := limitedEngine(true)

	assert.Equal(t, http.StatusOK, behindProxy(r, "203.0.113.7"))
	assert.Equal(t, http.StatusOK, behindProxy(r, "203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, behindProxy(r, "203.0.113.7"))
}

func TestRateLimit_OverLimitBody(t *testing.T) {
	r := limitedEngine(false)
	behindProxy(r, "")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, w.Body.String())
}
